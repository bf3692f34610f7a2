// Command helmsman runs one autonomous mission: it navigates a waypoint
// route, steers around obstacles, and records synchronized sensor frames
// to a mission log.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/openwaters/helmsman/internal/api"
	"github.com/openwaters/helmsman/internal/config"
	"github.com/openwaters/helmsman/internal/mission"
	"github.com/openwaters/helmsman/internal/nav"
	"github.com/openwaters/helmsman/internal/obstacle"
	"github.com/openwaters/helmsman/internal/pilot"
	"github.com/openwaters/helmsman/internal/record"
	"github.com/openwaters/helmsman/internal/sensors"
	"github.com/openwaters/helmsman/internal/serialmux"
	"github.com/openwaters/helmsman/internal/timeutil"
	"github.com/openwaters/helmsman/internal/units"
)

var (
	missionFile = flag.String("mission", "", "Mission file: one \"latitude, longitude\" pair per line")
	erpFile     = flag.String("erp", "", "Emergency recovery point file (optional)")
	configFile  = flag.String("config", "", "Tuning config JSON (optional)")
	devMode     = flag.Bool("dev", false, "Run against simulated sensors")
	telemPort   = flag.String("port", "/dev/ttyUSB0", "Vehicle serial port (NMEA telemetry + actuation)")
	scanPort    = flag.String("scan-port", "/dev/ttyUSB1", "Ranging sensor serial port")
	cameraDir   = flag.String("camera-dir", "", "Camera spool directory (optional)")
	dbFile      = flag.String("db", "mission.db", "Mission log database path")
	trackFile   = flag.String("track", "track.csv", "CSV track log path (empty disables)")
	listen      = flag.String("listen", ":8080", "Status server listen address")
	speedUnits  = flag.String("units", units.MPS, "Display units for reported speeds (mps, knots, kmph)")
)

func main() {
	flag.Parse()

	if *missionFile == "" {
		log.Fatal("-mission is required")
	}
	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid -units %q, want one of %v", *speedUnits, units.ValidUnits)
	}

	cfg := config.Empty()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	m, err := mission.Load(*missionFile)
	if err != nil {
		log.Fatalf("failed to load mission: %v", err)
	}
	if *erpFile != "" {
		recovery, err := mission.LoadRecovery(*erpFile)
		if err != nil {
			log.Fatalf("failed to load recovery point: %v", err)
		}
		m.Recovery = recovery
	}
	log.Printf("mission %s: %d waypoints", m.ID, len(m.Waypoints))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	telemetry, ranging, camera, actuator, err := buildSensors(ctx, &wg, m)
	if err != nil {
		log.Fatalf("failed to connect sensors: %v", err)
	}

	store, err := record.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open mission log: %v", err)
	}
	defer store.Close()

	var track *record.TrackLog
	if *trackFile != "" {
		if track, err = record.NewTrackLog(*trackFile); err != nil {
			log.Fatalf("failed to open track log: %v", err)
		}
		defer track.Close()
	}

	loop := pilot.New(pilot.Options{
		Mission:   m,
		Sequencer: mission.NewSequencer(m, cfg.GetArrivalRadiusMeters()),
		Nav: nav.NewController(nav.Params{
			SteeringGain:   cfg.GetSteeringGain(),
			MaxTurnRateDeg: cfg.GetMaxTurnRateDeg(),
			CruiseSpeedMps: cfg.GetCruiseSpeedMps(),
			MinSpeedMps:    cfg.GetMinSpeedMps(),
			DecelDistanceM: cfg.GetDecelDistanceMeters(),
		}),
		Monitor: obstacle.NewMonitor(cfg.GetZones(), cfg.GetIgnoreDistanceM(), cfg.GetAdaptiveFrontZone()),
		Arbiter: obstacle.NewArbiter(obstacle.Params{
			SeverityThreshold: cfg.GetSeverityThreshold(),
			PersistenceTicks:  cfg.GetPersistenceTicks(),
			SettleTicks:       cfg.GetSettleTicks(),
			EvadeTurnDeg:      cfg.GetEvadeTurnDeg(),
			CrawlSpeedMps:     cfg.GetCrawlSpeedMps(),
			RecoverySpeedMps:  cfg.GetRecoverySpeedMps(),
		}, cfg.GetZones()),
		Telemetry: telemetry,
		Ranging:   ranging,
		Actuator:  actuator,
		Store:     store,
		Clock:     timeutil.RealClock{},

		ControlInterval: cfg.GetControlInterval(),
		StartDelay:      cfg.GetStartDelay(),
		SensorTimeout:   cfg.GetSensorTimeout(),
		TelemetryLimit:  cfg.GetTelemetryLimit(),
		ActuationLimit:  cfg.GetActuationLimit(),
		RecoverySpeed:   cfg.GetRecoverySpeedMps(),
		ArrivalRadius:   cfg.GetArrivalRadiusMeters(),
	})

	// Recording pipeline: synchronizer -> queue -> writer.
	queue := record.NewQueue(cfg.GetQueueCapacity())
	synchronizer := record.NewSynchronizer(ranging, camera, loop, queue, record.SynchronizerOptions{
		Interval:      cfg.GetRecordInterval(),
		Deadline:      cfg.GetSensorTimeout(),
		SyncTolerance: cfg.GetSyncTolerance(),
		AllowStale:    cfg.GetAllowStale(),
	})
	writer := record.NewWriter(queue, record.WriterOptions{
		Store:         store,
		Track:         track,
		ReportEvery:   cfg.GetFlushInterval(),
		WriteFailures: cfg.GetWriteFailLimit(),
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		synchronizer.Run(ctx)
		queue.Close()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		writer.Run(ctx)
	}()

	// Status server.
	wg.Add(1)
	go func() {
		defer wg.Done()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(api.NewServer(loop, queue, synchronizer, writer, *speedUnits).ServeMux()),
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start status server: %v", err)
			}
		}()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("status server shutdown error: %v", err)
		}
	}()

	// The mission loop drives the process lifetime.
	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("mission ended: %v", err)
	}
	stop()

	wg.Wait()
	snap := loop.Snapshot()
	log.Printf("shutdown complete: state=%s waypoints=%d/%d frames=%d dropped=%d gaps=%d",
		snap.StateName, snap.WaypointIndex, snap.WaypointCount,
		writer.Written(), queue.Dropped(), synchronizer.Gaps())
}

// buildSensors wires either the simulator or the real serial hardware.
// Serial muxes get their monitor goroutines registered on wg.
func buildSensors(ctx context.Context, wg *sync.WaitGroup, m *mission.Mission) (sensors.TelemetryProvider, sensors.RangingProvider, sensors.ImageProvider, sensors.ActuationSink, error) {
	if *devMode {
		start := m.Waypoints[0]
		// Spawn a little south of the first waypoint so the route is
		// actually sailed.
		vehicle := sensors.NewSimVehicle(start.Latitude-0.0005, start.Longitude, 0)
		log.Printf("dev mode: simulated vehicle at (%.5f, %.5f)", start.Latitude-0.0005, start.Longitude)
		return vehicle, sensors.NewSimRanging(), sensors.NewSimCamera(), vehicle, nil
	}

	vehicleMux, err := serialmux.NewRealMux(*telemPort, serialmux.PortOptions{})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("vehicle port %s: %v", *telemPort, err)
	}
	scanMux, err := serialmux.NewRealMux(*scanPort, serialmux.PortOptions{})
	if err != nil {
		vehicleMux.Close()
		return nil, nil, nil, nil, fmt.Errorf("ranging port %s: %v", *scanPort, err)
	}

	for name, mux := range map[string]serialmux.MuxInterface{"vehicle": vehicleMux, "ranging": scanMux} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("%s serial monitor: %v", name, err)
			}
		}()
	}

	var camera sensors.ImageProvider = sensors.NewSimCamera()
	if *cameraDir != "" {
		camera = sensors.NewDirectoryCamera(*cameraDir)
	} else {
		log.Print("no -camera-dir given, recording synthetic frames")
	}

	return sensors.NewNMEATelemetry(vehicleMux), sensors.NewLineRanging(scanMux), camera, sensors.NewSerialActuator(vehicleMux), nil
}
