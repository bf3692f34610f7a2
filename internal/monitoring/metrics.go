package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters are cumulative; gauges report the instantaneous mission state.
// All metrics are registered on the default registry and exposed by the
// status server at /metrics.
var (
	// TicksTotal counts executed control ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helmsman_control_ticks_total",
		Help: "Number of control ticks executed.",
	})

	// TickSeconds observes the wall time spent inside one control tick.
	TickSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "helmsman_control_tick_seconds",
		Help:    "Duration of one control tick.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
	})

	// FramesRecorded counts sensor frames successfully appended to storage.
	FramesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helmsman_frames_recorded_total",
		Help: "Sensor frames appended to the mission log.",
	})

	// FramesDropped counts frames lost to queue overflow.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helmsman_frames_dropped_total",
		Help: "Frames dropped because the record queue was full.",
	})

	// SyncGaps counts frames abandoned because sensor samples could not be
	// aligned within the synchronization tolerance.
	SyncGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helmsman_sync_gaps_total",
		Help: "Frames dropped due to sensor synchronization failure.",
	})

	// TelemetryTimeouts counts stale-pose ticks.
	TelemetryTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helmsman_telemetry_timeouts_total",
		Help: "Control ticks that ran on a stale pose after a telemetry timeout.",
	})

	// WaypointsReached counts waypoint arrivals.
	WaypointsReached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helmsman_waypoints_reached_total",
		Help: "Waypoints marked as reached.",
	})

	// AvoidanceState reports the arbiter state (0 idle, 1 evading, 2 recovering).
	AvoidanceState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "helmsman_avoidance_state",
		Help: "Current avoidance arbiter state (0=idle, 1=evading, 2=recovering).",
	})

	// MissionState reports the loop state (0 initializing, 1 running,
	// 2 completing, 3 aborted).
	MissionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "helmsman_mission_state",
		Help: "Current mission loop state (0=initializing, 1=running, 2=completing, 3=aborted).",
	})
)
