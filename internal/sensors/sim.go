package sensors

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/openwaters/helmsman/internal/geo"
)

const metersPerDegree = 111195.0

// SimVehicle is a kinematic vehicle model used in dev mode and tests.
// It implements both TelemetryProvider and ActuationSink: commands set
// the target heading and speed, and each Read integrates the position
// forward by the elapsed wall time.
type SimVehicle struct {
	mu sync.Mutex

	lat, lon   float64
	heading    float64
	speed      float64
	cmdHeading float64
	cmdSpeed   float64

	turnRateDegPerSec float64
	lastUpdate        time.Time

	// ReadErr, when set, is returned by the next Read.
	ReadErr error
	// CommandErr, when set, is returned by every Command call.
	CommandErr error

	commands int
}

// NewSimVehicle creates a motionless vehicle at the given position.
func NewSimVehicle(lat, lon, heading float64) *SimVehicle {
	return &SimVehicle{
		lat:               lat,
		lon:               lon,
		heading:           heading,
		cmdHeading:        heading,
		turnRateDegPerSec: 45,
		lastUpdate:        time.Now(),
	}
}

// Command sets the target heading and speed.
func (v *SimVehicle) Command(heading, speed float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.CommandErr != nil {
		return v.CommandErr
	}
	v.cmdHeading = geo.NormalizeCourse(heading)
	v.cmdSpeed = speed
	v.commands++
	return nil
}

// Commands returns the number of accepted commands.
func (v *SimVehicle) Commands() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.commands
}

// Read advances the model by the elapsed time and returns the pose.
func (v *SimVehicle) Read(ctx context.Context) (Pose, error) {
	if err := ctx.Err(); err != nil {
		return Pose{}, ErrTimeout
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ReadErr != nil {
		err := v.ReadErr
		return Pose{}, err
	}

	now := time.Now()
	v.step(now.Sub(v.lastUpdate).Seconds())
	v.lastUpdate = now

	return Pose{
		Latitude:  v.lat,
		Longitude: v.lon,
		Heading:   v.heading,
		Speed:     v.speed,
		Timestamp: now,
	}, nil
}

// step integrates heading slew and position over dt seconds.
func (v *SimVehicle) step(dt float64) {
	if dt <= 0 {
		return
	}

	turn := geo.NormalizeError(v.cmdHeading - v.heading)
	maxTurn := v.turnRateDegPerSec * dt
	if math.Abs(turn) > maxTurn {
		turn = math.Copysign(maxTurn, turn)
	}
	v.heading = geo.NormalizeCourse(v.heading + turn)
	v.speed = v.cmdSpeed

	distance := v.speed * dt
	headingRad := v.heading * math.Pi / 180
	v.lat += distance * math.Cos(headingRad) / metersPerDegree
	v.lon += distance * math.Sin(headingRad) / (metersPerDegree * math.Cos(v.lat*math.Pi/180))
}

// Teleport moves the vehicle instantly, for test setup.
func (v *SimVehicle) Teleport(lat, lon, heading float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lat, v.lon = lat, lon
	v.heading = heading
	v.cmdHeading = heading
	v.lastUpdate = time.Now()
}

// SimRanging returns scripted obstacle scans. With no script it reports
// a clear sweep.
type SimRanging struct {
	mu sync.Mutex

	// Obstacle, when set, injects a return at the given relative bearing
	// and distance into every scan.
	obstacle *ScanPoint

	// ScanErr, when set, is returned by the next Scan.
	ScanErr error

	sweepStep float64
	clearDist float64
}

// NewSimRanging creates a ranging simulator with a clear 360° sweep.
func NewSimRanging() *SimRanging {
	return &SimRanging{sweepStep: 5, clearDist: 40}
}

// SetObstacle places a simulated obstacle; nil clears it.
func (r *SimRanging) SetObstacle(angle, distance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obstacle = &ScanPoint{Angle: angle, Distance: distance}
}

// ClearObstacle removes the simulated obstacle.
func (r *SimRanging) ClearObstacle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obstacle = nil
}

// Scan returns one synthetic sweep.
func (r *SimRanging) Scan(ctx context.Context) (ScanSample, error) {
	if err := ctx.Err(); err != nil {
		return ScanSample{}, ErrTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ScanErr != nil {
		err := r.ScanErr
		return ScanSample{}, err
	}

	points := make([]ScanPoint, 0, int(360/r.sweepStep)+1)
	for angle := -180.0; angle < 180; angle += r.sweepStep {
		dist := r.clearDist
		if r.obstacle != nil && math.Abs(angle-r.obstacle.Angle) < r.sweepStep {
			dist = r.obstacle.Distance
		}
		points = append(points, ScanPoint{Angle: angle, Distance: dist})
	}

	return ScanSample{Points: points, Timestamp: time.Now()}, nil
}

// SimCamera returns a fixed synthetic frame stamped at capture time.
type SimCamera struct {
	// CaptureErr, when set, is returned by every Capture.
	CaptureErr error

	frame []byte
}

// NewSimCamera creates a camera producing a small synthetic buffer.
func NewSimCamera() *SimCamera {
	frame := make([]byte, 256)
	for i := range frame {
		frame[i] = byte(i)
	}
	return &SimCamera{frame: frame}
}

// Capture returns the synthetic frame.
func (c *SimCamera) Capture(ctx context.Context) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, ErrTimeout
	}
	if c.CaptureErr != nil {
		return Image{}, c.CaptureErr
	}
	return Image{Data: c.frame, Timestamp: time.Now()}, nil
}
