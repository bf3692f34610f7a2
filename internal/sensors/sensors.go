// Package sensors defines the capability interfaces the mission loop
// depends on and the adapters that implement them over serial transports
// or simulation. Drivers return explicit results or errors bounded by the
// caller's context deadline; they never call back into the loop.
package sensors

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a sensor misses the caller's deadline.
var ErrTimeout = errors.New("sensor read timed out")

// Pose is the vehicle navigation state at one instant. It is owned by
// the control goroutine and shared only as a value snapshot.
type Pose struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"` // compass degrees [0, 360)
	Speed     float64   `json:"speed"`   // meters per second over ground
	Timestamp time.Time `json:"timestamp"`
}

// ScanPoint is one ranging return at a relative bearing.
type ScanPoint struct {
	Angle    float64 `json:"angle"`    // degrees relative to heading, 0 = ahead, positive = starboard
	Distance float64 `json:"distance"` // meters
}

// ScanSample is an ordered sweep of ranging returns captured at one
// instant. Immutable once captured.
type ScanSample struct {
	Points    []ScanPoint `json:"points"`
	Timestamp time.Time   `json:"timestamp"`
}

// Image is one captured camera buffer.
type Image struct {
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// TelemetryProvider reads the current vehicle pose. Read blocks until a
// fix is available or the context deadline expires.
type TelemetryProvider interface {
	Read(ctx context.Context) (Pose, error)
}

// RangingProvider captures one obstacle scan.
type RangingProvider interface {
	Scan(ctx context.Context) (ScanSample, error)
}

// ImageProvider captures one camera frame.
type ImageProvider interface {
	Capture(ctx context.Context) (Image, error)
}

// ActuationSink accepts steering commands. Commands are fire-and-forget:
// the loop re-issues them every tick, so a transient failure degrades to
// holding the previous command.
type ActuationSink interface {
	Command(heading, speed float64) error
}
