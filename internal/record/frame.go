// Package record captures synchronized sensor frames on a fixed cadence,
// buffers them through a bounded drop-oldest queue, and persists them to
// a mission log database plus a flat CSV track log. Recording runs fully
// decoupled from the control loop: a stalled disk never blocks steering.
package record

import "time"

// Frame is one synchronized capture across all sensor modalities. The
// scan is stored as parallel angle/distance slices so consumers can
// read either without decoding the other.
type Frame struct {
	Seq        uint64    `json:"seq"`
	Image      []byte    `json:"-"`
	Angles     []float64 `json:"angles"`
	Distances  []float64 `json:"distances"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	HeadingDeg float64   `json:"heading_deg"`
	SpeedMps   float64   `json:"speed_mps"`
	Timestamp  time.Time `json:"timestamp"`

	// Stale marks a frame whose pose was reused from the previous
	// cadence because fresh telemetry missed the sync tolerance.
	Stale bool `json:"stale,omitempty"`
}
