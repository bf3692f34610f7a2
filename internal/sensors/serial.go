package sensors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openwaters/helmsman/internal/serialmux"
)

// SerialActuator issues steering commands as text lines over a serial
// mux, in the form "HDG=<deg>,SPD=<mps>". The bridge firmware applies
// the last command it received, so commands are safe to re-issue.
type SerialActuator struct {
	mux serialmux.MuxInterface
}

// NewSerialActuator creates an actuation sink over the mux.
func NewSerialActuator(mux serialmux.MuxInterface) *SerialActuator {
	return &SerialActuator{mux: mux}
}

// Command writes one steering command line.
func (a *SerialActuator) Command(heading, speed float64) error {
	return a.mux.SendCommand(fmt.Sprintf("HDG=%.1f,SPD=%.2f", heading, speed))
}

// LineRanging reads obstacle scans from a line-oriented serial bridge.
// Each line is one full sweep: "SCAN <angle>:<distance> <angle>:<distance> ...",
// angles in degrees relative to the vehicle heading, distances in meters.
type LineRanging struct {
	mux serialmux.MuxInterface

	mu     sync.Mutex
	subID  string
	lines  chan string
	opened bool
}

// NewLineRanging creates a ranging provider subscribed to the mux.
func NewLineRanging(mux serialmux.MuxInterface) *LineRanging {
	return &LineRanging{mux: mux}
}

func (r *LineRanging) subscribe() chan string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		r.subID, r.lines = r.mux.Subscribe()
		r.opened = true
	}
	return r.lines
}

// Close releases the mux subscription.
func (r *LineRanging) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		r.mux.Unsubscribe(r.subID)
		r.opened = false
	}
}

// Scan blocks until one full sweep line arrives or the context deadline
// expires.
func (r *LineRanging) Scan(ctx context.Context) (ScanSample, error) {
	lines := r.subscribe()
	for {
		select {
		case <-ctx.Done():
			return ScanSample{}, ErrTimeout
		case line, ok := <-lines:
			if !ok {
				return ScanSample{}, fmt.Errorf("ranging stream closed")
			}
			sample, err := ParseScanLine(line, time.Now())
			if err != nil {
				continue // other traffic on the shared port
			}
			return sample, nil
		}
	}
}

// ParseScanLine parses one "SCAN ..." sweep line.
func ParseScanLine(line string, ts time.Time) (ScanSample, error) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, "SCAN ")
	if !ok {
		return ScanSample{}, fmt.Errorf("not a scan line: %q", line)
	}

	parts := strings.Fields(rest)
	points := make([]ScanPoint, 0, len(parts))
	for _, part := range parts {
		angleStr, distStr, found := strings.Cut(part, ":")
		if !found {
			return ScanSample{}, fmt.Errorf("bad scan pair %q", part)
		}
		angle, err := strconv.ParseFloat(angleStr, 64)
		if err != nil {
			return ScanSample{}, fmt.Errorf("bad angle %q: %w", angleStr, err)
		}
		dist, err := strconv.ParseFloat(distStr, 64)
		if err != nil {
			return ScanSample{}, fmt.Errorf("bad distance %q: %w", distStr, err)
		}
		points = append(points, ScanPoint{Angle: angle, Distance: dist})
	}

	return ScanSample{Points: points, Timestamp: ts}, nil
}
