package sensors

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openwaters/helmsman/internal/serialmux"
	"github.com/openwaters/helmsman/internal/units"
)

// NMEATelemetry reads vehicle pose from an NMEA 0183 talker attached to
// a serial mux. Only RMC sentences are consumed: they carry position,
// speed over ground, and course in a single sentence.
type NMEATelemetry struct {
	mux serialmux.MuxInterface

	mu     sync.Mutex
	subID  string
	lines  chan string
	opened bool
}

// NewNMEATelemetry creates a telemetry provider subscribed to the mux.
func NewNMEATelemetry(mux serialmux.MuxInterface) *NMEATelemetry {
	return &NMEATelemetry{mux: mux}
}

func (n *NMEATelemetry) subscribe() chan string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.opened {
		n.subID, n.lines = n.mux.Subscribe()
		n.opened = true
	}
	return n.lines
}

// Close releases the mux subscription.
func (n *NMEATelemetry) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.opened {
		n.mux.Unsubscribe(n.subID)
		n.opened = false
	}
}

// Read blocks until a valid RMC fix arrives or the context deadline
// expires. Non-RMC and void sentences are skipped.
func (n *NMEATelemetry) Read(ctx context.Context) (Pose, error) {
	lines := n.subscribe()
	for {
		select {
		case <-ctx.Done():
			return Pose{}, ErrTimeout
		case line, ok := <-lines:
			if !ok {
				return Pose{}, fmt.Errorf("telemetry stream closed")
			}
			pose, err := ParseRMC(line)
			if err != nil {
				continue // not a fix; keep waiting within the deadline
			}
			return pose, nil
		}
	}
}

// ParseRMC parses a $--RMC sentence into a Pose. It verifies the
// checksum when present and rejects void (status V) fixes.
func ParseRMC(line string) (Pose, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Pose{}, fmt.Errorf("not an NMEA sentence: %q", line)
	}

	body := line[1:]
	if star := strings.IndexByte(body, '*'); star >= 0 {
		want := body[star+1:]
		body = body[:star]
		if sum := nmeaChecksum(body); !strings.EqualFold(sum, want) {
			return Pose{}, fmt.Errorf("checksum mismatch: computed %s, sentence has %s", sum, want)
		}
	}

	fields := strings.Split(body, ",")
	if len(fields) < 10 || !strings.HasSuffix(fields[0], "RMC") {
		return Pose{}, fmt.Errorf("not an RMC sentence: %q", fields[0])
	}
	if fields[2] != "A" {
		return Pose{}, fmt.Errorf("no fix (status %q)", fields[2])
	}

	lat, err := parseCoordinate(fields[3], fields[4])
	if err != nil {
		return Pose{}, fmt.Errorf("bad latitude: %w", err)
	}
	lon, err := parseCoordinate(fields[5], fields[6])
	if err != nil {
		return Pose{}, fmt.Errorf("bad longitude: %w", err)
	}

	speedKnots := 0.0
	if fields[7] != "" {
		if speedKnots, err = strconv.ParseFloat(fields[7], 64); err != nil {
			return Pose{}, fmt.Errorf("bad speed: %w", err)
		}
	}
	course := 0.0
	if fields[8] != "" {
		if course, err = strconv.ParseFloat(fields[8], 64); err != nil {
			return Pose{}, fmt.Errorf("bad course: %w", err)
		}
	}

	ts, err := parseRMCTime(fields[1], fields[9])
	if err != nil {
		ts = time.Now()
	}

	return Pose{
		Latitude:  lat,
		Longitude: lon,
		Heading:   course,
		Speed:     units.KnotsToMetersPerSecond(speedKnots),
		Timestamp: ts,
	}, nil
}

// parseCoordinate converts NMEA DDMM.MMMM / DDDMM.MMMM plus hemisphere
// into signed decimal degrees.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	raw, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}

	degrees := math.Floor(raw / 100)
	minutes := raw - degrees*100
	if minutes >= 60 {
		return 0, fmt.Errorf("minutes out of range: %v", minutes)
	}
	decimal := degrees + minutes/60

	switch hemisphere {
	case "N", "E":
		return decimal, nil
	case "S", "W":
		return -decimal, nil
	default:
		return 0, fmt.Errorf("bad hemisphere %q", hemisphere)
	}
}

// parseRMCTime combines the HHMMSS(.sss) and DDMMYY fields.
func parseRMCTime(timeField, dateField string) (time.Time, error) {
	if len(timeField) < 6 || len(dateField) != 6 {
		return time.Time{}, fmt.Errorf("missing time/date")
	}
	t, err := time.Parse("020106 150405", dateField+" "+timeField[:6])
	if err != nil {
		return time.Time{}, err
	}
	if dot := strings.IndexByte(timeField, '.'); dot >= 0 {
		if frac, err := strconv.ParseFloat(timeField[dot:], 64); err == nil {
			t = t.Add(time.Duration(frac * float64(time.Second)))
		}
	}
	return t, nil
}

func nmeaChecksum(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("%02X", sum)
}
