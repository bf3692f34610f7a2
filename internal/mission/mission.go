// Package mission defines the mission plan: an ordered waypoint route,
// an optional emergency recovery point, and the sequencer that decides
// arrival and advancement.
package mission

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openwaters/helmsman/internal/geo"
)

// ErrNoWaypoints is returned when a mission file contains no usable rows.
var ErrNoWaypoints = errors.New("mission contains no waypoints")

// Status is the mission lifecycle state.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusCompleted
	StatusAborted
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Waypoint is one target coordinate in decimal degrees (WGS84).
// Immutable once loaded.
type Waypoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Arrival records a waypoint reach for the mission log.
type Arrival struct {
	Index     int
	Waypoint  Waypoint
	ReachedAt time.Time
}

// Mission is an ordered waypoint route with an optional emergency
// recovery point.
type Mission struct {
	ID        string
	Waypoints []Waypoint
	Recovery  *Waypoint

	status Status
}

// New creates a pending mission over the given route.
func New(waypoints []Waypoint) (*Mission, error) {
	if len(waypoints) == 0 {
		return nil, ErrNoWaypoints
	}
	return &Mission{
		ID:        uuid.NewString(),
		Waypoints: waypoints,
		status:    StatusPending,
	}, nil
}

// Status returns the mission lifecycle state.
func (m *Mission) Status() Status { return m.status }

// SetStatus moves the mission through its lifecycle.
func (m *Mission) SetStatus(s Status) { m.status = s }

// Load reads a mission file: one "latitude, longitude" decimal-degree
// pair per line. Blank lines and #-comments are skipped.
func Load(path string) (*Mission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mission file: %w", err)
	}
	defer f.Close()

	var waypoints []Waypoint
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		wp, err := parseWaypoint(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		waypoints = append(waypoints, wp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mission file: %w", err)
	}

	return New(waypoints)
}

// LoadRecovery reads the first waypoint from a recovery-point file in
// the same format as a mission file.
func LoadRecovery(path string) (*Waypoint, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &m.Waypoints[0], nil
}

func parseWaypoint(line string) (Waypoint, error) {
	latStr, lonStr, found := strings.Cut(line, ",")
	if !found {
		return Waypoint{}, fmt.Errorf("expected 'latitude, longitude', got %q", line)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("bad latitude %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("bad longitude %q: %w", lonStr, err)
	}

	if lat < -90 || lat > 90 {
		return Waypoint{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Waypoint{}, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}

	return Waypoint{Latitude: lat, Longitude: lon}, nil
}

// Sequencer owns the mission's current target and decides arrival.
// The current index is monotonically non-decreasing.
type Sequencer struct {
	mission       *Mission
	arrivalRadius float64 // meters
	index         int
	arrivals      []Arrival
}

// NewSequencer creates a sequencer over the mission with the given
// arrival radius in meters.
func NewSequencer(m *Mission, arrivalRadiusMeters float64) *Sequencer {
	return &Sequencer{mission: m, arrivalRadius: arrivalRadiusMeters}
}

// Current returns the active waypoint, or false when the route is
// exhausted.
func (s *Sequencer) Current() (Waypoint, bool) {
	if s.index >= len(s.mission.Waypoints) {
		return Waypoint{}, false
	}
	return s.mission.Waypoints[s.index], true
}

// Index returns the zero-based index of the active waypoint.
func (s *Sequencer) Index() int { return s.index }

// Count returns the number of waypoints in the route.
func (s *Sequencer) Count() int { return len(s.mission.Waypoints) }

// Exhausted reports whether every waypoint has been reached.
func (s *Sequencer) Exhausted() bool { return s.index >= len(s.mission.Waypoints) }

// Advance marks the current waypoint reached and moves to the next iff
// the great-circle distance from the pose to the waypoint is within the
// arrival radius. It never fires early.
func (s *Sequencer) Advance(lat, lon float64, now time.Time) bool {
	wp, ok := s.Current()
	if !ok {
		return false
	}
	if geo.DistanceMeters(lat, lon, wp.Latitude, wp.Longitude) > s.arrivalRadius {
		return false
	}

	s.arrivals = append(s.arrivals, Arrival{Index: s.index, Waypoint: wp, ReachedAt: now})
	s.index++
	return true
}

// Arrivals returns the recorded waypoint reaches in order.
func (s *Sequencer) Arrivals() []Arrival {
	out := make([]Arrival, len(s.arrivals))
	copy(out, s.arrivals)
	return out
}
