// Package obstacle implements threshold-based obstacle detection over
// configured angular zones and the hysteretic avoidance arbiter that
// overrides navigation commands while an obstacle persists.
package obstacle

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/openwaters/helmsman/internal/config"
	"github.com/openwaters/helmsman/internal/sensors"
)

// Event is one zone threshold violation for one scan.
type Event struct {
	ZoneID       string    `json:"zone_id"`
	MinAngleDeg  float64   `json:"min_angle_deg"`
	MaxAngleDeg  float64   `json:"max_angle_deg"`
	MinDistanceM float64   `json:"min_distance_m"`
	MeanAngleDeg float64   `json:"mean_angle_deg"` // mean bearing of returns under threshold
	Severity     float64   `json:"severity"`       // 1 - d/threshold, in (0, 1]
	DetectedAt   time.Time `json:"detected_at"`
}

// Monitor evaluates ranging scans against the configured zones.
type Monitor struct {
	zones      []config.ZoneConfig
	ignoreDist float64
	adaptive   bool

	// adaptive front-zone widening state
	frontNearest float64
}

// NewMonitor creates a Monitor over the given zones. Returns closer
// than ignoreDistM are treated as sensor self-reflection and skipped.
func NewMonitor(zones []config.ZoneConfig, ignoreDistM float64, adaptiveFront bool) *Monitor {
	return &Monitor{
		zones:      zones,
		ignoreDist: ignoreDistM,
		adaptive:   adaptiveFront,
	}
}

// Zones returns the configured zones.
func (m *Monitor) Zones() []config.ZoneConfig { return m.zones }

// Evaluate checks one scan against every zone independently and returns
// an event per violated zone. A clear scan yields an empty slice.
func (m *Monitor) Evaluate(scan sensors.ScanSample) []Event {
	var events []Event
	for _, zone := range m.zones {
		minAngle, maxAngle := m.effectiveSector(zone)

		var distances, angles []float64
		for _, p := range scan.Points {
			if p.Distance <= m.ignoreDist {
				continue
			}
			if p.Angle < minAngle || p.Angle > maxAngle {
				continue
			}
			distances = append(distances, p.Distance)
			angles = append(angles, p.Angle)
		}
		if len(distances) == 0 {
			continue
		}

		minDist := floats.Min(distances)
		if m.adaptive && m.isFront(zone) {
			m.frontNearest = minDist
		}
		if minDist >= zone.ThresholdMeters {
			continue
		}

		// Mean bearing of the returns actually under threshold, used by
		// the arbiter to pick the escape side.
		var under []float64
		for i, d := range distances {
			if d < zone.ThresholdMeters {
				under = append(under, angles[i])
			}
		}

		events = append(events, Event{
			ZoneID:       zone.ID,
			MinAngleDeg:  zone.MinAngleDeg,
			MaxAngleDeg:  zone.MaxAngleDeg,
			MinDistanceM: minDist,
			MeanAngleDeg: stat.Mean(under, nil),
			Severity:     1 - minDist/zone.ThresholdMeters,
			DetectedAt:   scan.Timestamp,
		})
	}
	return events
}

// effectiveSector widens the front zone as the nearest obstacle closes,
// so a near obstacle is watched over a broader bearing span.
func (m *Monitor) effectiveSector(zone config.ZoneConfig) (float64, float64) {
	if !m.adaptive || !m.isFront(zone) || m.frontNearest == 0 {
		return zone.MinAngleDeg, zone.MaxAngleDeg
	}

	// Scale between 1x at the threshold and 2x at contact.
	ratio := m.frontNearest / zone.ThresholdMeters
	if ratio >= 1 {
		return zone.MinAngleDeg, zone.MaxAngleDeg
	}
	widen := 1 + (1 - ratio)
	return math.Max(zone.MinAngleDeg*widen, -180), math.Min(zone.MaxAngleDeg*widen, 180)
}

// isFront reports whether the zone straddles dead ahead.
func (m *Monitor) isFront(zone config.ZoneConfig) bool {
	return zone.MinAngleDeg <= 0 && zone.MaxAngleDeg >= 0
}
