package obstacle

import (
	"math"

	"github.com/openwaters/helmsman/internal/config"
	"github.com/openwaters/helmsman/internal/geo"
	"github.com/openwaters/helmsman/internal/monitoring"
)

// State is the avoidance arbiter's mode.
type State int

const (
	// Idle means navigation commands pass through untouched.
	Idle State = iota
	// Evading means the arbiter is steering away from a persistent obstacle.
	Evading
	// Recovering means the obstacle cleared and the vehicle is settling
	// back onto its course at reduced speed.
	Recovering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Evading:
		return "evading"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Decision is the arbiter's verdict for one control tick. While
// Evading the override replaces both heading and speed; while
// Recovering only SpeedMps applies and the caller keeps its own
// heading (OverrideHeading distinguishes the two).
type Decision struct {
	State           State
	Override        bool
	OverrideHeading bool
	HeadingDeg      float64 // absolute course to command while evading
	SpeedMps        float64
}

// Params tune the arbiter's hysteresis and evasive maneuver.
type Params struct {
	SeverityThreshold float64 // minimum event severity that counts toward the streak
	PersistenceTicks  int     // consecutive qualifying ticks before leaving Idle
	SettleTicks       int     // consecutive clear ticks before leaving Recovering
	EvadeTurnDeg      float64 // course offset applied away from the obstacle
	CrawlSpeedMps     float64 // speed while Evading
	RecoverySpeedMps  float64 // speed while Recovering
}

// Arbiter runs the Idle/Evading/Recovering state machine. A qualifying
// obstacle must persist for PersistenceTicks consecutive ticks before
// Idle gives way to Evading; once evading, the obstacle must stay clear
// for SettleTicks before the arbiter returns to Idle, passing through
// Recovering. Evading never transitions straight to Idle.
type Arbiter struct {
	params Params
	zones  []config.ZoneConfig

	state     State
	streak    int // consecutive qualifying ticks while Idle
	clear     int // consecutive clear ticks while Recovering
	evadeSign float64
}

func NewArbiter(params Params, zones []config.ZoneConfig) *Arbiter {
	return &Arbiter{params: params, zones: zones}
}

// State returns the current mode.
func (a *Arbiter) State() State { return a.state }

// Hold keeps the current state through a ranging dropout. The arbiter
// neither accrues nor resets its streaks on a tick with no scan.
func (a *Arbiter) Hold(headingDeg float64) Decision {
	return a.decisionFor(headingDeg)
}

// Update advances the state machine with the events from one scan and
// returns the decision for this tick.
func (a *Arbiter) Update(headingDeg float64, events []Event) Decision {
	qualifying := a.qualifying(events)

	switch a.state {
	case Idle:
		if qualifying {
			a.streak++
			if a.streak >= a.params.PersistenceTicks {
				a.enterEvading(events)
			}
		} else {
			a.streak = 0
		}
	case Evading:
		if qualifying {
			// Refresh the escape side while the obstacle is live.
			a.evadeSign = a.escapeSign(events)
		} else {
			a.state = Recovering
			a.clear = 0
			monitoring.AvoidanceState.Set(2)
			monitoring.Logf("avoidance: obstacle cleared, recovering")
		}
	case Recovering:
		if qualifying {
			// Re-qualification skips the persistence debounce.
			a.enterEvading(events)
		} else {
			a.clear++
			if a.clear >= a.params.SettleTicks {
				a.state = Idle
				a.streak = 0
				monitoring.AvoidanceState.Set(0)
				monitoring.Logf("avoidance: settled, resuming navigation")
			}
		}
	}

	return a.decisionFor(headingDeg)
}

func (a *Arbiter) decisionFor(headingDeg float64) Decision {
	switch a.state {
	case Evading:
		return Decision{
			State:           Evading,
			Override:        true,
			OverrideHeading: true,
			HeadingDeg:      geo.NormalizeCourse(headingDeg + a.evadeSign*a.params.EvadeTurnDeg),
			SpeedMps:        a.params.CrawlSpeedMps,
		}
	case Recovering:
		return Decision{
			State:    Recovering,
			Override: true,
			SpeedMps: a.params.RecoverySpeedMps,
		}
	default:
		return Decision{State: Idle}
	}
}

func (a *Arbiter) qualifying(events []Event) bool {
	for _, ev := range events {
		if ev.Severity >= a.params.SeverityThreshold {
			return true
		}
	}
	return false
}

func (a *Arbiter) enterEvading(events []Event) {
	a.state = Evading
	a.evadeSign = a.escapeSign(events)
	monitoring.AvoidanceState.Set(1)
	worst := worstEvent(events)
	monitoring.Logf("avoidance: evading zone %s (%.2fm, severity %.2f)",
		worst.ZoneID, worst.MinDistanceM, worst.Severity)
}

// escapeSign picks the turn direction: +1 for starboard, -1 for port.
// Each side's clearance is the nearest obstacle among its zones, with
// event-free zones counting at their full threshold. Ties steer away
// from the mean bearing of the worst obstacle.
func (a *Arbiter) escapeSign(events []Event) float64 {
	byZone := make(map[string]Event, len(events))
	for _, ev := range events {
		byZone[ev.ZoneID] = ev
	}

	portClear := math.Inf(1)
	starboardClear := math.Inf(1)
	for _, zone := range a.zones {
		clearance := zone.ThresholdMeters
		if ev, ok := byZone[zone.ID]; ok {
			clearance = ev.MinDistanceM
		}
		center := (zone.MinAngleDeg + zone.MaxAngleDeg) / 2
		if center < 0 {
			portClear = math.Min(portClear, clearance)
		} else if center > 0 {
			starboardClear = math.Min(starboardClear, clearance)
		} else {
			// A dead-ahead zone constrains both sides.
			portClear = math.Min(portClear, clearance)
			starboardClear = math.Min(starboardClear, clearance)
		}
	}

	if starboardClear > portClear {
		return 1
	}
	if portClear > starboardClear {
		return -1
	}
	if worstEvent(events).MeanAngleDeg >= 0 {
		return -1
	}
	return 1
}

func worstEvent(events []Event) Event {
	var worst Event
	for _, ev := range events {
		if ev.Severity >= worst.Severity {
			worst = ev
		}
	}
	return worst
}
