package obstacle

import (
	"testing"
	"time"
)

func testParams() Params {
	return Params{
		SeverityThreshold: 0.2,
		PersistenceTicks:  3,
		SettleTicks:       10,
		EvadeTurnDeg:      45,
		CrawlSpeedMps:     0.3,
		RecoverySpeedMps:  0.8,
	}
}

func centerEvent(severity float64) Event {
	return Event{
		ZoneID:       "front-center",
		MinAngleDeg:  -20,
		MaxAngleDeg:  20,
		MinDistanceM: 2.0 * (1 - severity),
		MeanAngleDeg: 5,
		Severity:     severity,
		DetectedAt:   time.Now(),
	}
}

func TestPersistenceDebounce(t *testing.T) {
	a := NewArbiter(testParams(), testZones())

	// Ticks 1 and 2: obstacle present but not yet persistent.
	for tick := 1; tick <= 2; tick++ {
		d := a.Update(90, []Event{centerEvent(0.5)})
		if d.State != Idle || d.Override {
			t.Fatalf("tick %d: state %v override %v, want idle pass-through", tick, d.State, d.Override)
		}
	}

	// Tick 3 completes the streak: evading, heading deviates.
	d := a.Update(90, []Event{centerEvent(0.5)})
	if d.State != Evading {
		t.Fatalf("tick 3: state = %v, want evading", d.State)
	}
	if !d.Override || !d.OverrideHeading {
		t.Fatal("tick 3: expected heading override")
	}
	if d.HeadingDeg == 90 {
		t.Error("evading heading equals direct course")
	}
	if d.SpeedMps != 0.3 {
		t.Errorf("evading speed = %v, want crawl 0.3", d.SpeedMps)
	}
}

func TestTransientBelowPersistenceIgnored(t *testing.T) {
	a := NewArbiter(testParams(), testZones())

	// Two qualifying ticks, then clear: the streak resets.
	a.Update(90, []Event{centerEvent(0.5)})
	a.Update(90, []Event{centerEvent(0.5)})
	d := a.Update(90, nil)
	if d.State != Idle || d.Override {
		t.Fatalf("state = %v override %v after transient, want idle", d.State, d.Override)
	}

	// Two more qualifying ticks still do not trip it.
	a.Update(90, []Event{centerEvent(0.5)})
	d = a.Update(90, []Event{centerEvent(0.5)})
	if d.State != Idle {
		t.Fatalf("state = %v, want idle (streak restarted)", d.State)
	}
}

func TestLowSeverityDoesNotQualify(t *testing.T) {
	a := NewArbiter(testParams(), testZones())
	for tick := 0; tick < 5; tick++ {
		d := a.Update(90, []Event{centerEvent(0.1)})
		if d.State != Idle {
			t.Fatalf("state = %v on low-severity events, want idle", d.State)
		}
	}
}

func TestEvadingThroughRecoveringToIdle(t *testing.T) {
	a := NewArbiter(testParams(), testZones())
	for tick := 0; tick < 3; tick++ {
		a.Update(90, []Event{centerEvent(0.5)})
	}
	if a.State() != Evading {
		t.Fatalf("state = %v, want evading", a.State())
	}

	// First clear tick drops to recovering, never straight to idle.
	d := a.Update(90, nil)
	if d.State != Recovering {
		t.Fatalf("state = %v after clear, want recovering", d.State)
	}
	if !d.Override || d.OverrideHeading {
		t.Fatal("recovering should cap speed but keep the caller's heading")
	}
	if d.SpeedMps != 0.8 {
		t.Errorf("recovery speed = %v, want 0.8", d.SpeedMps)
	}

	// Settle ticks 2..9 stay recovering.
	for tick := 2; tick < 10; tick++ {
		if d = a.Update(90, nil); d.State != Recovering {
			t.Fatalf("settle tick %d: state = %v, want recovering", tick, d.State)
		}
	}

	// Tenth clear tick settles back to idle.
	if d = a.Update(90, nil); d.State != Idle || d.Override {
		t.Fatalf("state = %v override %v after settling, want idle", d.State, d.Override)
	}
}

func TestRecoveringRequalifiesImmediately(t *testing.T) {
	a := NewArbiter(testParams(), testZones())
	for tick := 0; tick < 3; tick++ {
		a.Update(90, []Event{centerEvent(0.5)})
	}
	a.Update(90, nil) // recovering

	// One qualifying tick is enough while recovering: no debounce.
	d := a.Update(90, []Event{centerEvent(0.5)})
	if d.State != Evading {
		t.Fatalf("state = %v on re-qualification, want evading", d.State)
	}
}

func TestHoldKeepsStateThroughDropout(t *testing.T) {
	a := NewArbiter(testParams(), testZones())
	for tick := 0; tick < 3; tick++ {
		a.Update(90, []Event{centerEvent(0.5)})
	}

	// A scan dropout must not be read as "clear".
	d := a.Hold(90)
	if d.State != Evading || !d.Override {
		t.Fatalf("state = %v after dropout, want evading held", d.State)
	}
}

func TestEscapeTurnsTowardClearerSide(t *testing.T) {
	tests := []struct {
		name    string
		events  []Event
		heading float64
		want    float64
	}{
		{
			name: "obstacle to starboard turns port",
			events: []Event{{
				ZoneID: "front-right", MinAngleDeg: 20, MaxAngleDeg: 60,
				MinDistanceM: 0.8, MeanAngleDeg: 40, Severity: 0.47,
			}},
			heading: 90,
			want:    45,
		},
		{
			name: "obstacle to port turns starboard",
			events: []Event{{
				ZoneID: "front-left", MinAngleDeg: -60, MaxAngleDeg: -20,
				MinDistanceM: 0.8, MeanAngleDeg: -40, Severity: 0.47,
			}},
			heading: 90,
			want:    135,
		},
		{
			name: "dead-ahead tie steers away from mean bearing",
			events: []Event{{
				ZoneID: "front-center", MinAngleDeg: -20, MaxAngleDeg: 20,
				MinDistanceM: 1.0, MeanAngleDeg: 8, Severity: 0.5,
			}},
			heading: 90,
			want:    45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArbiter(testParams(), testZones())
			var d Decision
			for tick := 0; tick < 3; tick++ {
				d = a.Update(tt.heading, tt.events)
			}
			if d.State != Evading {
				t.Fatalf("state = %v, want evading", d.State)
			}
			if d.HeadingDeg != tt.want {
				t.Errorf("evade heading = %v, want %v", d.HeadingDeg, tt.want)
			}
		})
	}
}
