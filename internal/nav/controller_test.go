package nav

import (
	"math"
	"testing"
	"time"

	"github.com/openwaters/helmsman/internal/mission"
	"github.com/openwaters/helmsman/internal/sensors"
)

func testController() *Controller {
	return NewController(Params{
		SteeringGain:   1.0,
		MaxTurnRateDeg: 15,
		CruiseSpeedMps: 2.0,
		MinSpeedMps:    0.5,
		DecelDistanceM: 10,
	})
}

func pose(lat, lon, heading float64) sensors.Pose {
	return sensors.Pose{Latitude: lat, Longitude: lon, Heading: heading, Timestamp: time.Unix(0, 0)}
}

func TestComputeSmallErrorProportional(t *testing.T) {
	c := testController()
	// Waypoint due east, heading 80: error +10 within the clamp.
	cmd := c.Compute(pose(0, 0, 80), mission.Waypoint{Latitude: 0, Longitude: 1})

	if math.Abs(cmd.Heading-90) > 0.1 {
		t.Errorf("heading = %v, want 90", cmd.Heading)
	}
}

func TestComputeClampsTurnRate(t *testing.T) {
	c := testController()
	// Waypoint due east, heading north: error +90 clamps to +15.
	cmd := c.Compute(pose(0, 0, 0), mission.Waypoint{Latitude: 0, Longitude: 1})

	if math.Abs(cmd.Heading-15) > 0.1 {
		t.Errorf("heading = %v, want clamp to 15", cmd.Heading)
	}
}

func TestComputeTurnsShorterWay(t *testing.T) {
	c := testController()
	// Waypoint due north, heading 10: small left turn, not a 350° right one.
	cmd := c.Compute(pose(0, 0, 10), mission.Waypoint{Latitude: 1, Longitude: 0})

	if math.Abs(cmd.Heading-0) > 0.1 {
		t.Errorf("heading = %v, want 0", cmd.Heading)
	}
}

func TestComputeWrapsAroundNorth(t *testing.T) {
	c := testController()
	// Heading 350, waypoint due north: error +10 crosses 360.
	cmd := c.Compute(pose(0, 0, 350), mission.Waypoint{Latitude: 1, Longitude: 0})

	if math.Abs(cmd.Heading-0) > 0.1 {
		t.Errorf("heading = %v, want wrap to 0", cmd.Heading)
	}
}

func TestComputeCruiseOutsideDecelZone(t *testing.T) {
	c := testController()
	// ~111 km away: full cruise speed.
	cmd := c.Compute(pose(0, 0, 0), mission.Waypoint{Latitude: 1, Longitude: 0})

	if cmd.Speed != 2.0 {
		t.Errorf("speed = %v, want cruise 2.0", cmd.Speed)
	}
}

func TestComputeDecelerationZone(t *testing.T) {
	c := testController()
	// ~5.6 m north of the waypoint: inside the 10 m zone, speed scales.
	cmd := c.Compute(pose(0.00005, 0, 180), mission.Waypoint{Latitude: 0, Longitude: 0})

	if cmd.Speed >= 2.0 {
		t.Errorf("speed = %v, want below cruise inside the decel zone", cmd.Speed)
	}
	if cmd.Speed < 0.5 {
		t.Errorf("speed = %v, below the minimum floor", cmd.Speed)
	}
}

func TestComputeMinimumSpeedFloor(t *testing.T) {
	c := testController()
	// Practically on top of the waypoint.
	cmd := c.Compute(pose(0.000001, 0, 0), mission.Waypoint{Latitude: 0, Longitude: 0})

	if cmd.Speed != 0.5 {
		t.Errorf("speed = %v, want minimum 0.5", cmd.Speed)
	}
}
