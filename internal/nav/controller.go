// Package nav converts the current pose and the active waypoint into a
// steering command: a proportional heading controller with a clamped
// turn rate and a deceleration zone around the target.
package nav

import (
	"math"

	"github.com/openwaters/helmsman/internal/geo"
	"github.com/openwaters/helmsman/internal/mission"
	"github.com/openwaters/helmsman/internal/sensors"
)

// Command is one steering command: an absolute compass heading and a
// speed over ground.
type Command struct {
	Heading float64 `json:"heading"` // degrees [0, 360)
	Speed   float64 `json:"speed"`   // m/s
}

// Controller computes steering commands toward a waypoint.
type Controller struct {
	gain       float64 // proportional heading gain
	maxTurnDeg float64 // per-tick heading change clamp
	cruise     float64 // m/s
	minSpeed   float64 // m/s floor inside the deceleration zone
	decelDist  float64 // meters
}

// Params configures a Controller.
type Params struct {
	SteeringGain   float64
	MaxTurnRateDeg float64
	CruiseSpeedMps float64
	MinSpeedMps    float64
	DecelDistanceM float64
}

// NewController creates a Controller with the given tuning.
func NewController(p Params) *Controller {
	return &Controller{
		gain:       p.SteeringGain,
		maxTurnDeg: p.MaxTurnRateDeg,
		cruise:     p.CruiseSpeedMps,
		minSpeed:   p.MinSpeedMps,
		decelDist:  p.DecelDistanceM,
	}
}

// Compute returns the command steering the vehicle from pose toward wp.
func (c *Controller) Compute(pose sensors.Pose, wp mission.Waypoint) Command {
	bearing := geo.BearingDegrees(pose.Latitude, pose.Longitude, wp.Latitude, wp.Longitude)
	headingErr := geo.NormalizeError(bearing - pose.Heading)

	turn := c.gain * headingErr
	if math.Abs(turn) > c.maxTurnDeg {
		turn = math.Copysign(c.maxTurnDeg, turn)
	}

	return Command{
		Heading: geo.NormalizeCourse(pose.Heading + turn),
		Speed:   c.speedFor(geo.DistanceMeters(pose.Latitude, pose.Longitude, wp.Latitude, wp.Longitude)),
	}
}

// speedFor reduces cruise speed linearly inside the deceleration zone,
// floored at the minimum speed.
func (c *Controller) speedFor(distanceM float64) float64 {
	if c.decelDist <= 0 || distanceM >= c.decelDist {
		return c.cruise
	}
	speed := c.cruise * distanceM / c.decelDist
	if speed < c.minSpeed {
		return c.minSpeed
	}
	return speed
}
