// Package units provides shared constants and conversion for speed units.
// The mission runtime works in meters per second; NMEA telemetry reports
// speed over ground in knots.
package units

// Unit constants
const (
	MPS   = "mps"
	Knots = "knots"
	KMPH  = "kmph"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, Knots, KMPH}

// metersPerSecondPerKnot is the exact definition: 1852 m per nautical mile.
const metersPerSecondPerKnot = 1852.0 / 3600.0

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// KnotsToMetersPerSecond converts a speed over ground in knots to m/s.
func KnotsToMetersPerSecond(knots float64) float64 {
	return knots * metersPerSecondPerKnot
}

// MetersPerSecondToKnots converts a speed in m/s to knots.
func MetersPerSecondToKnots(mps float64) float64 {
	return mps / metersPerSecondPerKnot
}

// ConvertSpeed converts a speed from meters per second to the target units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case Knots:
		return MetersPerSecondToKnots(speedMPS)
	case KMPH:
		return speedMPS * 3.6
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}
