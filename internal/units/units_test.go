package units

import (
	"math"
	"testing"
)

func TestKnotsRoundTrip(t *testing.T) {
	for _, knots := range []float64{0, 1, 2.5, 10, 30.7} {
		mps := KnotsToMetersPerSecond(knots)
		back := MetersPerSecondToKnots(mps)
		if math.Abs(back-knots) > 1e-12 {
			t.Errorf("round trip %v knots -> %v", knots, back)
		}
	}
}

func TestKnotsToMetersPerSecond(t *testing.T) {
	// 1 knot is 1852 m/h by definition.
	got := KnotsToMetersPerSecond(1)
	want := 1852.0 / 3600.0
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("KnotsToMetersPerSecond(1) = %v, want %v", got, want)
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name  string
		mps   float64
		units string
		want  float64
	}{
		{name: "mps identity", mps: 5, units: MPS, want: 5},
		{name: "kmph", mps: 10, units: KMPH, want: 36},
		{name: "knots", mps: 1852.0 / 3600.0, units: Knots, want: 1},
		{name: "unknown falls back to mps", mps: 7, units: "furlongs", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertSpeed(tt.mps, tt.units); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertSpeed(%v, %q) = %v, want %v", tt.mps, tt.units, got, tt.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	if IsValid("mph") {
		t.Error("IsValid(mph) = true, want false")
	}
}
