package geo

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestNormalizeAngle(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"pi stays", math.Pi, math.Pi},
		{"negative pi wraps up", -math.Pi, math.Pi},
		{"past pi", math.Pi + 0.5, -math.Pi + 0.5},
		{"two full turns", 4 * math.Pi, 0},
		{"large negative", -7 * math.Pi / 2, math.Pi / 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeAngle(tc.in)
			if !almostEqual(got, tc.want) {
				t.Errorf("NormalizeAngle(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// Huge rotations pass registration validation, so normalization must
// stay cheap and in range no matter the magnitude.
func TestNormalizeAngleLargeMagnitude(t *testing.T) {
	for _, v := range []float64{1e18 + 0.25, -1e18, 1e300, -1e300} {
		got := NormalizeAngle(v)
		if !(got > -math.Pi && got <= math.Pi) {
			t.Errorf("NormalizeAngle(%v) = %v, outside (-π, π]", v, got)
		}
	}
}

func TestAngleDelta(t *testing.T) {
	// Crossing the ±π seam must take the short way around.
	got := AngleDelta(math.Pi-0.1, -math.Pi+0.1)
	if !almostEqual(got, 0.2) {
		t.Errorf("AngleDelta across seam = %v, want 0.2", got)
	}

	got = AngleDelta(0.5, 0.2)
	if !almostEqual(got, -0.3) {
		t.Errorf("AngleDelta(0.5, 0.2) = %v, want -0.3", got)
	}
}

func TestPlacedCameraValid(t *testing.T) {
	good := PlacedCamera{Position: Position{X: 1, Y: 2, Rotation: 0.3}, FOV: Rad(62.2)}
	if !good.Valid() {
		t.Error("expected valid camera")
	}

	bad := []PlacedCamera{
		{Position: Position{X: math.NaN()}, FOV: 1},
		{Position: Position{}, FOV: 0},
		{Position: Position{}, FOV: -1},
		{Position: Position{}, FOV: math.Inf(1)},
		{Position: Position{}, FOV: 7}, // > 2π
	}
	for i, c := range bad {
		if c.Valid() {
			t.Errorf("case %d: expected invalid camera %+v", i, c)
		}
	}
}

func TestInFOV(t *testing.T) {
	cam := PlacedCamera{FOV: 1.0}
	for _, b := range []float64{-0.5, 0, 0.5} {
		if !cam.InFOV(b) {
			t.Errorf("bearing %v should be inside ±0.5", b)
		}
	}
	for _, b := range []float64{-0.51, 0.51, 3} {
		if cam.InFOV(b) {
			t.Errorf("bearing %v should be outside ±0.5", b)
		}
	}
}

func TestDegRadRoundTrip(t *testing.T) {
	if !almostEqual(Rad(180), math.Pi) {
		t.Errorf("Rad(180) = %v", Rad(180))
	}
	if !almostEqual(Deg(math.Pi/2), 90) {
		t.Errorf("Deg(π/2) = %v", Deg(math.Pi/2))
	}
}
