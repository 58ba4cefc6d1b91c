// Package geo holds the small value types shared across the localization
// pipeline: 2D positions with heading, and placed camera poses.
package geo

import (
	"fmt"
	"math"
)

// Position is a 2D point plus heading (radians). Value type, never mutated.
type Position struct {
	X        float64
	Y        float64
	Rotation float64
}

// String formats the position for logs and the demo consumers.
func (p Position) String() string {
	return fmt.Sprintf("(%.3f, %.3f @ %.3f rad)", p.X, p.Y, p.Rotation)
}

// IsFinite reports whether all components are finite numbers.
func (p Position) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Rotation)
}

// PlacedCamera is a camera node's fixed pose plus its horizontal field of
// view (radians). Established at registration, immutable until disconnect.
type PlacedCamera struct {
	Position Position
	FOV      float64
}

// Valid reports whether the pose is usable: finite components and an FOV
// in (0, 2π].
func (c PlacedCamera) Valid() bool {
	return c.Position.IsFinite() && isFinite(c.FOV) && c.FOV > 0 && c.FOV <= 2*math.Pi
}

// InFOV reports whether a camera-relative bearing falls inside the
// camera's field of view.
func (c PlacedCamera) InFOV(bearing float64) bool {
	half := c.FOV / 2
	return bearing >= -half && bearing <= half
}

// NormalizeAngle wraps an angle to (-π, π]. Constant time regardless of
// magnitude; rotations arriving off the wire can be arbitrarily large.
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// AngleDelta returns the shortest signed rotation taking from to to.
func AngleDelta(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// Rad converts degrees to radians.
func Rad(deg float64) float64 { return deg * math.Pi / 180 }

// Deg converts radians to degrees.
func Deg(rad float64) float64 { return rad * 180 / math.Pi }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
