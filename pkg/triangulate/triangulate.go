// Package triangulate turns per-camera bearing sightings into a single
// target position estimate. It is pure computation: no goroutines, no
// state, same inputs always give the same output.
package triangulate

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// Sighting pairs a camera's fixed pose with its latest bearing
// observation (camera-relative, radians).
type Sighting struct {
	Camera  geo.PlacedCamera
	Bearing float64
}

// absoluteAngle returns the world-frame direction of the sighting ray.
func (s Sighting) absoluteAngle() float64 {
	return geo.NormalizeAngle(s.Camera.Position.Rotation + s.Bearing)
}

// singleCameraRange is the nominal distance assumed when only one camera
// sees the target and depth cannot be recovered.
const singleCameraRange = 1.0

// nearParallel bounds the 2x2 determinant below which two rays are
// considered degenerate and the least-squares path is taken instead.
const nearParallel = 1e-9

// Locate estimates the target position from the given sightings.
// It returns false when no estimate can be produced (no sightings, or a
// degenerate geometry the solver cannot recover from).
//
// Heading convention: the returned Rotation is the first sighting's
// absolute ray direction reversed, i.e. the target facing back toward
// the first camera. Callers that want a trajectory-derived heading or a
// compass-corrected one overwrite it downstream.
func Locate(sightings []Sighting) (geo.Position, bool) {
	switch len(sightings) {
	case 0:
		return geo.Position{}, false
	case 1:
		return locateSingle(sightings[0]), true
	case 2:
		if p, ok := intersectPair(sightings[0], sightings[1]); ok {
			return p, true
		}
		return leastSquares(sightings)
	default:
		return leastSquares(sightings)
	}
}

// locateSingle projects along the camera's absolute bearing ray at a
// nominal range. Depth is unknowable from one bearing, so this is only a
// coarse estimate; the heading is still well defined and finite.
func locateSingle(s Sighting) geo.Position {
	theta := s.absoluteAngle()
	sin, cos := math.Sincos(theta)
	return geo.Position{
		X:        s.Camera.Position.X + singleCameraRange*cos,
		Y:        s.Camera.Position.Y + singleCameraRange*sin,
		Rotation: headingFrom(theta),
	}
}

// intersectPair solves the exact two-ray intersection. Returns false when
// the rays are near-parallel and the system is ill-conditioned.
func intersectPair(a, b Sighting) (geo.Position, bool) {
	thetaA := a.absoluteAngle()
	thetaB := b.absoluteAngle()
	sinA, cosA := math.Sincos(thetaA)
	sinB, cosB := math.Sincos(thetaB)

	// Ca + ta*da = Cb + tb*db, solved for ta by Cramer's rule.
	det := cosB*sinA - cosA*sinB
	if math.Abs(det) < nearParallel {
		return geo.Position{}, false
	}

	dx := b.Camera.Position.X - a.Camera.Position.X
	dy := b.Camera.Position.Y - a.Camera.Position.Y
	ta := (cosB*dy - sinB*dx) / det

	return geo.Position{
		X:        a.Camera.Position.X + ta*cosA,
		Y:        a.Camera.Position.Y + ta*sinA,
		Rotation: headingFrom(thetaA),
	}, true
}

// leastSquares finds the point minimizing the summed squared normal
// distance to every sighting ray. Each ray contributes one row of the
// normal-form line equation -sinθ·x + cosθ·y = -sinθ·cx + cosθ·cy.
// Ties between three or more non-concurrent rays resolve to the
// unweighted least-squares point.
func leastSquares(sightings []Sighting) (geo.Position, bool) {
	n := len(sightings)
	a := mat.NewDense(n, 2, nil)
	rhs := mat.NewVecDense(n, nil)

	for i, s := range sightings {
		sin, cos := math.Sincos(s.absoluteAngle())
		a.Set(i, 0, -sin)
		a.Set(i, 1, cos)
		rhs.SetVec(i, -sin*s.Camera.Position.X+cos*s.Camera.Position.Y)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, rhs); err != nil {
		// An ill-conditioned but solvable system still yields a usable
		// estimate; anything else (all rays parallel) does not.
		if _, ok := err.(mat.Condition); !ok {
			return geo.Position{}, false
		}
	}

	p := geo.Position{
		X:        sol.AtVec(0),
		Y:        sol.AtVec(1),
		Rotation: headingFrom(sightings[0].absoluteAngle()),
	}
	if !p.IsFinite() {
		return geo.Position{}, false
	}
	return p, true
}

// headingFrom derives the target heading from the primary ray direction:
// the target is taken to face back toward the first camera.
func headingFrom(rayAngle float64) float64 {
	return geo.NormalizeAngle(rayAngle + math.Pi)
}
