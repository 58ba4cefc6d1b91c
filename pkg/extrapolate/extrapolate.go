// Package extrapolate predicts a target position between fresh
// triangulations from a short history of timed samples.
package extrapolate

import (
	"time"

	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// Sample is one historical position estimate.
type Sample struct {
	Position geo.Position
	Time     time.Time
}

// Extrapolator predicts a position at an instant strictly after the
// latest history sample. It returns false when the history is
// insufficient for a prediction.
type Extrapolator interface {
	Extrapolate(history []Sample, at time.Time) (geo.Position, bool)
}

// Config selects a strategy and bounds how far past the last fresh
// estimate predictions remain valid. A nil Strategy disables
// extrapolation entirely.
type Config struct {
	Strategy Extrapolator
	Horizon  time.Duration
}

// Enabled reports whether a strategy is configured.
func (c Config) Enabled() bool { return c.Strategy != nil }

// Linear projects the instantaneous velocity and angular velocity of the
// two most recent samples forward in time.
type Linear struct{}

// Extrapolate implements Extrapolator.
func (Linear) Extrapolate(history []Sample, at time.Time) (geo.Position, bool) {
	if len(history) < 2 {
		return geo.Position{}, false
	}

	prev := history[len(history)-2]
	last := history[len(history)-1]

	dt := last.Time.Sub(prev.Time).Seconds()
	if dt <= 0 || !at.After(last.Time) {
		return geo.Position{}, false
	}

	vx := (last.Position.X - prev.Position.X) / dt
	vy := (last.Position.Y - prev.Position.Y) / dt
	w := geo.AngleDelta(prev.Position.Rotation, last.Position.Rotation) / dt

	ahead := at.Sub(last.Time).Seconds()
	return geo.Position{
		X:        last.Position.X + vx*ahead,
		Y:        last.Position.Y + vy*ahead,
		Rotation: geo.NormalizeAngle(last.Position.Rotation + w*ahead),
	}, true
}

// defaultHistoryDepth bounds how many fresh samples are retained; linear
// projection only ever looks at the last two, deeper strategies may use
// more.
const defaultHistoryDepth = 8

// History is a bounded buffer of the most recent fresh samples. It is not
// goroutine safe; the tick loop is its only user.
type History struct {
	max     int
	samples []Sample
}

// NewHistory creates a buffer retaining at most max samples (a
// non-positive max falls back to the default depth).
func NewHistory(max int) *History {
	if max <= 0 {
		max = defaultHistoryDepth
	}
	return &History{max: max, samples: make([]Sample, 0, max)}
}

// Push appends a sample, evicting the oldest when full.
func (h *History) Push(s Sample) {
	if len(h.samples) == h.max {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}
	h.samples = append(h.samples, s)
}

// Samples returns the buffered samples, oldest first. The returned slice
// is the internal buffer; callers must not retain it across a Push.
func (h *History) Samples() []Sample { return h.samples }

// Latest returns the most recent sample.
func (h *History) Latest() (Sample, bool) {
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Clear drops all samples, used when the extrapolation horizon lapses.
func (h *History) Clear() { h.samples = h.samples[:0] }
