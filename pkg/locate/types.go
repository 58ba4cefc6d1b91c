package locate

import (
	"fmt"
	"time"

	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// TimedPosition is one published estimate. Immutable once produced; the
// most recent instance is the service's current answer.
type TimedPosition struct {
	Position geo.Position

	// StartTime is fixed at service start and only used for
	// human-readable relative display.
	StartTime time.Time

	// Time is the instant the estimate is valid for. Monotonically
	// non-decreasing across successive ticks.
	Time time.Time

	// ExtrapolatedBy is how far past the last fresh triangulation this
	// value was projected. Zero (with Extrapolated false) for fresh
	// estimates.
	ExtrapolatedBy time.Duration
	Extrapolated   bool
}

// String renders the estimate with times relative to service start.
func (tp TimedPosition) String() string {
	t := tp.Time.Sub(tp.StartTime)
	if tp.Extrapolated {
		return fmt.Sprintf("[%s @ %.2fs -> %.2fs]", tp.Position, (t - tp.ExtrapolatedBy).Seconds(), t.Seconds())
	}
	return fmt.Sprintf("[%s @ %.2fs]", tp.Position, t.Seconds())
}

// PositionFunc receives each newly published estimate.
type PositionFunc func(TimedPosition) error

// ConnectionFunc receives camera connect or disconnect events together
// with the camera's registered pose.
type ConnectionFunc func(addr string, cam geo.PlacedCamera) error
