// Package locate is the location service: it owns the camera registry,
// runs the fixed-cadence tick loop that triangulates and extrapolates
// the target position, blends in an optional compass heading, and
// delivers position and lifecycle events to subscribers.
package locate

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/sightline-robotics/camtrack/internal/log"
	"github.com/sightline-robotics/camtrack/internal/metrics"
	"github.com/sightline-robotics/camtrack/pkg/camnet"
	"github.com/sightline-robotics/camtrack/pkg/compass"
	"github.com/sightline-robotics/camtrack/pkg/extrapolate"
	"github.com/sightline-robotics/camtrack/pkg/geo"
	"github.com/sightline-robotics/camtrack/pkg/triangulate"
)

// Config wires a Service together. Port and TickInterval are required;
// everything else has a nil-safe default.
type Config struct {
	// Port the camera listener binds. Bind failure fails Start.
	Port int

	// TickInterval is the recompute/publish cadence.
	TickInterval time.Duration

	// Extrapolation fills gaps between fresh triangulations. A nil
	// strategy disables it: stale positions drop after one tick.
	Extrapolation extrapolate.Config

	// Compass optionally overrides the triangulated heading. May be nil.
	Compass compass.Compass

	// Clock defaults to the wall clock; tests inject a mock.
	Clock clock.Clock

	// Metrics may be nil (no instrumentation).
	Metrics *metrics.Collector

	// OnSubscriberError receives callback failures. Defaults to logging;
	// failures never interrupt delivery or the tick loop.
	OnSubscriberError func(error)
}

// Service is the running location service. Construct with Start.
type Service struct {
	cfg      Config
	clk      clock.Clock
	registry *camnet.Registry
	listener *camnet.Listener
	history  *extrapolate.History

	startTime time.Time

	// published is written only by the tick loop; read by GetPosition
	// and event dispatch. Critical sections are brief and never span I/O.
	mu           sync.RWMutex
	published    TimedPosition
	hasPublished bool

	// lastFresh is touched only by the tick goroutine.
	lastFresh    time.Time
	hasLastFresh bool

	subs subscribers

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Start binds the camera listener, spawns the tick loop, and returns the
// service handle. It fails when the port cannot be bound.
func Start(cfg Config) (*Service, error) {
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("locate: tick interval must be positive, got %v", cfg.TickInterval)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	s := &Service{
		cfg:       cfg,
		clk:       clk,
		registry:  camnet.NewRegistry(),
		history:   extrapolate.NewHistory(0),
		startTime: clk.Now(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	listener, err := camnet.Listen(cfg.Port, s.registry, camnet.Handler{
		OnConnect:    s.cameraConnected,
		OnDisconnect: s.cameraDisconnected,
		OnReject: func(string, float64) {
			cfg.Metrics.ObservationRejected()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("locate: %w", err)
	}
	s.listener = listener

	go s.run()
	log.Info("location service started", "port", cfg.Port, "tick", cfg.TickInterval)
	return s, nil
}

// Addr returns the camera listener's bound address.
func (s *Service) Addr() string { return s.listener.Addr().String() }

// CameraCount returns the number of currently registered cameras.
func (s *Service) CameraCount() int { return s.registry.Len() }

// GetPosition returns the most recently published estimate. It never
// blocks waiting for the next tick; ok is false when no position is
// currently available, which is a legitimate steady state.
func (s *Service) GetPosition() (TimedPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published, s.hasPublished
}

// Stop shuts the service down: tick loop first, then the compass
// (awaited), then the listener with its in-flight camera connections.
// Safe to call more than once.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done

		var err error
		if s.cfg.Compass != nil {
			err = multierr.Append(err, s.cfg.Compass.Stop())
		}
		err = multierr.Append(err, s.listener.Close())
		s.stopErr = err
		log.Info("location service stopped")
	})
	return s.stopErr
}

// run is the tick loop. Ticks are strictly sequential: a tick finishes
// before the next one is processed.
func (s *Service) run() {
	defer close(s.done)

	ticker := s.clk.Ticker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(s.clk.Now())
		}
	}
}

func (s *Service) tick(now time.Time) {
	defer s.cfg.Metrics.TickCompleted()

	snapshot := s.registry.Snapshot()
	sightings := make([]triangulate.Sighting, len(snapshot))
	for i, entry := range snapshot {
		sightings[i] = triangulate.Sighting{Camera: entry.Camera, Bearing: entry.Bearing}
	}

	if pos, ok := triangulate.Locate(sightings); ok {
		s.publishFresh(now, pos)
		return
	}
	s.publishExtrapolated(now)
}

// publishFresh records a new triangulation, letting the compass override
// its heading when a reading is available.
func (s *Service) publishFresh(now time.Time, pos geo.Position) {
	if s.cfg.Compass != nil {
		if heading, ok := s.cfg.Compass.Value(); ok {
			pos.Rotation = geo.NormalizeAngle(heading)
		} else {
			s.cfg.Metrics.CompassUnavailable()
		}
	}

	s.history.Push(extrapolate.Sample{Position: pos, Time: now})
	s.lastFresh = now
	s.hasLastFresh = true

	tp := TimedPosition{Position: pos, StartTime: s.startTime, Time: now}
	s.setPublished(tp)
	s.cfg.Metrics.PositionPublished(metrics.SourceFresh)
	s.subs.dispatchPosition(tp, s.reportSubscriberError)
}

// publishExtrapolated fills the gap after a missed triangulation, or
// clears the published value once the horizon lapses.
func (s *Service) publishExtrapolated(now time.Time) {
	if !s.cfg.Extrapolation.Enabled() || !s.hasLastFresh {
		s.clearPublished()
		return
	}

	elapsed := now.Sub(s.lastFresh)
	if elapsed <= 0 {
		// Tick landed on the fresh instant itself; the published value
		// is already current, nothing to project or expire.
		return
	}
	if elapsed > s.cfg.Extrapolation.Horizon {
		// Past the horizon a projection would silently diverge; report
		// "no position" instead and drop the stale history.
		s.history.Clear()
		s.hasLastFresh = false
		s.clearPublished()
		return
	}

	pos, ok := s.cfg.Extrapolation.Strategy.Extrapolate(s.history.Samples(), now)
	if !ok {
		s.clearPublished()
		return
	}

	tp := TimedPosition{
		Position:       pos,
		StartTime:      s.startTime,
		Time:           now,
		ExtrapolatedBy: elapsed,
		Extrapolated:   true,
	}
	s.setPublished(tp)
	s.cfg.Metrics.PositionPublished(metrics.SourceExtrapolated)
	s.subs.dispatchPosition(tp, s.reportSubscriberError)
}

func (s *Service) setPublished(tp TimedPosition) {
	s.mu.Lock()
	s.published = tp
	s.hasPublished = true
	s.mu.Unlock()
}

func (s *Service) clearPublished() {
	s.mu.Lock()
	s.hasPublished = false
	s.mu.Unlock()
}

// cameraConnected runs on the camera connection's goroutine; events are
// delivered at the moment they occur, independent of the tick cadence.
func (s *Service) cameraConnected(addr string, cam geo.PlacedCamera) {
	s.cfg.Metrics.SetConnectedCameras(s.registry.Len())
	s.subs.dispatchConnection(addr, cam, s.reportSubscriberError)
}

func (s *Service) cameraDisconnected(addr string, cam geo.PlacedCamera) {
	s.cfg.Metrics.SetConnectedCameras(s.registry.Len())
	s.subs.dispatchDisconnection(addr, cam, s.reportSubscriberError)
}

func (s *Service) reportSubscriberError(err error) {
	if s.cfg.OnSubscriberError != nil {
		s.cfg.OnSubscriberError(err)
		return
	}
	log.Warn("subscriber callback failed", "error", err)
}
