// Package metrics bundles the Prometheus instrumentation for the
// location service and exposes a ready-to-mount /metrics handler.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Position publication sources.
const (
	SourceFresh        = "fresh"
	SourceExtrapolated = "extrapolated"
)

// Collector holds the service's metrics. All methods are nil-safe so
// instrumentation can be left unconfigured in tests.
type Collector struct {
	gatherer prometheus.Gatherer

	ConnectedCameras     prometheus.Gauge
	Ticks                prometheus.Counter
	Positions            *prometheus.CounterVec
	RejectedObservations prometheus.Counter
	CompassErrors        prometheus.Counter
}

// NewCollector registers the camtrack metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cameras, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camtrack_connected_cameras",
		Help: "Current number of registered camera nodes.",
	}), "camtrack_connected_cameras")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camtrack_ticks_total",
		Help: "Total tick-loop iterations since start.",
	}), "camtrack_ticks_total")
	if err != nil {
		return nil, err
	}

	positions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camtrack_positions_total",
		Help: "Published position estimates, labeled by source (fresh or extrapolated).",
	}, []string{"source"})
	positions, err = registerCounterVec(reg, positions, "camtrack_positions_total")
	if err != nil {
		return nil, err
	}

	rejected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camtrack_observations_rejected_total",
		Help: "Bearing observations discarded for falling outside a camera's field of view.",
	}), "camtrack_observations_rejected_total")
	if err != nil {
		return nil, err
	}

	compassErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camtrack_compass_errors_total",
		Help: "Fresh position publishes that found no valid compass heading.",
	}), "camtrack_compass_errors_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:             gatherer,
		ConnectedCameras:     cameras,
		Ticks:                ticks,
		Positions:            positions,
		RejectedObservations: rejected,
		CompassErrors:        compassErrors,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetConnectedCameras updates the camera gauge.
func (c *Collector) SetConnectedCameras(n int) {
	if c == nil || c.ConnectedCameras == nil {
		return
	}
	c.ConnectedCameras.Set(float64(n))
}

// TickCompleted records one tick-loop iteration.
func (c *Collector) TickCompleted() {
	if c == nil || c.Ticks == nil {
		return
	}
	c.Ticks.Inc()
}

// PositionPublished records a published estimate by source.
func (c *Collector) PositionPublished(source string) {
	if c == nil || c.Positions == nil {
		return
	}
	c.Positions.WithLabelValues(source).Inc()
}

// CompassUnavailable records a publish that wanted a compass reading
// but found none valid.
func (c *Collector) CompassUnavailable() {
	if c == nil || c.CompassErrors == nil {
		return
	}
	c.CompassErrors.Inc()
}

// ObservationRejected records a discarded out-of-range bearing.
func (c *Collector) ObservationRejected() {
	if c == nil || c.RejectedObservations == nil {
		return
	}
	c.RejectedObservations.Inc()
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
