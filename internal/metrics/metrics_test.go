package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsServiceActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.SetConnectedCameras(3)
	c.TickCompleted()
	c.TickCompleted()
	c.PositionPublished(SourceFresh)
	c.PositionPublished(SourceExtrapolated)
	c.PositionPublished(SourceExtrapolated)
	c.ObservationRejected()

	if got := testutil.ToFloat64(c.ConnectedCameras); got != 3 {
		t.Errorf("camtrack_connected_cameras = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.Ticks); got != 2 {
		t.Errorf("camtrack_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Positions.WithLabelValues(SourceFresh)); got != 1 {
		t.Errorf("positions{fresh} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Positions.WithLabelValues(SourceExtrapolated)); got != 2 {
		t.Errorf("positions{extrapolated} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.RejectedObservations); got != 1 {
		t.Errorf("camtrack_observations_rejected_total = %v, want 1", got)
	}
}

func TestNewCollectorIsIdempotentPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}

	first.TickCompleted()
	second.TickCompleted()
	if got := testutil.ToFloat64(first.Ticks); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.SetConnectedCameras(1)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 200 {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "camtrack_connected_cameras 1") {
		t.Errorf("metrics output missing camera gauge:\n%s", rr.Body.String())
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.SetConnectedCameras(1)
	c.TickCompleted()
	c.PositionPublished(SourceFresh)
	c.ObservationRejected()
	c.CompassUnavailable()
}
