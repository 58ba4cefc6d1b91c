package web

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sightline-robotics/camtrack/pkg/geo"
	"github.com/sightline-robotics/camtrack/pkg/locate"
)

func startStack(t *testing.T) (*Server, *locate.Service) {
	t.Helper()
	svc, err := locate.Start(locate.Config{
		Port:         0,
		TickInterval: 100 * time.Millisecond,
		Clock:        clock.NewMock(),
	})
	if err != nil {
		t.Fatalf("locate.Start: %v", err)
	}
	t.Cleanup(func() { svc.Stop() })

	srv := NewServer(svc, nil, 0)
	t.Cleanup(func() { srv.Shutdown() })
	return srv, svc
}

func TestStatusEndpointWithoutPosition(t *testing.T) {
	srv, _ := startStack(t)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var got StatusResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, body)
	}
	if got.Cameras != 0 || got.Position != nil {
		t.Errorf("StatusResponse = %+v, want empty", got)
	}
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	srv, _ := startStack(t)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/ws/positions", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("plain GET on ws route = %d, want 426", resp.StatusCode)
	}
}

func TestPositionUpdateMapping(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tp := locate.TimedPosition{
		Position:       geo.Position{X: 1, Y: 2, Rotation: 0.5},
		StartTime:      start,
		Time:           start.Add(2500 * time.Millisecond),
		Extrapolated:   true,
		ExtrapolatedBy: 500 * time.Millisecond,
	}

	got := positionUpdate(tp)
	if got.X != 1 || got.Y != 2 || got.Rotation != 0.5 {
		t.Errorf("position fields wrong: %+v", got)
	}
	if got.Elapsed != 2.5 || !got.Extrapolated || got.ExtrapolatedBy != 0.5 {
		t.Errorf("timing fields wrong: %+v", got)
	}
}

func TestCameraEventMapping(t *testing.T) {
	cam := geo.PlacedCamera{Position: geo.Position{X: 3, Y: 4, Rotation: 1}, FOV: 1.5}
	got := cameraEvent("connect", "10.0.0.1:9", cam)
	if got.Kind != "connect" || got.Addr != "10.0.0.1:9" || got.FOV != 1.5 {
		t.Errorf("cameraEvent = %+v", got)
	}
}
