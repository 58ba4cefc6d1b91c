package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/sightline-robotics/camtrack/pkg/geo"
	"github.com/sightline-robotics/camtrack/pkg/hub"
	"github.com/sightline-robotics/camtrack/pkg/locate"
)

// PositionUpdate is the JSON shape streamed on /ws/positions.
type PositionUpdate struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Rotation       float64 `json:"rotation"`
	Elapsed        float64 `json:"elapsed_s"`
	Extrapolated   bool    `json:"extrapolated"`
	ExtrapolatedBy float64 `json:"extrapolated_by_s,omitempty"`
}

// CameraEvent is the JSON shape streamed on /ws/events.
type CameraEvent struct {
	Kind     string  `json:"kind"` // connect or disconnect
	Addr     string  `json:"addr"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	FOV      float64 `json:"fov"`
}

// StatusResponse is the JSON shape of /api/status.
type StatusResponse struct {
	Cameras  int             `json:"cameras"`
	Position *PositionUpdate `json:"position,omitempty"`
}

func positionUpdate(tp locate.TimedPosition) PositionUpdate {
	return PositionUpdate{
		X:              tp.Position.X,
		Y:              tp.Position.Y,
		Rotation:       tp.Position.Rotation,
		Elapsed:        tp.Time.Sub(tp.StartTime).Seconds(),
		Extrapolated:   tp.Extrapolated,
		ExtrapolatedBy: tp.ExtrapolatedBy.Seconds(),
	}
}

func cameraEvent(kind, addr string, cam geo.PlacedCamera) CameraEvent {
	return CameraEvent{
		Kind:     kind,
		Addr:     addr,
		X:        cam.Position.X,
		Y:        cam.Position.Y,
		Rotation: cam.Position.Rotation,
		FOV:      cam.FOV,
	}
}

// handleStatus reports the current camera count and last known position.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{Cameras: s.svc.CameraCount()}
	if tp, ok := s.svc.GetPosition(); ok {
		update := positionUpdate(tp)
		resp.Position = &update
	}
	return c.JSON(resp)
}

func (s *Server) handlePositionsWS(conn *websocket.Conn) {
	hub.NewClient(s.positionHub, conn).Run()
}

func (s *Server) handleEventsWS(conn *websocket.Conn) {
	hub.NewClient(s.eventHub, conn).Run()
}
