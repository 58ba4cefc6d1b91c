// Package web exposes the location service to outside consumers: a
// small status API, the Prometheus endpoint, and websocket streams of
// position updates and camera lifecycle events.
package web

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/sightline-robotics/camtrack/internal/log"
	"github.com/sightline-robotics/camtrack/internal/metrics"
	"github.com/sightline-robotics/camtrack/pkg/geo"
	"github.com/sightline-robotics/camtrack/pkg/hub"
	"github.com/sightline-robotics/camtrack/pkg/locate"
)

// Server is the consumer-facing HTTP/websocket front of the service.
type Server struct {
	app  *fiber.App
	port int
	svc  *locate.Service

	positionHub *hub.Hub
	eventHub    *hub.Hub

	subscriptions []uuid.UUID
}

// NewServer wires a server to the given service. The metrics collector
// may be nil, in which case /metrics serves the default registry.
func NewServer(svc *locate.Service, collector *metrics.Collector, port int) *Server {
	s := &Server{
		port:        port,
		svc:         svc,
		positionHub: hub.New("positions"),
		eventHub:    hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "camtrack",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/api/status", s.handleStatus)
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/positions", websocket.New(s.handlePositionsWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	s.subscribe()
	return s
}

// subscribe registers the hubs as ordinary service subscribers; hub
// broadcasts never block, so the tick loop is unaffected by slow
// stream consumers.
func (s *Server) subscribe() {
	s.subscriptions = append(s.subscriptions,
		s.svc.SubscribePosition(func(tp locate.TimedPosition) error {
			return s.positionHub.BroadcastJSON(positionUpdate(tp))
		}),
		s.svc.SubscribeConnection(func(addr string, cam geo.PlacedCamera) error {
			return s.eventHub.BroadcastJSON(cameraEvent("connect", addr, cam))
		}),
		s.svc.SubscribeDisconnection(func(addr string, cam geo.PlacedCamera) error {
			return s.eventHub.BroadcastJSON(cameraEvent("disconnect", addr, cam))
		}),
	)
}

// Start runs the hubs and the HTTP server. Blocks until Shutdown.
func (s *Server) Start() error {
	go s.positionHub.Run()
	go s.eventHub.Run()

	log.Info("stream server listening", "port", s.port)
	return s.app.Listen(fmt.Sprintf(":%d", s.port))
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("stream server exited", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server and both hubs and detaches from the
// service.
func (s *Server) Shutdown() error {
	for _, id := range s.subscriptions {
		s.svc.Unsubscribe(id)
	}
	s.positionHub.Stop()
	s.eventHub.Stop()
	return s.app.Shutdown()
}
