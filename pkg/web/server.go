// Package web provides the measurement dashboard server: REST access to
// the engine's current state and a websocket stream of per-tick
// guidance snapshots.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/optiscope/go-pdmeter/internal/log"
	"github.com/optiscope/go-pdmeter/pkg/engine"
	"github.com/optiscope/go-pdmeter/pkg/hub"
	"github.com/optiscope/go-pdmeter/pkg/metrology"
)

// Server exposes the engine to a presentation layer.
type Server struct {
	app  *fiber.App
	port string

	engine      *engine.Engine
	guidanceHub *hub.Hub
	resultHub   *hub.Hub
}

// NewServer builds the dashboard server around a running engine.
func NewServer(port string, eng *engine.Engine) *Server {
	s := &Server{
		port:        port,
		engine:      eng,
		guidanceHub: hub.New("guidance"),
		resultHub:   hub.New("results"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "pdmeter dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/config", s.handleConfig)
	api.Post("/retake", s.handleRetake)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/guidance", websocket.New(s.handleGuidanceWS))
	app.Get("/ws/results", websocket.New(s.handleResultsWS))

	s.app = app
	return s
}

// Start runs the hubs and listens. Blocks; call in a goroutine.
func (s *Server) Start() error {
	go s.guidanceHub.Run()
	go s.resultHub.Run()
	log.Info("dashboard listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// PublishGuidance streams a per-tick snapshot to dashboard clients.
// Safe to call from the engine's tick loop.
func (s *Server) PublishGuidance(snap engine.Snapshot) {
	if s.guidanceHub.ClientCount() == 0 {
		return
	}
	if err := s.guidanceHub.BroadcastJSON(snap); err != nil {
		log.Warn("guidance broadcast failed", "error", err)
	}
}

// PublishResult streams a completed session's final measurement.
func (s *Server) PublishResult(sessionID string, final metrology.Measurement, sampleCount int) {
	payload := struct {
		SessionID   string                `json:"session_id"`
		Final       metrology.Measurement `json:"final"`
		SampleCount int                   `json:"sample_count"`
	}{sessionID, final, sampleCount}

	if err := s.resultHub.BroadcastJSON(payload); err != nil {
		log.Warn("result broadcast failed", "error", err)
	}
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.engine.Snapshot())
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.engine.Config())
}

func (s *Server) handleRetake(c *fiber.Ctx) error {
	s.engine.Reset()
	return c.JSON(fiber.Map{"status": "ok", "session_id": s.engine.Snapshot().SessionID})
}

func (s *Server) handleGuidanceWS(c *websocket.Conn) {
	hub.NewClient(s.guidanceHub, c).Run()
}

func (s *Server) handleResultsWS(c *websocket.Conn) {
	hub.NewClient(s.resultHub, c).Run()
}
