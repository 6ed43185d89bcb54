package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/flush"
	"github.com/papercomputeco/recall/pkg/retrieval"
)

// Server is the API server for appending, flushing, and querying memories.
type Server struct {
	config    Config
	buffer    buffer.Driver
	flusher   *flush.Orchestrator
	retriever *retrieval.Service
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server. The drivers are injected so the serve
// command can share them with the background flush loop.
func NewServer(config Config, buf buffer.Driver, flusher *flush.Orchestrator, retriever *retrieval.Service, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		buffer:    buf,
		flusher:   flusher,
		retriever: retriever,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/append", s.handleAppend)
	app.Post("/v1/flush", s.handleFlush)
	app.Post("/v1/prune", s.handlePrune)
	app.Get("/v1/search", s.handleSearch)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
