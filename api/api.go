// Package api provides the HTTP service layer in front of the document
// store, the answering engine, and the coordination components (settings,
// interactions, updater).
package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	recoverer "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/engine"
	"github.com/kolzchut/ragbot/pkg/interactions"
	"github.com/kolzchut/ragbot/pkg/settings"
	"github.com/kolzchut/ragbot/pkg/updater"
)

// Server is the HTTP server for the ragbot service.
type Server struct {
	config   Config
	settings *settings.Store
	engine   engine.Engine
	queue    *interactions.Queue
	updater  *updater.Service
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. All collaborators are injected so one
// instance of each component is shared across the process.
func NewServer(
	config Config,
	st *settings.Store,
	eng engine.Engine,
	queue *interactions.Queue,
	upd *updater.Service,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recoverer.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.CORSOrigins, ","),
		AllowCredentials: true,
	}))

	s := &Server{
		config:   config,
		settings: st,
		engine:   eng,
		queue:    queue,
		updater:  upd,
		logger:   logger,
		app:      app,
	}

	app.Get("/health", s.handleHealth)
	app.Get("/get_config", s.handleGetConfig)
	app.Post("/set_config", s.handleSetConfig)
	app.Post("/search", s.handleSearch)
	app.Post("/rate", s.handleRate)
	app.Get("/initialize_elastic_from_json", s.handleInitialize)
	app.Post("/operate_docs", s.handleOperateDocs)
	app.Delete("/delete_doc", s.handleDeleteDoc)
	app.Get("/get_doc", s.handleGetDoc)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
