// Package api exposes the engine's control surface and samples over HTTP.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/evtop/evtop/internal/engine"
	"github.com/evtop/evtop/internal/logger"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "0.0.0.0",
		Port:         8172,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP API server.
type Server struct {
	app    *fiber.App
	logger zerolog.Logger
	host   string
	port   int
	engine *engine.Engine
}

// NewServer creates the Fiber app with the standard middleware stack.
func NewServer(config *ServerConfig, eng *engine.Engine, log zerolog.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	app := fiber.New(fiber.Config{
		AppName:               "evtop",
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Use(requestLogger(log))

	s := &Server{
		app:    app,
		logger: log.With().Str("component", "api-server").Logger(),
		host:   config.Host,
		port:   config.Port,
		engine: eng,
	}
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.healthHandler)
	s.app.Get("/ready", s.healthHandler)

	v1 := s.app.Group("/api/v1")
	v1.Get("/tables", s.listTablesHandler)
	v1.Get("/tables/:id/sample", s.sampleHandler)
	v1.Post("/tables/:id/pause", s.pauseHandler)
	v1.Post("/tables/:id/resume", s.resumeHandler)
	v1.Post("/tables/:id/sort", s.sortHandler)
	v1.Post("/tables/:id/filter", s.filterHandler)
	v1.Post("/tables/:id/clear", s.clearHandler)
	v1.Get("/logs", s.logsHandler)
}

// Listen starts serving until Shutdown.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info().Str("addr", addr).Msg("API server listening")
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) logsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	level := c.Query("level")
	return c.JSON(fiber.Map{"logs": logger.GetBuffer().Recent(limit, level)})
}

func errorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code >= 500 {
			log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		}

		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("Request")

		return err
	}
}
