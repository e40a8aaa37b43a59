package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursecompass/storefront/internal/config"
	"github.com/coursecompass/storefront/internal/infra"
	"github.com/coursecompass/storefront/internal/routes"
)

// Server wraps the Fiber application and the resources it runs on.
type Server struct {
	app *fiber.App
	cfg config.Config
	res *infra.Resources
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, res *infra.Resources, logger *slog.Logger) (*Server, error) {
	// WriteTimeout leaves room for attempts long-polled up to 30s.
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 45 * time.Second,
		BodyLimit:    25 << 20,
	})

	if err := routes.Setup(app, routes.Deps{
		Cfg:    cfg,
		DB:     res.DB,
		Cache:  res.Cache,
		State:  res.State,
		Logger: logger,
	}); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, res: res}, nil
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
