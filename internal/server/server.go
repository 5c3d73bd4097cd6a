package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loandesk/loandesk/internal/app"
	"github.com/loandesk/loandesk/internal/middleware"
	"github.com/loandesk/loandesk/internal/routes"
)

// Server wraps the Fiber application and the application core.
type Server struct {
	app  *fiber.App
	core *app.App
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(core *app.App) (*Server, error) {
	fapp := fiber.New(fiber.Config{
		AppName:      core.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: middleware.ErrorHandler(core.Logger),
	})

	if err := routes.Setup(fapp, routes.Deps{Core: core}); err != nil {
		return nil, err
	}

	return &Server{app: fapp, core: core}, nil
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.core.Cfg.Address())
}

// Shutdown gracefully stops the HTTP server and drains queued ledger writes.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	return s.core.Close(ctx)
}
