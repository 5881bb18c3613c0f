// Package server exposes the liveness endpoint external monitors poll to
// keep the deployment alive.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the HTTP liveness responder. It carries no bot state.
type Server struct {
	echo *echo.Echo
	addr string
}

// New builds the server on addr.
func New(log *slog.Logger, addr string) *Server {
	if addr == "" {
		addr = ":8000"
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "I AM ALIVE")
	})
	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.HEAD("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return &Server{echo: e, addr: addr}
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
