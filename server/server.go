// Package server wires the admin HTTP surface and the memory governor around
// a cache store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/cachewarden/internal/profile"
	apiv1 "github.com/hrygo/cachewarden/server/router/api/v1"
	"github.com/hrygo/cachewarden/server/runner/memguard"
	"github.com/hrygo/cachewarden/store"
)

type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Governor *memguard.Runner

	echoServer *echo.Echo
}

func NewServer(profile *profile.Profile, s *store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	srv := &Server{
		Profile:    profile,
		Store:      s,
		Governor:   memguard.NewRunner(s, profile),
		echoServer: e,
	}

	e.GET("/healthz", srv.healthz)
	apiv1.NewAPIV1Service(profile, s).RegisterRoutes(e)

	return srv
}

// healthz reports process liveness plus the store connectivity state. The
// store being down is reported but is not a failure: the cache layer
// soft-fails by design.
func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
	defer cancel()
	storeReady := s.Store.GetDriver().Ping(ctx) == nil
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"store_ready": storeReady,
	})
}

// Start runs the HTTP listener. It blocks until Shutdown or a listener
// failure.
func (s *Server) Start(ctx context.Context) error {
	s.Governor.Start(ctx)
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	if err := s.echoServer.Start(addr); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return nil
}

// Shutdown stops the governor, drains the HTTP server, and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Governor.Stop()
	if err := s.echoServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shut down http server")
	}
	return s.Store.Close()
}
