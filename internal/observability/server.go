// Package observability embeds a small echo server exposing liveness,
// readiness, and Prometheus metrics, modeled directly on the teacher's
// health handler and app.go's metrics middleware wiring.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/atomic"

	"github.com/rjpruitt16/ezworker/pkg/logger"
)

// Server is the embedded /healthz, /readyz, /metrics HTTP surface.
type Server struct {
	echo      *echo.Echo
	readiness *atomic.Bool
	addr      string
}

// New builds a Server listening on the given port, backed by readiness.
func New(port int, readiness *atomic.Bool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoprometheus.NewMiddleware("ezworker_http"))
	e.GET("/metrics", echoprometheus.NewHandler())

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/readyz", func(c echo.Context) error {
		if readiness.Load() {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})

	return &Server{echo: e, readiness: readiness, addr: fmt.Sprintf(":%d", port)}
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// with a bounded grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("observability server listening on %s", s.addr)
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			logger.Error("observability server shutdown error: %v", err)
			return err
		}
		return nil
	}
}
