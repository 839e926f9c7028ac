package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/api/routes"
	"github.com/safecli/safecli/internal/config"
	"github.com/safecli/safecli/internal/logger"
	"github.com/safecli/safecli/internal/metrics"
	"github.com/safecli/safecli/internal/services"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP engine and shared dependencies for easier testing.
type Server struct {
	Engine    *gin.Engine
	Services  *routes.Services
	Registry  *prometheus.Registry
	scheduler *services.ExpiryScheduler
	cfg       config.Config
}

// New wires up the HTTP router, the metrics registry and the expiry schedule.
func New(db *gorm.DB, cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	svc := routes.NewServices(db, cfg)
	scheduler, err := services.NewExpiryScheduler(svc.Approvals, cfg.SweepSchedule)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Recovery(cfg.Debug),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{IsDevelopment: !cfg.IsProduction()}),
	)
	routes.Register(router, db, cfg, svc, registry)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	return &Server{Engine: router, Services: svc, Registry: registry, scheduler: scheduler, cfg: cfg}, nil
}

// Run serves on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%s", s.cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server and the expiry schedule on ln with proper shutdown
// semantics. In-flight notifications get up to shutdownTimeout to drain.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.scheduler.Start()
	defer func() {
		s.scheduler.Stop()
		if !s.Services.Notifications.WaitTimeout(shutdownTimeout) {
			logger.Log().Warn("shutdown did not wait for pending notifications")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Log().WithField("addr", ln.Addr().String()).Info("http server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
