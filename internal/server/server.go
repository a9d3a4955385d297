// Package server assembles the gin router and runs the HTTP server with
// graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/config"
	"github.com/alti-global/prism/internal/handlers"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Query    *handlers.QueryHandler
	Health   *handlers.HealthHandler
	Admin    *handlers.AdminHandler
	Feedback *handlers.FeedbackHandler
}

// Server runs the HTTP API.
type Server struct {
	cfg    *config.Config
	http   *http.Server
	logger *logrus.Logger
}

// New builds the router and server.
func New(cfg *config.Config, h Handlers, registry *prometheus.Registry, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	gin.SetMode(ginMode(cfg.Server.Mode))

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", h.Health.Live)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/domains", h.Admin.Domains)
	router.GET("/prompts", h.Admin.Prompts)
	router.GET("/stats/cache", h.Admin.CacheStats)
	router.GET("/stats/breakers", h.Admin.BreakerStats)
	router.POST("/feedback", h.Feedback.Submit)
	router.GET("/feedback/stats", h.Feedback.Stats)

	v2 := router.Group("/v2")
	{
		v2.GET("/health", h.Health.Ready)
		v2.POST("/query", h.Query.Query)
		v2.POST("/query/stream", h.Query.QueryStream)
	}

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then drains inflight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.http.Addr).Info("http server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.RequestDeadline+5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func ginMode(mode string) string {
	if mode == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("request failed")
		} else {
			entry.Debug("request served")
		}
	}
}
