// Package api implements the read-only monitoring HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TheBoringRats/ratcrowler/internal/database"
	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
	"github.com/TheBoringRats/ratcrowler/internal/logs"
	"github.com/TheBoringRats/ratcrowler/internal/metrics"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ProgressSource exposes the current crawl progress.
type ProgressSource interface {
	Current() domain.Progress
}

// UsageSource exposes rotation target health.
type UsageSource interface {
	Snapshot() []domain.DatabaseUsage
}

// LinkStore is the slice of the store the report and stats endpoints need.
type LinkStore interface {
	IterLinks(ctx context.Context, fn func(link *domain.Link) error) error
	CountTotals(ctx context.Context) (database.Totals, error)
}

// Server serves the monitoring endpoints. Every route is read-only; the
// crawl itself is controlled through signals, not HTTP.
type Server struct {
	addr     string
	log      logger.Interface
	progress ProgressSource
	usage    UsageSource
	metrics  *metrics.Metrics
	logBuf   logs.Buffer
	store    LinkStore

	httpServer *http.Server
}

// Params holds the dependencies for a monitoring server.
type Params struct {
	Address  string
	Logger   logger.Interface
	Progress ProgressSource
	Usage    UsageSource
	Metrics  *metrics.Metrics
	LogBuf   logs.Buffer
	Store    LinkStore
}

// NewServer creates a monitoring server instance.
func NewServer(p Params) *Server {
	return &Server{
		addr:     p.Address,
		log:      p.Logger.WithComponent("api"),
		progress: p.Progress,
		usage:    p.Usage,
		metrics:  p.Metrics,
		logBuf:   p.LogBuf,
		store:    p.Store,
	}
}

// Router builds the gin engine with all monitoring routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/progress", s.handleProgress)
	router.GET("/stats", s.handleStats)
	router.GET("/databases", s.handleDatabases)
	router.GET("/logs", s.handleLogs)
	router.GET("/report", s.handleReport)

	return router
}

// Start begins serving in the background until Stop or a listen failure.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("monitoring server failed", "error", err)
			errCh <- err
		}
	}()

	// Give an immediate bind failure a moment to surface.
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start monitoring server on %s: %w", s.addr, err)
	case <-time.After(100 * time.Millisecond):
	}

	s.log.Info("monitoring server listening", "address", s.addr)

	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down monitoring server: %w", err)
	}

	return nil
}

// loggingMiddleware logs each request at debug with timing.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.log.Debug("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
