// Package status serves health, cycle status and metrics over HTTP.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stoik/timeline/internal/models"
	"github.com/stoik/timeline/services/digest-service/internal/pipeline"
	"github.com/stoik/timeline/services/digest-service/internal/runlog"
)

// Cycles is the part of the pipeline the server drives.
type Cycles interface {
	TryRunCycle(ctx context.Context) (models.CycleResult, error)
	Last() (models.CycleResult, bool)
}

// History serves /status from the run log when this process has not run a
// cycle yet. *runlog.PostgresRecorder satisfies it.
type History interface {
	Last(ctx context.Context) (models.CycleResult, error)
}

// Option configures a Server.
type Option func(*Server)

// WithHistory sets the fallback for /status after a restart.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

type Server struct {
	cycles  Cycles
	history History
	metrics http.Handler
	logger  *slog.Logger
	router  *gin.Engine
	srv     *http.Server
}

// NewServer wires the routes. metricsHandler may be nil.
func NewServer(addr string, cycles Cycles, metricsHandler http.Handler, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cycles:  cycles,
		metrics: metricsHandler,
		logger:  logger.With("component", "status"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.POST("/cycles", s.handleRunCycle)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	s.router = r
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("status server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	if last, ok := s.cycles.Last(); ok {
		c.JSON(http.StatusOK, last)
		return
	}
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run yet"})
		return
	}

	last, err := s.history.Last(c.Request.Context())
	if errors.Is(err, runlog.ErrNoRuns) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run yet"})
		return
	}
	if err != nil {
		s.logger.Warn("failed to read run history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run history"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func (s *Server) handleRunCycle(c *gin.Context) {
	// A client hanging up must not abort a cycle half way through.
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := s.cycles.TryRunCycle(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
