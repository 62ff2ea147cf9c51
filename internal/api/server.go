// Package api exposes the analysis pipeline over HTTP: image upload and
// analysis, report synthesis, analysis history and a liveness check carrying
// classifier status.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/history"
	"github.com/mammo-screening-server/internal/middleware"
	"github.com/mammo-screening-server/internal/service"
)

// AnalysisService is the pipeline boundary the HTTP layer depends on.
type AnalysisService interface {
	Analyze(ctx context.Context, data []byte, filename string) (*service.Analysis, error)
	ModelStatus() domain.ModelStatus
}

// HistoryStore persists and lists analysis summaries. Nil disables history.
type HistoryStore interface {
	Save(ctx context.Context, rec *history.Record) error
	Get(ctx context.Context, id string) (*history.Record, error)
	List(ctx context.Context, limit, offset int) ([]*history.Record, error)
	Count(ctx context.Context) (int64, error)
}

// Server is the HTTP server for the analysis API.
type Server struct {
	cfg      *domain.Config
	analyzer AnalysisService
	store    HistoryStore
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates the HTTP server and wires routes and middleware.
func NewServer(cfg *domain.Config, analyzer AnalysisService, store HistoryStore, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	router.Use(middleware.MaxBodySize(cfg.Server.MaxUploadBytes))

	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		store:    store,
		logger:   logger,
		router:   router,
	}
	s.setupRoutes()
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/report", s.handleReport)
		v1.GET("/history", s.handleHistoryList)
		v1.GET("/history/:id", s.handleHistoryGet)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
