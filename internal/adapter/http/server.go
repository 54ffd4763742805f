package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/couchcryptid/arso-air-quality-etl/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by /api/health.
const Version = "1.0"

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// StationService is the read side of the station cache.
type StationService interface {
	All(ctx context.Context) ([]domain.StationSnapshot, error)
	ByID(ctx context.Context, id string) (domain.StationSnapshot, error)
	Lookup(ctx context.Context, id, name string) (domain.StationSnapshot, error)
	Refresh(ctx context.Context) (domain.Snapshot, error)
}

// Ingester triggers an ingestion run on demand.
type Ingester interface {
	RunOnce(ctx context.Context) pipeline.Outcome
}

// StatsReporter reports row counts of the durable store.
type StatsReporter interface {
	Stats(ctx context.Context) (domain.StoreStats, error)
}

// Option configures optional routes of a Server.
type Option func(*Server)

// WithStoreStats registers GET /api/debug/store-stats backed by r.
func WithStoreStats(r StatsReporter) Option {
	return func(s *Server) { s.storeStats = r }
}

// Server exposes the station API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	stations   StationService
	ingester   Ingester
	storeStats StatsReporter
	logger     *slog.Logger
}

// NewServer creates a gin-backed HTTP server. ingester may be nil, in which
// case POST /api/ingest is not registered.
func NewServer(addr string, stations StationService, ingester Ingester, ready ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(corsMiddleware())
	engine.Use(noCacheMiddleware())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:   engine,
		stations: stations,
		ingester: ingester,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/readyz", handleReady(ready))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/", s.handleRoot)
	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stations", s.handleListStations)
	api.GET("/stations/:id", s.handleGetStation)
	api.GET("/clear-cache", s.handleClearCache)
	api.POST("/clear-cache", s.handleClearCache)
	if ingester != nil {
		api.POST("/ingest", s.handleIngest)
	}
	if s.storeStats != nil {
		api.GET("/debug/store-stats", s.handleStoreStats)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// AllReady combines checkers; the first failure wins.
func AllReady(checkers ...ReadinessChecker) ReadinessChecker {
	return readinessFunc(func(ctx context.Context) error {
		for _, c := range checkers {
			if err := c.CheckReadiness(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

type readinessFunc func(ctx context.Context) error

func (f readinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }
