package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

// PipelineService is the part of the pipeline exposed over HTTP
type PipelineService interface {
	RunID() string
	Status() domain.RunStatus
	Snapshot() *domain.RunSnapshot
	Steps() []domain.StepState
	GetStep(name domain.StepName) (domain.StepState, error)
	GetSummary() domain.Summary
	Cancel()
	CancelRequested() bool
}

// StreamHandler serves the live event stream
type StreamHandler interface {
	HandleRunStream(*gin.Context)
}

// Server represents the HTTP API server
type Server struct {
	router   *gin.Engine
	server   *http.Server
	pipeline PipelineService
	storage  ports.StateStorage
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port     int
	Pipeline PipelineService
	// Storage serves past and current run snapshots; optional
	Storage ports.StateStorage
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:   router,
		pipeline: cfg.Pipeline,
		storage:  cfg.Storage,
		gatherer: gatherer,
		logger:   cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/pipeline", s.handleGetPipeline)
		v1.GET("/pipeline/steps", s.handleListSteps)
		v1.GET("/pipeline/steps/:name", s.handleGetStep)
		v1.GET("/pipeline/summary", s.handleGetSummary)
		v1.POST("/pipeline/cancel", s.handleCancel)

		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
	}
}

// SetupWebSocket adds the event stream endpoint
func (s *Server) SetupWebSocket(handler StreamHandler) {
	s.router.GET("/api/v1/pipeline/ws", handler.HandleRunStream)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
