package api

import (
	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/config"
	"github.com/devx/appads-extractor/internal/observability"
	"github.com/devx/appads-extractor/internal/pipeline"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger       *zap.Logger
	Orchestrator *pipeline.Orchestrator
	Metrics      observability.MetricsRegistry
	Config       config.Config
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, orchestrator *pipeline.Orchestrator, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Logger:       logger,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Config:       cfg,
	}
}
