package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/devx/appads-extractor/internal/api"
	"github.com/devx/appads-extractor/internal/appads"
	"github.com/devx/appads-extractor/internal/cache"
	"github.com/devx/appads-extractor/internal/config"
	"github.com/devx/appads-extractor/internal/db"
	"github.com/devx/appads-extractor/internal/fetch"
	"github.com/devx/appads-extractor/internal/middleware"
	"github.com/devx/appads-extractor/internal/observability"
	"github.com/devx/appads-extractor/internal/pipeline"
	"github.com/devx/appads-extractor/internal/ratelimit"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdownTracing()
	}

	metrics := observability.NewPrometheusRegistry()

	var redisStore *db.RedisStore
	if cfg.RedisEnabled {
		rs, err := db.InitRedis(cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rs.Close()
		redisStore = rs
	}

	c := cache.New(cfg.L1CacheCapacity, redisStore, cfg.CacheDir, cfg.ListingCacheTTL, metrics, logger)

	limiter := ratelimit.New(cfg.MinRate, cfg.MaxRate, redisStore, metrics, logger)

	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: cfg.FetchPerHostConn,
		},
	}
	fetcher := fetch.New(httpClient, c, limiter, cfg.FetchMaxRetries, cfg.FetchRetryBase, cfg.FetchMaxBytes, metrics, logger)

	pool := appads.NewPool(appads.Config{
		MinWorkers:  cfg.WorkerMinCount,
		MaxWorkers:  cfg.WorkerMaxCount,
		TaskTimeout: cfg.WorkerTaskTimeout,
		MaxIdleTime: cfg.WorkerMaxIdleTime,
	}, metrics, logger)
	defer pool.Shutdown()

	concurrency := cfg.OrchestratorConcurrency
	if concurrency <= 0 {
		concurrency = cfg.WorkerMaxCount * 2
	}

	orchestrator, err := pipeline.New(c, fetcher, pool, pipeline.Config{
		Concurrency:     concurrency,
		ListingTTL:      cfg.ListingCacheTTL,
		AppAdsTTL:       cfg.AppAdsCacheTTL,
		TaskTimeout:     cfg.WorkerTaskTimeout,
		MaxContentBytes: int(cfg.MaxBodyBytes),
		MemThresholds: appads.MemoryThresholds{
			WarnMB:     cfg.WorkerMemWarnMB,
			HighMB:     cfg.WorkerMemHighMB,
			CriticalMB: cfg.WorkerMemCriticalMB,
		},
		CapBounds: appads.ResultCapBounds{
			Min:     cfg.SearchResultCapMin,
			Max:     cfg.SearchResultCapMax,
			Default: cfg.SearchResultCapDef,
		},
	}, metrics, logger)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	srv := api.NewServer(logger, orchestrator, metrics, cfg)

	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(logger))
	r.HandleFunc("/health", srv.HealthHandler).Methods("GET")
	r.HandleFunc("/api/extract-multiple", srv.ExtractMultipleHandler).Methods("POST")
	r.HandleFunc("/api/stream/extract-multiple", srv.StreamExtractMultipleHandler).Methods("POST")
	r.HandleFunc("/api/stream/export-csv", srv.StreamExportCSVHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	handler := otelhttp.NewHandler(r, cfg.ServiceName)

	addr := ":" + cfg.Port
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("app-ads extractor running", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
