package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/arso-air-quality-etl/internal/adapter/arso"
	httpadapter "github.com/couchcryptid/arso-air-quality-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/arso-air-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/arso-air-quality-etl/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/arso-air-quality-etl/internal/adapter/redis"
	"github.com/couchcryptid/arso-air-quality-etl/internal/config"
	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
	"github.com/couchcryptid/arso-air-quality-etl/internal/mock"
	"github.com/couchcryptid/arso-air-quality-etl/internal/observability"
	"github.com/couchcryptid/arso-air-quality-etl/internal/pipeline"
	"github.com/couchcryptid/arso-air-quality-etl/internal/scheduler"
	"github.com/couchcryptid/arso-air-quality-etl/internal/stations"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Feed source: the live ARSO endpoint, or the generator when MOCK_DATA is set.
	var fetcher pipeline.Fetcher
	if cfg.MockData {
		fetcher = mock.NewGenerator(uint64(os.Getpid()), mock.WithLocation(cfg.FeedLocation))
		logger.Info("mock data enabled, live feed will not be contacted")
	} else {
		fetcher = arso.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger)
		logger.Info("arso feed configured", "url", cfg.FeedURL, "timeout", cfg.FeedTimeout)
	}

	opts := []pipeline.Option{pipeline.WithLocation(cfg.FeedLocation)}
	readiness := []httpadapter.ReadinessChecker{}
	var serverOpts []httpadapter.Option
	var sources []stations.Source

	// Postgres persistence (enabled via DATABASE_URL).
	if cfg.DatabaseURL != "" {
		store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, pipeline.WithPersister(store))
		readiness = append(readiness, store)
		serverOpts = append(serverOpts, httpadapter.WithStoreStats(store))
		logger.Info("postgres persistence enabled")
	} else {
		logger.Warn("DATABASE_URL not set, runs will not be persisted")
	}

	// Redis snapshot cache (enabled via REDIS_ADDR).
	if cfg.RedisAddr != "" {
		cache, err := redisadapter.NewCache(ctx, redisadapter.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
			TTL:      cfg.RedisTTL,
		}, logger)
		if err != nil {
			return err
		}
		defer closeWithLog(logger, "redis", cache.Close)
		opts = append(opts, pipeline.WithPublishers(cache))
		sources = append(sources, cache)
		logger.Info("redis snapshot cache enabled", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
	}

	// Kafka snapshot stream (enabled via KAFKA_BROKERS).
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer closeWithLog(logger, "kafka writer", writer.Close)
		opts = append(opts, pipeline.WithPublishers(writer))
		logger.Info("kafka snapshot publishing enabled", "topic", cfg.KafkaTopic)
	}

	var p *pipeline.Pipeline
	sources = append(sources, stations.SourceFunc(func(ctx context.Context) (domain.Snapshot, error) {
		return p.Snapshot(ctx)
	}))
	svc := stations.NewService(stations.Chain(logger, sources...), cfg.CacheTTL, clockwork.NewRealClock(), logger, metrics)
	opts = append(opts, pipeline.WithPublishers(svc))

	p = pipeline.New(fetcher, logger, metrics, opts...)
	readiness = append(readiness, p)

	sched, err := scheduler.New(cfg.Schedule, p, logger, cfg.RunOnStartup)
	if err != nil {
		return err
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, p, httpadapter.AllReady(readiness...), logger, serverOpts...)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start ingestion schedule.
	sched.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sched.Stop()

	logger.Info("shutdown complete")
	return nil
}

func closeWithLog(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error(name+" close error", "error", err)
	}
}
