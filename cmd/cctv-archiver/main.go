// Package main wires together the CCTV archiver service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/mhzan/cctv-archiver/internal/api"
	"github.com/mhzan/cctv-archiver/internal/catalog/llm"
	"github.com/mhzan/cctv-archiver/internal/cctv"
	"github.com/mhzan/cctv-archiver/internal/clock/system"
	"github.com/mhzan/cctv-archiver/internal/config"
	"github.com/mhzan/cctv-archiver/internal/imagestore/gcs"
	"github.com/mhzan/cctv-archiver/internal/imagestore/local"
	"github.com/mhzan/cctv-archiver/internal/logging"
	"github.com/mhzan/cctv-archiver/internal/metrics"
	"github.com/mhzan/cctv-archiver/internal/publish"
	pubsubpublish "github.com/mhzan/cctv-archiver/internal/publish/pubsub"
	"github.com/mhzan/cctv-archiver/internal/query"
	"github.com/mhzan/cctv-archiver/internal/scheduler"
	"github.com/mhzan/cctv-archiver/internal/scrape"
	"github.com/mhzan/cctv-archiver/internal/store"
	"github.com/mhzan/cctv-archiver/internal/store/memory"
	"github.com/mhzan/cctv-archiver/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()

	metadataStore, closeStore, err := buildMetadataStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	imageStore, err := buildImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Warn("publisher close failed", zap.Error(closeErr))
		}
	}()

	fetcher := llm.New(llm.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		UserAgent: cfg.Upstream.UserAgent,
		Referer:   cfg.Upstream.Referer,
		Timeout:   cfg.UpstreamTimeout(),
	}, config.Highways, clock, logger)

	engine := scrape.New(scrape.Config{
		Concurrency: cfg.Scraper.Concurrency,
		MaxAttempts: cfg.Scraper.MaxAttempts,
		BackoffBase: cfg.BackoffBase(),
		BackoffMax:  cfg.BackoffMax(),
	}, fetcher, metadataStore, imageStore, publisher, clock, config.Highways, logger)

	sched := scheduler.New(engine, cfg.Interval(), cfg.ActiveHighways(), clock, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	apiServer := api.NewServer(api.Config{
		Store:       metadataStore,
		Images:      imageStore,
		Queries:     query.New(metadataStore, cfg.API.HardLimit, cfg.API.LegacyLimit),
		Clock:       clock,
		Scheduler:   sched,
		BaseCtx:     ctx,
		Logger:      logger,
		LegacyLimit: cfg.API.LegacyLimit,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func buildMetadataStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (cctv.MetadataStore, func(), error) {
	var inner cctv.MetadataStore
	closer := func() {}
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{DSN: cfg.Store.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate schema: %w", err)
		}
		inner = pg
		closer = pg.Close
	default:
		inner = memory.New()
	}
	return store.WithRetry(inner, store.RetryConfig{
		MaxRetries: cfg.Store.MaxRetries,
		Backoff:    cfg.StoreBackoff(),
	}, logger), closer, nil
}

func buildImageStore(ctx context.Context, cfg config.Config) (cctv.ImageStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	default:
		return local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (cctv.Publisher, error) {
	if cfg.Publish.Provider != "pubsub" {
		return publish.NewNoop(), nil
	}
	pub, err := pubsubpublish.New(ctx, pubsubpublish.Config{
		ProjectID: cfg.Publish.ProjectID,
		TopicID:   cfg.Publish.Topic,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create pubsub publisher: %w", err)
	}
	return pub, nil
}
