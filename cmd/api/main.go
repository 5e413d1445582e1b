// Command api starts the document management HTTP service.
//
// The service accepts PDF uploads via POST /api/v1/documents, stores the
// file in the object store, creates the catalog record, and publishes the
// DocumentCreated event that drives the asynchronous pipeline. It also
// serves document retrieval, download, rename, deletion, and fuzzy search.
//
// Usage:
//
//	go run ./cmd/api [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/swen/dms/internal/api"
	"github.com/swen/dms/internal/blob"
	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/docs"
	"github.com/swen/dms/internal/events"
	"github.com/swen/dms/internal/ingest"
	"github.com/swen/dms/internal/search"
	"github.com/swen/dms/pkg/config"
	"github.com/swen/dms/pkg/health"
	"github.com/swen/dms/pkg/logger"
	"github.com/swen/dms/pkg/metrics"
	"github.com/swen/dms/pkg/middleware"
	"github.com/swen/dms/pkg/postgres"
	"github.com/swen/dms/pkg/rabbit"
	redispkg "github.com/swen/dms/pkg/redis"
	"github.com/swen/dms/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting api service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := catalog.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		slog.Error("failed to run catalog migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog ready")

	blobs, err := blob.New(ctx, cfg.S3)
	if err != nil {
		slog.Error("failed to create blob store", "error", err)
		os.Exit(1)
	}
	if err := resilience.Retry(ctx, "ensure-bucket", resilience.RetryConfig{}, func() error {
		return blobs.EnsureBucket(ctx)
	}); err != nil {
		slog.Error("failed to ensure bucket", "error", err)
		os.Exit(1)
	}
	slog.Info("blob store ready", "bucket", blobs.Bucket())

	var producer *rabbit.Producer
	if err := resilience.Retry(ctx, "connect-rabbit", resilience.RetryConfig{}, func() error {
		var err error
		producer, err = rabbit.NewProducer(cfg.Rabbit.URL, rabbit.ExchangeDocs)
		return err
	}); err != nil {
		slog.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("broker topology declared", "exchange", rabbit.ExchangeDocs)

	index, err := search.NewRedisIndex(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to search index", "error", err)
		os.Exit(1)
	}
	defer index.Close()
	cache, err := redispkg.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to query cache", "error", err)
		os.Exit(1)
	}
	defer cache.Close()
	cachedIndex := search.NewCachedIndex(index, cache)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	publisher := events.NewPublisher(producer, m)
	ingestSvc := ingest.New(blobs, repo, publisher, m)
	docsSvc := docs.NewService(repo, blobs, cachedIndex, publisher, m)
	handler := api.New(ingestSvc, docsSvc, cfg.Server.MaxUploadBytes)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if err := index.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("rabbitmq", func(ctx context.Context) health.ComponentHealth {
		if producer.IsClosed() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "connection closed"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Metrics(m)(middleware.Timeout(cfg.Server.WriteTimeout)(mux)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("api service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("api service stopped")
}
