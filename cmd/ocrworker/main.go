// Command ocrworker starts the extraction stage consumer.
//
// The worker consumes DocumentCreated events from docs.ocr.queue, fetches
// the PDF from the object store, runs per-page text recognition, persists
// the extracted text to the catalog, mirrors it to the search index, and
// emits TextExtracted.
//
// Usage:
//
//	go run ./cmd/ocrworker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/swen/dms/internal/blob"
	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	"github.com/swen/dms/internal/extract"
	"github.com/swen/dms/internal/ocr"
	"github.com/swen/dms/internal/search"
	"github.com/swen/dms/pkg/config"
	"github.com/swen/dms/pkg/logger"
	"github.com/swen/dms/pkg/metrics"
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
	slog.Info("starting ocr worker",
		"queue", rabbit.QueueOCR,
		"workers", cfg.Rabbit.Workers,
		"dpi", cfg.OCR.DPI,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := catalog.NewRepository(db)

	blobs, err := blob.New(ctx, cfg.S3)
	if err != nil {
		slog.Error("failed to create blob store", "error", err)
		os.Exit(1)
	}

	engine, err := ocr.NewGemini(ctx, cfg.GenAI)
	if err != nil {
		slog.Error("failed to create ocr engine", "error", err)
		os.Exit(1)
	}
	extractor := extract.NewExtractor(engine, cfg.OCR)

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

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	publisher := events.NewPublisher(producer, m)
	stage := extract.NewStage(blobs, repo, extractor, cachedIndex, publisher, cfg.OCR.Timeout, m)

	var consumer *rabbit.Consumer
	if err := resilience.Retry(ctx, "connect-rabbit-consumer", resilience.RetryConfig{}, func() error {
		var err error
		consumer, err = rabbit.NewConsumer(cfg.Rabbit.URL, rabbit.QueueOCR,
			cfg.Rabbit.PrefetchCount, cfg.Rabbit.Workers, stage.Handler())
		return err
	}); err != nil {
		slog.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	slog.Info("ocr worker ready, consuming", "queue", rabbit.QueueOCR)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("ocr worker stopped")
}
