// Command genaiworker starts the summarization stage consumer.
//
// The worker consumes TextExtracted events from docs.genai.queue,
// summarizes the extracted text with the generative model, and persists the
// summary to the catalog. Summarizer failures degrade to a fixed fallback
// string; this stage is terminal and emits no further events.
//
// Usage:
//
//	go run ./cmd/genaiworker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/summarize"
	"github.com/swen/dms/pkg/config"
	"github.com/swen/dms/pkg/logger"
	"github.com/swen/dms/pkg/metrics"
	"github.com/swen/dms/pkg/postgres"
	"github.com/swen/dms/pkg/rabbit"
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
	slog.Info("starting genai worker",
		"queue", rabbit.QueueGenAI,
		"workers", cfg.Rabbit.Workers,
		"model", cfg.GenAI.Model,
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

	summarizer, err := summarize.NewGemini(ctx, cfg.GenAI)
	if err != nil {
		slog.Error("failed to create summarizer", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	stage := summarize.NewStage(repo, summarizer, m)

	var consumer *rabbit.Consumer
	if err := resilience.Retry(ctx, "connect-rabbit-consumer", resilience.RetryConfig{}, func() error {
		var err error
		consumer, err = rabbit.NewConsumer(cfg.Rabbit.URL, rabbit.QueueGenAI,
			cfg.Rabbit.PrefetchCount, cfg.Rabbit.Workers, stage.Handler())
		return err
	}); err != nil {
		slog.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	slog.Info("genai worker ready, consuming", "queue", rabbit.QueueGenAI)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("genai worker stopped")
}
