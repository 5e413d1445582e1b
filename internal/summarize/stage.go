// Package summarize implements the terminal pipeline stage: it consumes
// TextExtracted events and writes a summary of the extracted text back to
// the catalog. Summarization is always best-effort; a failing summarizer
// degrades to a fixed fallback string and never blocks the pipeline.
package summarize

import (
	"context"
	"errors"
	"log/slog"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	apperrors "github.com/swen/dms/pkg/errors"
	"github.com/swen/dms/pkg/metrics"
	"github.com/swen/dms/pkg/rabbit"
)

type documentStore interface {
	GetByID(ctx context.Context, id int64) (*catalog.Document, error)
	SetSummary(ctx context.Context, id int64, summary string) error
}

// Stage consumes TextExtracted events and persists summaries.
type Stage struct {
	docs       documentStore
	summarizer Summarizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewStage creates the summarization stage. metrics may be nil in tests.
func NewStage(docs documentStore, summarizer Summarizer, m *metrics.Metrics) *Stage {
	return &Stage{
		docs:       docs,
		summarizer: summarizer,
		metrics:    m,
		logger:     slog.Default().With("component", "summarize-stage"),
	}
}

// Handler adapts the stage to the broker consumer. Undecodable bodies are
// returned as errors so the consumer dead-letters them.
func (s *Stage) Handler() rabbit.MessageHandler {
	return func(ctx context.Context, routingKey string, body []byte) error {
		event, err := rabbit.DecodeJSON[events.TextExtracted](body)
		if err != nil {
			s.logger.Error("failed to decode TextExtracted event",
				"routing_key", routingKey,
				"error", err,
			)
			return err
		}
		s.HandleTextExtracted(ctx, event)
		return nil
	}
}

// HandleTextExtracted summarizes one document. A missing catalog record is
// dropped and logged; a summarizer failure is replaced with FallbackSummary
// and the write happens regardless.
func (s *Stage) HandleTextExtracted(ctx context.Context, event events.TextExtracted) {
	log := s.logger.With("document_id", event.DocumentID)

	doc, err := s.docs.GetByID(ctx, event.DocumentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			log.Warn("catalog record missing, dropping unit of work")
		} else {
			log.Error("catalog lookup failed, dropping unit of work", "error", err)
		}
		s.count("dropped")
		return
	}

	var text string
	if doc.ExtractedText != nil {
		text = *doc.ExtractedText
	}

	outcome := "ok"
	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		log.Warn("summarizer failed, using fallback", "error", err)
		summary = FallbackSummary
		outcome = "fallback"
	}

	if err := s.docs.SetSummary(ctx, event.DocumentID, summary); err != nil {
		log.Error("failed to persist summary, dropping unit of work", "error", err)
		s.count("dropped")
		return
	}
	s.count(outcome)
	log.Info("summary saved", "chars", len(summary))
}

func (s *Stage) count(outcome string) {
	if s.metrics != nil {
		s.metrics.SummariesTotal.WithLabelValues(outcome).Inc()
	}
}
