// Package extract implements the extraction stage of the pipeline: it
// consumes DocumentCreated events, OCRs the stored PDF, persists the text to
// the catalog, mirrors it to the search index, and emits TextExtracted.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	"github.com/swen/dms/internal/search"
	apperrors "github.com/swen/dms/pkg/errors"
	"github.com/swen/dms/pkg/metrics"
	"github.com/swen/dms/pkg/rabbit"
	"github.com/swen/dms/pkg/resilience"
	"github.com/swen/dms/pkg/tracing"
)

type blobFetcher interface {
	GetFrom(ctx context.Context, bucket, key string) ([]byte, error)
}

type documentStore interface {
	GetByID(ctx context.Context, id int64) (*catalog.Document, error)
	SetExtractedText(ctx context.Context, id int64, text string) error
}

type textExtractor interface {
	Extract(ctx context.Context, pdf []byte) (string, int, error)
}

type completionPublisher interface {
	PublishTextExtracted(ctx context.Context, event events.TextExtracted) error
}

// Stage coordinates the blob store, the text extractor, the catalog, and the
// search index for one document at a time. Handlers are idempotent:
// redelivering the same event re-runs the same writes with the same result.
type Stage struct {
	blobs     blobFetcher
	docs      documentStore
	extractor textExtractor
	index     search.Index
	publisher completionPublisher
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewStage creates the extraction stage. timeout bounds per-document
// processing; zero disables the bound. metrics may be nil in tests.
func NewStage(blobs blobFetcher, docs documentStore, extractor textExtractor,
	index search.Index, publisher completionPublisher, timeout time.Duration,
	m *metrics.Metrics) *Stage {
	return &Stage{
		blobs:     blobs,
		docs:      docs,
		extractor: extractor,
		index:     index,
		publisher: publisher,
		timeout:   timeout,
		metrics:   m,
		logger:    slog.Default().With("component", "extract-stage"),
	}
}

// Handler adapts the stage to the broker consumer. Undecodable bodies are
// returned as errors so the consumer dead-letters them; every other failure
// is handled inside HandleDocumentCreated.
func (s *Stage) Handler() rabbit.MessageHandler {
	return func(ctx context.Context, routingKey string, body []byte) error {
		event, err := rabbit.DecodeJSON[events.DocumentCreated](body)
		if err != nil {
			s.logger.Error("failed to decode DocumentCreated event",
				"routing_key", routingKey,
				"error", err,
			)
			return err
		}
		s.HandleDocumentCreated(ctx, event)
		return nil
	}
}

// HandleDocumentCreated processes one DocumentCreated event. Failures before
// the catalog write are logged with the document ID and the unit of work is
// dropped; the broker's redelivery policy and the dead-letter queue are the
// recovery path. The handler never panics the consumer.
func (s *Stage) HandleDocumentCreated(ctx context.Context, event events.DocumentCreated) {
	log := s.logger.With("document_id", event.DocumentID)
	log.Info("extraction started",
		"title", event.Title,
		"bucket", event.Bucket,
		"storage_key", event.StorageKey,
	)
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "extract-document", strconv.FormatInt(event.DocumentID, 10))
	defer func() {
		span.End()
		span.Log()
	}()

	err := resilience.WithTimeout(ctx, s.timeout, "extract-document", func(ctx context.Context) error {
		return s.process(ctx, log, event)
	})
	if err != nil {
		if errors.Is(err, errDocumentGone) {
			log.Warn("catalog record missing, dropping unit of work")
		} else {
			log.Error("extraction failed, dropping unit of work", "error", err)
		}
		s.countProcessed("dropped")
		return
	}
	s.countProcessed("ok")
	if s.metrics != nil {
		s.metrics.OCRDuration.Observe(time.Since(start).Seconds())
	}
	log.Info("extraction done", "elapsed", time.Since(start).Round(time.Millisecond))
}

// errDocumentGone marks the deleted-while-processing (or ordering bug) case,
// which is dropped without alarm.
var errDocumentGone = errors.New("document vanished from catalog")

func (s *Stage) process(ctx context.Context, log *slog.Logger, event events.DocumentCreated) error {
	fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, "fetch-blob")
	pdf, err := s.blobs.GetFrom(fetchCtx, event.Bucket, event.StorageKey)
	fetchSpan.End()
	if err != nil {
		return err
	}
	fetchSpan.SetAttr("bytes", len(pdf))

	ocrCtx, ocrSpan := tracing.StartChildSpan(ctx, "ocr")
	text, pages, err := s.extractor.Extract(ocrCtx, pdf)
	ocrSpan.End()
	if err != nil {
		return err
	}
	ocrSpan.SetAttr("pages", pages)
	if s.metrics != nil {
		s.metrics.OCRPagesPerDocument.Observe(float64(pages))
	}

	if _, err := s.docs.GetByID(ctx, event.DocumentID); err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			return errDocumentGone
		}
		return err
	}

	// Durability checkpoint: nothing downstream runs unless this commits.
	if err := s.docs.SetExtractedText(ctx, event.DocumentID, text); err != nil {
		return err
	}

	// Search indexing is an optional side effect, never a precondition for
	// completing the stage.
	rec := search.Record{
		ID:      strconv.FormatInt(event.DocumentID, 10),
		Title:   event.Title,
		Content: text,
	}
	if err := s.index.Upsert(ctx, rec); err != nil {
		log.Error("search index upsert failed, continuing", "error", err)
		s.countIndexUpsert("error")
	} else {
		s.countIndexUpsert("ok")
	}

	if err := s.publisher.PublishTextExtracted(ctx, events.TextExtracted{DocumentID: event.DocumentID}); err != nil {
		// The text is durable; a redelivered DocumentCreated re-runs this
		// stage idempotently and re-emits the completion event.
		log.Error("failed to publish TextExtracted", "error", err)
	}
	log.Info("text extracted", "pages", pages, "chars", len(text))
	return nil
}

func (s *Stage) countProcessed(outcome string) {
	if s.metrics != nil {
		s.metrics.OCRProcessedTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Stage) countIndexUpsert(status string) {
	if s.metrics != nil {
		s.metrics.IndexUpsertsTotal.WithLabelValues(status).Inc()
	}
}
