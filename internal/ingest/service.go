// Package ingest implements the ingestion coordinator: it validates uploads,
// resolves title collisions, persists the blob and the catalog record, and
// publishes the DocumentCreated event that starts the pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	apperrors "github.com/swen/dms/pkg/errors"
	"github.com/swen/dms/pkg/metrics"
)

const pdfContentType = "application/pdf"

type blobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Bucket() string
}

type documentStore interface {
	Create(ctx context.Context, doc *catalog.Document) (*catalog.Document, error)
	ExistsByTitle(ctx context.Context, title string) (bool, error)
}

type eventPublisher interface {
	PublishDocumentCreated(ctx context.Context, event events.DocumentCreated) error
}

// Service coordinates the synchronous portion of an upload.
type Service struct {
	blobs     blobStore
	docs      documentStore
	publisher eventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an ingestion Service. metrics may be nil in tests.
func New(blobs blobStore, docs documentStore, publisher eventPublisher, m *metrics.Metrics) *Service {
	return &Service{
		blobs:     blobs,
		docs:      docs,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "ingest"),
	}
}

// Upload validates the payload, stores the blob, creates the catalog record,
// and publishes DocumentCreated.
//
// Write order is blob first, then catalog, then event. A blob orphaned by a
// failed catalog insert is accepted and left for reconciliation. If the
// event publish fails after the catalog commit, the committed Document is
// returned together with the MessagingError so the caller can report that
// the upload succeeded but processing may not start.
func (s *Service) Upload(ctx context.Context, file []byte, contentType, proposedTitle string) (*catalog.Document, error) {
	if len(file) == 0 {
		s.countUpload("rejected")
		return nil, apperrors.New(apperrors.ErrEmptyUpload, 400, "nothing uploaded")
	}
	if !strings.EqualFold(contentType, pdfContentType) {
		s.countUpload("rejected")
		return nil, apperrors.Newf(apperrors.ErrUnsupportedType, 400, "only PDFs allowed, got %q", contentType)
	}

	title, err := s.resolveTitle(ctx, proposedTitle)
	if err != nil {
		s.countUpload("error")
		return nil, fmt.Errorf("resolving title: %w", err)
	}

	key := newStorageKey()
	if err := s.blobs.Put(ctx, key, file, pdfContentType); err != nil {
		s.countUpload("error")
		return nil, fmt.Errorf("storing blob: %w", err)
	}

	doc, err := s.docs.Create(ctx, &catalog.Document{
		Title:       title,
		StorageKey:  key,
		ContentType: pdfContentType,
		SizeBytes:   int64(len(file)),
		UploadedAt:  time.Now().UTC(),
	})
	if err != nil {
		// The blob stays behind; see package doc for the consistency gap.
		s.countUpload("error")
		s.logger.Error("catalog insert failed, blob orphaned",
			"storage_key", key,
			"error", err,
		)
		return nil, fmt.Errorf("creating catalog record: %w", err)
	}

	s.countUpload("accepted")
	if s.metrics != nil {
		s.metrics.UploadBytes.Observe(float64(len(file)))
	}
	s.logger.Info("document uploaded",
		"document_id", doc.ID,
		"title", doc.Title,
		"storage_key", doc.StorageKey,
		"size_bytes", doc.SizeBytes,
	)

	if err := s.publisher.PublishDocumentCreated(ctx, events.DocumentCreated{
		DocumentID: doc.ID,
		Title:      doc.Title,
		CreatedAt:  time.Now().UTC(),
		Bucket:     s.blobs.Bucket(),
		StorageKey: doc.StorageKey,
	}); err != nil {
		return doc, fmt.Errorf("document %d committed but event not published: %w", doc.ID, err)
	}
	return doc, nil
}

// resolveTitle normalizes the proposed title to end with ".pdf" and resolves
// collisions deterministically: "T.pdf", "T (1).pdf", "T (2).pdf", ...
func (s *Service) resolveTitle(ctx context.Context, proposed string) (string, error) {
	base := strings.TrimSpace(proposed)
	if base == "" {
		base = "document"
	}
	base = strings.TrimSuffix(base, ".pdf")
	candidate := base + ".pdf"
	for n := 1; ; n++ {
		exists, err := s.docs.ExistsByTitle(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d).pdf", base, n)
	}
}

// newStorageKey returns a date-partitioned key with 128 bits of randomness.
// Keys are generated before any persistence and never reused, even when the
// upload later fails.
func newStorageKey() string {
	now := time.Now().UTC()
	return fmt.Sprintf("docs/%d/%02d/%02d/%s.pdf", now.Year(), now.Month(), now.Day(), uuid.New())
}

func (s *Service) countUpload(outcome string) {
	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	}
}
