// Package docs implements the synchronous document use cases behind the
// HTTP surface: lookup, listing, download, title updates (with the update
// notification), deletion, and search.
package docs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	"github.com/swen/dms/internal/search"
	apperrors "github.com/swen/dms/pkg/errors"
	"github.com/swen/dms/pkg/metrics"
)

type documentStore interface {
	GetByID(ctx context.Context, id int64) (*catalog.Document, error)
	List(ctx context.Context) ([]catalog.Document, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	IncrementAccessCount(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type blobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type updatePublisher interface {
	PublishDocumentUpdated(ctx context.Context, event events.DocumentUpdated) error
}

// Service bundles the synchronous document operations.
type Service struct {
	docs      documentStore
	blobs     blobStore
	index     search.Index
	publisher updatePublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService creates a document Service. metrics may be nil in tests.
func NewService(docs documentStore, blobs blobStore, index search.Index,
	publisher updatePublisher, m *metrics.Metrics) *Service {
	return &Service{
		docs:      docs,
		blobs:     blobs,
		index:     index,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "docs"),
	}
}

// Get returns the document with the given ID.
func (s *Service) Get(ctx context.Context, id int64) (*catalog.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// List returns all documents.
func (s *Service) List(ctx context.Context) ([]catalog.Document, error) {
	return s.docs.List(ctx)
}

// Download returns the document and its file bytes and bumps the access
// counter. A failed counter bump is logged, not surfaced.
func (s *Service) Download(ctx context.Context, id int64) (*catalog.Document, []byte, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching blob for document %d: %w", id, err)
	}
	if err := s.docs.IncrementAccessCount(ctx, id); err != nil {
		s.logger.Error("failed to bump access count", "document_id", id, "error", err)
	}
	return doc, data, nil
}

// UpdateTitle renames the document and publishes DocumentUpdated. Titles are
// normalized to end with ".pdf" like uploads. The catalog write and the event
// publish are not transactional together: on a publish failure the rename
// stays committed and the MessagingError is returned alongside the updated
// document.
func (s *Service) UpdateTitle(ctx context.Context, id int64, newTitle string) (*catalog.Document, error) {
	title := strings.TrimSpace(newTitle)
	if title == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "title is required")
	}
	title = strings.TrimSuffix(title, ".pdf") + ".pdf"

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	titleBefore := doc.Title
	if err := s.docs.UpdateTitle(ctx, id, title); err != nil {
		return nil, err
	}
	doc.Title = title
	s.logger.Info("document renamed",
		"document_id", id,
		"title_before", titleBefore,
		"title_after", title,
	)

	if err := s.publisher.PublishDocumentUpdated(ctx, events.DocumentUpdated{
		DocumentID:  id,
		TitleBefore: titleBefore,
		TitleAfter:  title,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		return doc, fmt.Errorf("document %d renamed but event not published: %w", id, err)
	}
	return doc, nil
}

// Delete removes the document: blob first, then the catalog row, then a
// best-effort removal from the search index.
func (s *Service) Delete(ctx context.Context, id int64) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("deleting blob for document %d: %w", id, err)
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, strconv.FormatInt(id, 10)); err != nil {
		s.logger.Error("failed to remove search record", "document_id", id, "error", err)
	}
	s.logger.Info("document deleted", "document_id", id, "storage_key", doc.StorageKey)
	return nil
}

// Search runs a fuzzy query against the search index. Index failures
// degrade to an empty result set; search is never allowed to fail the
// request.
func (s *Service) Search(ctx context.Context, query string) []search.Record {
	results, err := s.index.QueryFuzzy(ctx, query)
	if err != nil {
		s.logger.Error("search query failed", "query", query, "error", err)
		s.countQuery("error")
		return []search.Record{}
	}
	if len(results) == 0 {
		s.countQuery("zero_result")
		return []search.Record{}
	}
	s.countQuery("hit")
	return results
}

func (s *Service) countQuery(resultType string) {
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}
