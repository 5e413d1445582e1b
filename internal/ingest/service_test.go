package ingest

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	apperrors "github.com/swen/dms/pkg/errors"
)

type fakeBlobStore struct {
	puts   map[string][]byte
	putErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{puts: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts[key] = data
	return nil
}

func (f *fakeBlobStore) Bucket() string { return "documents" }

type fakeDocumentStore struct {
	titles    map[string]bool
	created   []*catalog.Document
	createErr error
	nextID    int64
}

func newFakeDocumentStore(existing ...string) *fakeDocumentStore {
	titles := make(map[string]bool)
	for _, t := range existing {
		titles[t] = true
	}
	return &fakeDocumentStore{titles: titles, nextID: 1}
}

func (f *fakeDocumentStore) Create(_ context.Context, doc *catalog.Document) (*catalog.Document, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	doc.ID = f.nextID
	f.nextID++
	doc.Status = catalog.StatusCreated
	f.titles[doc.Title] = true
	f.created = append(f.created, doc)
	return doc, nil
}

func (f *fakeDocumentStore) ExistsByTitle(_ context.Context, title string) (bool, error) {
	return f.titles[title], nil
}

type fakePublisher struct {
	events []events.DocumentCreated
	err    error
}

func (f *fakePublisher) PublishDocumentCreated(_ context.Context, event events.DocumentCreated) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc := New(newFakeBlobStore(), newFakeDocumentStore(), &fakePublisher{}, nil)

	doc, err := svc.Upload(context.Background(), nil, "application/pdf", "empty.pdf")

	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, apperrors.ErrEmptyUpload)
	assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
}

func TestUploadRejectsNonPDF(t *testing.T) {
	blobs := newFakeBlobStore()
	docs := newFakeDocumentStore()
	svc := New(blobs, docs, &fakePublisher{}, nil)

	doc, err := svc.Upload(context.Background(), []byte("hello"), "image/png", "photo.png")

	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
	assert.Empty(t, blobs.puts, "rejected upload must not touch the blob store")
	assert.Empty(t, docs.created, "rejected upload must not touch the catalog")
}

func TestUploadAcceptsPDFCaseInsensitively(t *testing.T) {
	svc := New(newFakeBlobStore(), newFakeDocumentStore(), &fakePublisher{}, nil)

	doc, err := svc.Upload(context.Background(), []byte("%PDF-1.7"), "Application/PDF", "report")

	require.NoError(t, err)
	assert.Equal(t, "report.pdf", doc.Title)
}

func TestUploadResolvesTitleCollisions(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		proposed string
		want     string
	}{
		{"no collision", nil, "Invoice.pdf", "Invoice.pdf"},
		{"adds extension", nil, "Invoice", "Invoice.pdf"},
		{"first collision", []string{"Invoice.pdf"}, "Invoice.pdf", "Invoice (1).pdf"},
		{"second collision", []string{"Invoice.pdf", "Invoice (1).pdf"}, "Invoice.pdf", "Invoice (2).pdf"},
		{"blank falls back", nil, "  ", "document.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := newFakeDocumentStore(tt.existing...)
			svc := New(newFakeBlobStore(), docs, &fakePublisher{}, nil)

			doc, err := svc.Upload(context.Background(), []byte("%PDF-1.7"), "application/pdf", tt.proposed)

			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Title)
		})
	}
}

func TestUploadStoresBlobUnderDatePartitionedKey(t *testing.T) {
	blobs := newFakeBlobStore()
	svc := New(blobs, newFakeDocumentStore(), &fakePublisher{}, nil)

	doc, err := svc.Upload(context.Background(), []byte("%PDF-1.7"), "application/pdf", "report.pdf")

	require.NoError(t, err)
	keyPattern := regexp.MustCompile(`^docs/\d{4}/\d{2}/\d{2}/[0-9a-f-]{36}\.pdf$`)
	assert.Regexp(t, keyPattern, doc.StorageKey)
	assert.Contains(t, blobs.puts, doc.StorageKey)
}

func TestUploadPublishesDocumentCreated(t *testing.T) {
	pub := &fakePublisher{}
	svc := New(newFakeBlobStore(), newFakeDocumentStore(), pub, nil)

	doc, err := svc.Upload(context.Background(), []byte("%PDF-1.7"), "application/pdf", "report.pdf")

	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, doc.ID, event.DocumentID)
	assert.Equal(t, doc.Title, event.Title)
	assert.Equal(t, "documents", event.Bucket)
	assert.Equal(t, doc.StorageKey, event.StorageKey)
}

func TestUploadReturnsDocWhenPublishFails(t *testing.T) {
	pub := &fakePublisher{err: &events.MessagingError{
		Exchange:   "docs.exchange",
		RoutingKey: "docs.created",
		Err:        errors.New("broker down"),
	}}
	docs := newFakeDocumentStore()
	svc := New(newFakeBlobStore(), docs, pub, nil)

	doc, err := svc.Upload(context.Background(), []byte("%PDF-1.7"), "application/pdf", "report.pdf")

	require.Error(t, err)
	require.NotNil(t, doc, "the committed document must be returned despite the publish failure")
	var msgErr *events.MessagingError
	assert.ErrorAs(t, err, &msgErr)
	assert.Len(t, docs.created, 1, "catalog record stays committed")
}

func TestUploadDoesNotCreateRecordWhenBlobWriteFails(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.putErr = errors.New("connection refused")
	docs := newFakeDocumentStore()
	svc := New(blobs, docs, &fakePublisher{}, nil)

	doc, err := svc.Upload(context.Background(), []byte("%PDF-1.7"), "application/pdf", "report.pdf")

	require.Error(t, err)
	assert.Nil(t, doc)
	assert.Empty(t, docs.created)
}
