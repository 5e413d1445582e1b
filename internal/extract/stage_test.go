package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	"github.com/swen/dms/internal/search"
	apperrors "github.com/swen/dms/pkg/errors"
)

type fakeBlobFetcher struct {
	data map[string][]byte
	err  error
}

func (f *fakeBlobFetcher) GetFrom(_ context.Context, bucket, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

type fakeDocumentStore struct {
	docs     map[int64]*catalog.Document
	setTexts map[int64]string
	setErr   error
}

func newFakeDocumentStore(docs ...*catalog.Document) *fakeDocumentStore {
	byID := make(map[int64]*catalog.Document)
	for _, d := range docs {
		byID[d.ID] = d
	}
	return &fakeDocumentStore{docs: byID, setTexts: make(map[int64]string)}
}

func (f *fakeDocumentStore) GetByID(_ context.Context, id int64) (*catalog.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocumentStore) SetExtractedText(_ context.Context, id int64, text string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.setTexts[id] = text
	return nil
}

type fakeExtractor struct {
	text  string
	pages int
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (string, int, error) {
	f.calls++
	if f.err != nil {
		return "", 0, f.err
	}
	return f.text, f.pages, nil
}

type fakeIndex struct {
	upserts []search.Record
	err     error
}

func (f *fakeIndex) Upsert(_ context.Context, rec search.Record) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeIndex) QueryFuzzy(_ context.Context, _ string) ([]search.Record, error) {
	return nil, nil
}

func (f *fakeIndex) Delete(_ context.Context, _ string) error { return nil }

type fakeCompletionPublisher struct {
	events []events.TextExtracted
	err    error
}

func (f *fakeCompletionPublisher) PublishTextExtracted(_ context.Context, event events.TextExtracted) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func invoiceEvent() events.DocumentCreated {
	return events.DocumentCreated{
		DocumentID: 42,
		Title:      "Invoice.pdf",
		Bucket:     "documents",
		StorageKey: "docs/2026/08/30/key.pdf",
	}
}

func invoiceFixture() (*fakeBlobFetcher, *fakeDocumentStore) {
	blobs := &fakeBlobFetcher{data: map[string][]byte{
		"documents/docs/2026/08/30/key.pdf": []byte("%PDF-1.7 invoice"),
	}}
	docs := newFakeDocumentStore(&catalog.Document{ID: 42, Title: "Invoice.pdf"})
	return blobs, docs
}

func TestHandleDocumentCreatedPersistsTextAndPublishes(t *testing.T) {
	blobs, docs := invoiceFixture()
	index := &fakeIndex{}
	pub := &fakeCompletionPublisher{}
	stage := NewStage(blobs, docs, &fakeExtractor{text: "Total: $50\n", pages: 1}, index, pub, 0, nil)

	stage.HandleDocumentCreated(context.Background(), invoiceEvent())

	assert.Equal(t, "Total: $50\n", docs.setTexts[42])
	require.Len(t, index.upserts, 1)
	assert.Equal(t, "42", index.upserts[0].ID)
	assert.Equal(t, "Total: $50\n", index.upserts[0].Content)
	require.Len(t, pub.events, 1)
	assert.Equal(t, int64(42), pub.events[0].DocumentID)
}

func TestHandleDocumentCreatedContinuesWhenIndexFails(t *testing.T) {
	blobs, docs := invoiceFixture()
	index := &fakeIndex{err: errors.New("redis down")}
	pub := &fakeCompletionPublisher{}
	stage := NewStage(blobs, docs, &fakeExtractor{text: "Total: $50\n", pages: 1}, index, pub, 0, nil)

	stage.HandleDocumentCreated(context.Background(), invoiceEvent())

	assert.Equal(t, "Total: $50\n", docs.setTexts[42], "catalog write must survive an index failure")
	require.Len(t, pub.events, 1, "completion event must still be emitted")
}

func TestHandleDocumentCreatedDropsWhenRecordGone(t *testing.T) {
	blobs, _ := invoiceFixture()
	docs := newFakeDocumentStore()
	index := &fakeIndex{}
	pub := &fakeCompletionPublisher{}
	stage := NewStage(blobs, docs, &fakeExtractor{text: "text", pages: 1}, index, pub, 0, nil)

	stage.HandleDocumentCreated(context.Background(), invoiceEvent())

	assert.Empty(t, docs.setTexts)
	assert.Empty(t, index.upserts)
	assert.Empty(t, pub.events)
}

func TestHandleDocumentCreatedDropsOnBlobFailure(t *testing.T) {
	blobs := &fakeBlobFetcher{err: errors.New("connection refused")}
	docs := newFakeDocumentStore(&catalog.Document{ID: 42})
	extractor := &fakeExtractor{text: "text", pages: 1}
	pub := &fakeCompletionPublisher{}
	stage := NewStage(blobs, docs, extractor, &fakeIndex{}, pub, 0, nil)

	stage.HandleDocumentCreated(context.Background(), invoiceEvent())

	assert.Zero(t, extractor.calls)
	assert.Empty(t, docs.setTexts)
	assert.Empty(t, pub.events)
}

func TestHandleDocumentCreatedSurvivesPublishFailure(t *testing.T) {
	blobs, docs := invoiceFixture()
	pub := &fakeCompletionPublisher{err: errors.New("broker down")}
	stage := NewStage(blobs, docs, &fakeExtractor{text: "text", pages: 1}, &fakeIndex{}, pub, 0, nil)

	stage.HandleDocumentCreated(context.Background(), invoiceEvent())

	assert.Equal(t, "text", docs.setTexts[42], "the durable write is the checkpoint, not the event")
}

func TestHandleDocumentCreatedRedeliveryIsIdempotent(t *testing.T) {
	blobs, docs := invoiceFixture()
	index := &fakeIndex{}
	pub := &fakeCompletionPublisher{}
	stage := NewStage(blobs, docs, &fakeExtractor{text: "Total: $50\n", pages: 1}, index, pub, 0, nil)

	stage.HandleDocumentCreated(context.Background(), invoiceEvent())
	stage.HandleDocumentCreated(context.Background(), invoiceEvent())

	assert.Equal(t, "Total: $50\n", docs.setTexts[42])
	assert.Len(t, pub.events, 2, "each delivery re-emits; downstream is idempotent")
	require.Len(t, index.upserts, 2)
	assert.Equal(t, index.upserts[0], index.upserts[1])
}

func TestHandlerDeadLettersUndecodableBody(t *testing.T) {
	blobs, docs := invoiceFixture()
	stage := NewStage(blobs, docs, &fakeExtractor{}, &fakeIndex{}, &fakeCompletionPublisher{}, 0, nil)
	handler := stage.Handler()

	err := handler(context.Background(), "docs.created", []byte("{not json"))

	require.Error(t, err)
	assert.Empty(t, docs.setTexts)
}

func TestHandlerAcksDecodableBody(t *testing.T) {
	blobs, docs := invoiceFixture()
	stage := NewStage(blobs, docs, &fakeExtractor{text: "text", pages: 1}, &fakeIndex{}, &fakeCompletionPublisher{}, 0, nil)
	handler := stage.Handler()

	body := []byte(`{"document_id":42,"title":"Invoice.pdf","bucket":"documents","storage_key":"docs/2026/08/30/key.pdf"}`)
	err := handler(context.Background(), "docs.created", body)

	require.NoError(t, err)
	assert.Equal(t, "text", docs.setTexts[42])
}
