package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	"github.com/swen/dms/internal/search"
	apperrors "github.com/swen/dms/pkg/errors"
)

type fakeUploader struct {
	doc         *catalog.Document
	err         error
	gotTitle    string
	gotType     string
	gotFileSize int
}

func (f *fakeUploader) Upload(_ context.Context, file []byte, contentType, proposedTitle string) (*catalog.Document, error) {
	f.gotFileSize = len(file)
	f.gotType = contentType
	f.gotTitle = proposedTitle
	return f.doc, f.err
}

type fakeDocService struct {
	docs          map[int64]*catalog.Document
	fileData      []byte
	searchResults []search.Record
	updateErr     error
	deleteErr     error
}

func (f *fakeDocService) Get(_ context.Context, id int64) (*catalog.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocService) List(_ context.Context) ([]catalog.Document, error) {
	var out []catalog.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocService) Download(_ context.Context, id int64) (*catalog.Document, []byte, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil, apperrors.ErrDocumentNotFound
	}
	return doc, f.fileData, nil
}

func (f *fakeDocService) UpdateTitle(_ context.Context, id int64, newTitle string) (*catalog.Document, error) {
	if newTitle == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "title is required")
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	if f.updateErr != nil {
		var msgErr *events.MessagingError
		if errors.As(f.updateErr, &msgErr) {
			doc.Title = newTitle
			return doc, f.updateErr
		}
		return nil, f.updateErr
	}
	doc.Title = newTitle
	return doc, nil
}

func (f *fakeDocService) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[id]; !ok {
		return apperrors.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocService) Search(_ context.Context, _ string) []search.Record {
	if f.searchResults == nil {
		return []search.Record{}
	}
	return f.searchResults
}

func newTestServer(up *fakeUploader, svc *fakeDocService) *httptest.Server {
	mux := http.NewServeMux()
	New(up, svc, 16<<20).Register(mux)
	return httptest.NewServer(mux)
}

func multipartUpload(t *testing.T, url, filename, contentType string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/documents", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUploadReturnsCreatedDocument(t *testing.T) {
	up := &fakeUploader{doc: &catalog.Document{ID: 1, Title: "Invoice.pdf", Status: catalog.StatusCreated}}
	srv := newTestServer(up, &fakeDocService{})
	defer srv.Close()

	resp := multipartUpload(t, srv.URL, "Invoice.pdf", "application/pdf", []byte("%PDF-1.7"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var doc catalog.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, int64(1), doc.ID)
	assert.Equal(t, "Invoice.pdf", doc.Title)
	assert.Equal(t, "Invoice.pdf", up.gotTitle, "the filename is the default title")
	assert.Equal(t, "application/pdf", up.gotType)
	assert.Equal(t, 8, up.gotFileSize)
}

func TestUploadRejectionMapsToBadRequest(t *testing.T) {
	up := &fakeUploader{err: apperrors.New(apperrors.ErrUnsupportedType, 400, "only PDFs allowed")}
	srv := newTestServer(up, &fakeDocService{})
	defer srv.Close()

	resp := multipartUpload(t, srv.URL, "photo.png", "image/png", []byte("png"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadPublishFailureReturnsAcceptedWithWarning(t *testing.T) {
	doc := &catalog.Document{ID: 5, Title: "Invoice.pdf"}
	up := &fakeUploader{
		doc: doc,
		err: &events.MessagingError{Exchange: "docs.exchange", RoutingKey: "docs.created", Err: errors.New("broker down")},
	}
	srv := newTestServer(up, &fakeDocService{})
	defer srv.Close()

	resp := multipartUpload(t, srv.URL, "Invoice.pdf", "application/pdf", []byte("%PDF-1.7"))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "warning")
	assert.Contains(t, body, "document")
}

func TestUploadMissingFileField(t *testing.T) {
	srv := newTestServer(&fakeUploader{}, &fakeDocService{})
	defer srv.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("title", "no file"))
	require.NoError(t, w.Close())
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/documents", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownDocumentReturnsNotFound(t *testing.T) {
	srv := newTestServer(&fakeUploader{}, &fakeDocService{docs: map[int64]*catalog.Document{}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/documents/99")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetInvalidIDReturnsBadRequest(t *testing.T) {
	srv := newTestServer(&fakeUploader{}, &fakeDocService{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/documents/abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadSetsContentHeaders(t *testing.T) {
	svc := &fakeDocService{
		docs: map[int64]*catalog.Document{
			1: {ID: 1, Title: "Invoice.pdf", ContentType: "application/pdf"},
		},
		fileData: []byte("%PDF-1.7 invoice"),
	}
	srv := newTestServer(&fakeUploader{}, svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/documents/1/file")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Invoice.pdf")
}

func TestUpdateTitle(t *testing.T) {
	svc := &fakeDocService{docs: map[int64]*catalog.Document{1: {ID: 1, Title: "Invoice.pdf"}}}
	srv := newTestServer(&fakeUploader{}, svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/documents/1",
		strings.NewReader(`{"title":"Invoice-2026.pdf"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var doc catalog.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "Invoice-2026.pdf", doc.Title)
}

func TestUpdateTitleRequiresTitle(t *testing.T) {
	svc := &fakeDocService{docs: map[int64]*catalog.Document{1: {ID: 1, Title: "Invoice.pdf"}}}
	srv := newTestServer(&fakeUploader{}, svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/documents/1", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateTitleDuplicateReturnsConflict(t *testing.T) {
	svc := &fakeDocService{
		docs:      map[int64]*catalog.Document{1: {ID: 1, Title: "Invoice.pdf"}},
		updateErr: apperrors.Newf(apperrors.ErrDuplicateTitle, 409, "title %q already taken", "Report.pdf"),
	}
	srv := newTestServer(&fakeUploader{}, svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/documents/1",
		strings.NewReader(`{"title":"Report.pdf"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteReturnsNoContent(t *testing.T) {
	svc := &fakeDocService{docs: map[int64]*catalog.Document{1: {ID: 1}}}
	srv := newTestServer(&fakeUploader{}, svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/documents/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, svc.docs)
}

func TestSearchRequiresQuery(t *testing.T) {
	srv := newTestServer(&fakeUploader{}, &fakeDocService{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/search")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchReturnsMatches(t *testing.T) {
	svc := &fakeDocService{searchResults: []search.Record{
		{ID: "1", Title: "Invoice.pdf", Content: "Total: $50"},
	}}
	srv := newTestServer(&fakeUploader{}, svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/search?q=invoice")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var results []search.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "Invoice.pdf", results[0].Title)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeUploader{}, &fakeDocService{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
