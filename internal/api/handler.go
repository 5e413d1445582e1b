// Package api exposes the HTTP surface of the document service: upload,
// retrieval, download, title updates, deletion, and search. The handlers are
// trigger points only; pipeline behaviour lives in the stage packages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/swen/dms/internal/catalog"
	"github.com/swen/dms/internal/events"
	"github.com/swen/dms/internal/search"
	apperrors "github.com/swen/dms/pkg/errors"
	"github.com/swen/dms/pkg/logger"
)

type uploader interface {
	Upload(ctx context.Context, file []byte, contentType, proposedTitle string) (*catalog.Document, error)
}

type documentService interface {
	Get(ctx context.Context, id int64) (*catalog.Document, error)
	List(ctx context.Context) ([]catalog.Document, error)
	Download(ctx context.Context, id int64) (*catalog.Document, []byte, error)
	UpdateTitle(ctx context.Context, id int64, newTitle string) (*catalog.Document, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string) []search.Record
}

// Handler holds the HTTP endpoints.
type Handler struct {
	ingest         uploader
	docs           documentService
	maxUploadBytes int64
	logger         *slog.Logger
}

// New creates a Handler.
func New(ingest uploader, docs documentService, maxUploadBytes int64) *Handler {
	return &Handler{
		ingest:         ingest,
		docs:           docs,
		maxUploadBytes: maxUploadBytes,
		logger:         slog.Default().With("component", "api-handler"),
	}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Upload)
	mux.HandleFunc("GET /api/v1/documents", h.List)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("GET /api/v1/documents/{id}/file", h.Download)
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /health", h.Health)
}

// Upload accepts a multipart PDF upload and starts the pipeline. If the
// document was committed but the pipeline event could not be published, the
// response is 202 with a warning instead of an error.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reading upload")
		return
	}
	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	doc, err := h.ingest.Upload(ctx, data, header.Header.Get("Content-Type"), title)
	if err != nil {
		var msgErr *events.MessagingError
		if doc != nil && errors.As(err, &msgErr) {
			log.Warn("upload committed but event publish failed",
				"document_id", doc.ID,
				"error", err,
			)
			h.writeJSON(w, http.StatusAccepted, map[string]any{
				"document": doc,
				"warning":  "upload stored but processing may not start",
			})
			return
		}
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("upload failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "upload failed")
		return
	}
	log.Info("document uploaded", "document_id", doc.ID, "title", doc.Title)
	h.writeJSON(w, http.StatusCreated, doc)
}

// List returns all documents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "listing documents failed")
		return
	}
	if docs == nil {
		docs = []catalog.Document{}
	}
	h.writeJSON(w, http.StatusOK, docs)
}

// Get returns a single document by ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.docs.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "document not found")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Download streams the stored PDF back to the caller.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, data, err := h.docs.Download(r.Context(), id)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "download failed")
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Title))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write download", "document_id", id, "error", err)
	}
}

type updateRequest struct {
	Title string `json:"title"`
}

// Update renames a document and notifies the pipeline. A publish failure
// after the committed rename is reported as 202 with a warning.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.docs.UpdateTitle(r.Context(), id, req.Title)
	if err != nil {
		var msgErr *events.MessagingError
		if doc != nil && errors.As(err, &msgErr) {
			h.writeJSON(w, http.StatusAccepted, map[string]any{
				"document": doc,
				"warning":  "rename stored but update event not published",
			})
			return
		}
		h.writeError(w, apperrors.HTTPStatusCode(err), "update failed")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Delete removes a document and its blob.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.docs.Delete(r.Context(), id); err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search runs a fuzzy content query.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	h.writeJSON(w, http.StatusOK, h.docs.Search(r.Context(), query))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
