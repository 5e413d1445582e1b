package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/swen/dms/pkg/errors"
	"github.com/swen/dms/pkg/postgres"
)

// Repository provides CRUD access to the documents table.
type Repository struct {
	db *postgres.Client
}

// NewRepository creates a Repository backed by the given Postgres client.
func NewRepository(db *postgres.Client) *Repository {
	return &Repository{db: db}
}

const documentColumns = `id, title, storage_key, content_type, size_bytes, uploaded_at,
	extracted_text, summary_text, access_count, status`

// Create inserts a new document in state CREATED and returns it with its
// assigned ID.
func (r *Repository) Create(ctx context.Context, doc *Document) (*Document, error) {
	doc.Status = StatusCreated
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	err := r.db.DB.QueryRowContext(ctx,
		`INSERT INTO documents (title, storage_key, content_type, size_bytes, uploaded_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		doc.Title, doc.StorageKey, doc.ContentType, doc.SizeBytes, doc.UploadedAt, doc.Status,
	).Scan(&doc.ID)
	if isUniqueViolation(err) {
		return nil, apperrors.Newf(apperrors.ErrDuplicateTitle, 409, "document %q", doc.Title)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return doc, nil
}

// GetByID returns the document with the given ID, or ErrDocumentNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Document, error) {
	row := r.db.DB.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row, id)
}

// List returns all documents ordered by upload time, newest first.
func (r *Repository) List(ctx context.Context) ([]Document, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var extracted, summary sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.StorageKey, &doc.ContentType,
			&doc.SizeBytes, &doc.UploadedAt, &extracted, &summary,
			&doc.AccessCount, &doc.Status); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc.ExtractedText = nullableToPtr(extracted)
		doc.SummaryText = nullableToPtr(summary)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ExistsByTitle reports whether a document with the exact title exists.
func (r *Repository) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE title = $1)`, title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking title %q: %w", title, err)
	}
	return exists, nil
}

// FindByTitle returns the document with the exact title, or
// ErrDocumentNotFound.
func (r *Repository) FindByTitle(ctx context.Context, title string) (*Document, error) {
	row := r.db.DB.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE title = $1`, title)
	return scanDocument(row, 0)
}

// UpdateTitle sets a new title for the document. A title held by another
// document maps to ErrDuplicateTitle.
func (r *Repository) UpdateTitle(ctx context.Context, id int64, title string) error {
	err := r.exec(ctx, id,
		`UPDATE documents SET title = $1 WHERE id = $2`, title, id)
	if isUniqueViolation(err) {
		return apperrors.Newf(apperrors.ErrDuplicateTitle, 409, "title %q already taken", title)
	}
	return err
}

// SetExtractedText persists the extraction result and advances the document
// to TEXT_EXTRACTED. The write is a single statement so concurrent
// redeliveries serialise on the row lock.
func (r *Repository) SetExtractedText(ctx context.Context, id int64, text string) error {
	return r.exec(ctx, id,
		`UPDATE documents SET extracted_text = $1, status = $2 WHERE id = $3`,
		text, StatusTextExtracted, id)
}

// SetSummary persists the summary and advances the document to SUMMARIZED.
func (r *Repository) SetSummary(ctx context.Context, id int64, summary string) error {
	return r.exec(ctx, id,
		`UPDATE documents SET summary_text = $1, status = $2 WHERE id = $3`,
		summary, StatusSummarized, id)
}

// IncrementAccessCount bumps the access counter for a downloaded document.
func (r *Repository) IncrementAccessCount(ctx context.Context, id int64) error {
	return r.exec(ctx, id,
		`UPDATE documents SET access_count = access_count + 1 WHERE id = $1`, id)
}

// Delete removes the document row. Join-table rows cascade via the schema.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, id, `DELETE FROM documents WHERE id = $1`, id)
}

func (r *Repository) exec(ctx context.Context, id int64, query string, args ...any) error {
	res, err := r.db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating document %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for document %d: %w", id, err)
	}
	if affected == 0 {
		return apperrors.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row *sql.Row, id int64) (*Document, error) {
	var doc Document
	var extracted, summary sql.NullString
	err := row.Scan(&doc.ID, &doc.Title, &doc.StorageKey, &doc.ContentType,
		&doc.SizeBytes, &doc.UploadedAt, &extracted, &summary,
		&doc.AccessCount, &doc.Status)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.ExtractedText = nullableToPtr(extracted)
	doc.SummaryText = nullableToPtr(summary)
	return &doc, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullableToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
