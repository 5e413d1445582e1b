// Package catalog owns the relational document catalog: the Document model,
// its lifecycle status, and the PostgreSQL repository. The catalog is the
// single source of truth for document existence and pipeline progress.
package catalog

import "time"

// Status is the explicit pipeline state of a document. It always agrees with
// field presence: ExtractedText is set from TEXT_EXTRACTED onwards and
// SummaryText from SUMMARIZED.
type Status string

const (
	StatusCreated       Status = "CREATED"
	StatusTextExtracted Status = "TEXT_EXTRACTED"
	StatusSummarized    Status = "SUMMARIZED"
)

// Document is a row in the documents table. StorageKey is globally unique
// and immutable once set.
type Document struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	StorageKey    string    `json:"storage_key"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	UploadedAt    time.Time `json:"uploaded_at"`
	ExtractedText *string   `json:"extracted_text,omitempty"`
	SummaryText   *string   `json:"summary_text,omitempty"`
	AccessCount   int64     `json:"access_count"`
	Status        Status    `json:"status"`
}

// Category is a row in the categories table. Documents and categories are
// related through the document_categories join table.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
