// Package events defines the immutable pipeline event records and the
// publisher that emits them to the broker. Events are written once, never
// mutated, and not stored after successful dispatch; durability is the
// broker's responsibility.
package events

import "time"

// DocumentCreated is published once per successful ingestion. Consumers may
// observe duplicates under at-least-once delivery and must be idempotent.
type DocumentCreated struct {
	DocumentID int64     `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	Bucket     string    `json:"bucket"`
	StorageKey string    `json:"storage_key"`
}

// DocumentUpdated is published once per metadata edit, carrying before and
// after state.
type DocumentUpdated struct {
	DocumentID  int64     `json:"document_id"`
	TitleBefore string    `json:"title_before"`
	TitleAfter  string    `json:"title_after"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TextExtracted signals extraction-stage completion and triggers the
// summarization stage.
type TextExtracted struct {
	DocumentID int64 `json:"document_id"`
}
