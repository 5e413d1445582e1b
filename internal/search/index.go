// Package search provides the denormalized full-text index for documents.
// The index is derived state: it is rebuildable from the catalog at any time
// and its absence or staleness never blocks pipeline progress.
package search

import "context"

// IndexName is the fixed logical index documents are stored under.
const IndexName = "documents"

// Record is the flat searchable projection of a document.
type Record struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Index stores and queries search records.
type Index interface {
	// Upsert inserts or replaces the record with the same ID.
	Upsert(ctx context.Context, rec Record) error
	// QueryFuzzy returns records whose content loosely matches the query:
	// each query token matches by substring or by small edit distance.
	QueryFuzzy(ctx context.Context, query string) ([]Record, error)
	// Delete removes the record with the given ID, if present.
	Delete(ctx context.Context, id string) error
}
