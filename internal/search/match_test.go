package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	content := "Invoice for consulting services. Total amount: $50. Payment due within 30 days."

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"exact word", "invoice", true},
		{"case insensitive", "INVOICE", true},
		{"substring", "consult", true},
		{"single typo in long token", "invoixe", true},
		{"missing letter in long token", "invoic", true},
		{"one of several tokens matches", "missing payment", true},
		{"no match", "taxes", false},
		{"short token gets no fuzziness", "dayz", false},
		{"two typos too far", "invxixe", false},
		{"empty query", "", false},
		{"whitespace query", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(content, tt.query))
		})
	}
}

func TestEditDistanceAtMostOne(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"invoice", "invoice", true},
		{"invoice", "invoixe", true},
		{"invoice", "invoic", true},
		{"invoice", "invoices", true},
		{"invoice", "invxixe", false},
		{"invoice", "inv", false},
		{"", "a", true},
		{"", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, editDistanceAtMostOne(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
