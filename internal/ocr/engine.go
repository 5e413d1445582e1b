// Package ocr defines the black-box text-recognition boundary used by the
// extraction stage, with a Gemini-backed production engine.
package ocr

import "context"

// Options carries rendering hints for engines that rasterize pages before
// recognition.
type Options struct {
	// DPI is the page-render resolution. Engines that consume PDF pages
	// directly may ignore it.
	DPI int
}

// Engine extracts text from a single PDF page.
type Engine interface {
	RecognizePage(ctx context.Context, page []byte, opts Options) (string, error)
}
