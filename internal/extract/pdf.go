package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/swen/dms/internal/ocr"
	"github.com/swen/dms/pkg/config"
)

// Extractor turns a PDF into text: it splits the document into single-page
// files and runs the OCR engine over each page in order. Page rendering and
// recognition dominate the stage's cost.
type Extractor struct {
	engine ocr.Engine
	opts   ocr.Options

	// pdfcpu seams, replaceable in tests.
	countPages func(path string) (int, error)
	splitPages func(path, dir string) error
}

// NewExtractor creates an Extractor using the given engine and OCR settings.
func NewExtractor(engine ocr.Engine, cfg config.OCRConfig) *Extractor {
	return &Extractor{
		engine:     engine,
		opts:       ocr.Options{DPI: cfg.DPI},
		countPages: api.PageCountFile,
		splitPages: func(path, dir string) error {
			return api.SplitFile(path, dir, 1, nil)
		},
	}
}

// Extract returns the concatenated page texts, each followed by a single
// newline, and the number of pages processed. A document with zero pages
// yields empty text, not an error.
func (e *Extractor) Extract(ctx context.Context, pdf []byte) (string, int, error) {
	dir, err := os.MkdirTemp("", "dms_ocr_")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(src, pdf, 0o600); err != nil {
		return "", 0, fmt.Errorf("writing temp pdf: %w", err)
	}

	pageCount, err := e.countPages(src)
	if err != nil {
		return "", 0, fmt.Errorf("counting pages: %w", err)
	}
	if pageCount == 0 {
		return "", 0, nil
	}
	if err := e.splitPages(src, dir); err != nil {
		return "", 0, fmt.Errorf("splitting pdf: %w", err)
	}

	var sb strings.Builder
	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("extraction cancelled at page %d: %w", page, err)
		}
		pagePath := filepath.Join(dir, fmt.Sprintf("document_%d.pdf", page))
		data, err := os.ReadFile(pagePath)
		if err != nil {
			return "", 0, fmt.Errorf("reading page %d: %w", page, err)
		}
		text, err := e.engine.RecognizePage(ctx, data, e.opts)
		if err != nil {
			return "", 0, fmt.Errorf("recognizing page %d: %w", page, err)
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), pageCount, nil
}
