// Package extractor turns attachment files into page-numbered text.
// PDFs yield one entry per page, spreadsheets one per sheet, and
// anything else is treated as a single page of plain text.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Opener abstracts where attachment bytes come from; the local
// filesystem storage satisfies it.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Extractor struct {
	storage Opener
}

func New(storage Opener) *Extractor {
	return &Extractor{storage: storage}
}

// ExtractPages reads the attachment at key and returns its text pages
// in order. Pages that contain no text are kept empty so page numbers
// stay aligned with the source document.
func (e *Extractor) ExtractPages(ctx context.Context, key string) ([]string, error) {
	reader, err := e.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}

	switch strings.ToLower(filepath.Ext(key)) {
	case ".pdf":
		return extractPDFPages(raw)
	case ".xlsx", ".xlsm":
		return extractWorkbookSheets(raw)
	default:
		page, err := extractPlainText(raw, key)
		if err != nil {
			return nil, err
		}
		return []string{page}, nil
	}
}
