package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docaudit/internal/audit"
	"github.com/dgallion1/docaudit/internal/chunker"
)

// PageExtractor produces page-marked text for the audit pipeline. Parsers
// rarely report where pages break, so the flat text is apportioned over the
// page count and page numbers are approximate.
type PageExtractor struct {
	FallbackPdftotext bool
	Log               *slog.Logger
}

func (e *PageExtractor) ExtractPages(ctx context.Context, data []byte, filename string) (*audit.PageText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := ForFile(filename, e.FallbackPdftotext)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	pages := doc.PageCount
	if pages <= 0 {
		pages = EstimatePages(doc.Text)
	}

	if e.Log != nil {
		e.Log.Debug("document parsed", "filename", filename, "pages", pages, "chars", len([]rune(doc.Text)))
	}

	return &audit.PageText{
		Text:       chunker.Apportion(doc.Text, pages),
		TotalPages: pages,
	}, nil
}
