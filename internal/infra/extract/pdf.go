package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/ingestion"
)

// ExtractPDF はPDFからページごとのテキストを抽出する
func ExtractPDF(ctx context.Context, content []byte) (extraction *ingestion.Extraction, err error) {
	// 壊れたPDFでパーサが panic することがある
	defer func() {
		if r := recover(); r != nil {
			extraction = nil
			err = fmt.Errorf("%w: malformed pdf: %v", apperr.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open pdf: %v", apperr.ErrExtraction, err)
	}

	total := reader.NumPage()
	pages := make([]ingestion.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read page %d: %v", apperr.ErrExtraction, i, err)
		}
		pages = append(pages, ingestion.Page{Number: i, Text: text})
	}

	return &ingestion.Extraction{Pages: pages, Paged: true}, nil
}
