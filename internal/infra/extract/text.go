package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/ingestion"
)

// ExtractText は UTF-8 テキストをそのまま1ページとして返す
func ExtractText(_ context.Context, content []byte) (*ingestion.Extraction, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", apperr.ErrExtraction)
	}
	text := strings.TrimPrefix(string(content), "\ufeff")
	return &ingestion.Extraction{
		Pages: []ingestion.Page{{Number: 1, Text: text}},
	}, nil
}
