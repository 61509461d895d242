package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/ingestion"
)

// Func は1種類のファイル形式からテキストを抽出する
type Func func(ctx context.Context, content []byte) (*ingestion.Extraction, error)

// Registry はコンテンツタイプごとに抽出処理を振り分ける
type Registry struct {
	extractors map[string]Func
	detector   *ContentTypeDetector
	logger     *slog.Logger
}

// Option は Registry のオプション設定
type Option func(*Registry)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry はテキスト・Markdown・PDF・DOCX に対応した Registry を作成する
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		extractors: map[string]Func{
			MimePlainText: ExtractText,
			MimeMarkdown:  ExtractText,
			MimePDF:       ExtractPDF,
			MimeDOCX:      ExtractDOCX,
		},
		detector: NewContentTypeDetector(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register は抽出処理を追加または置き換える
func (r *Registry) Register(contentType string, fn Func) {
	r.extractors[normalizeContentType(contentType)] = fn
}

// Extract はコンテンツタイプに応じてテキストを抽出する。
// コンテンツタイプが空または application/octet-stream の場合は内容から判定する。
func (r *Registry) Extract(ctx context.Context, content []byte, contentType string) (*ingestion.Extraction, error) {
	ct := normalizeContentType(contentType)
	if ct == "" || ct == MimeOctet {
		ct = r.detector.DetectContentType("", content)
		r.logger.Debug("コンテンツタイプを判定しました", "declared", contentType, "detected", ct)
	}

	fn, ok := r.extractors[ct]
	if !ok && strings.HasPrefix(ct, "text/") {
		fn, ok = ExtractText, true
	}
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", apperr.ErrExtraction, ct)
	}

	extraction, err := fn(ctx, content)
	if err != nil {
		return nil, err
	}
	extraction.ContentType = ct
	return extraction, nil
}

func normalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(mediaType)
	}
	return strings.ToLower(contentType)
}

var _ ingestion.Extractor = (*Registry)(nil)
