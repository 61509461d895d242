package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/platform/retry"
)

const (
	// DefaultLimit は取得件数のデフォルト
	DefaultLimit = document.DefaultSearchLimit

	// DefaultMatchThreshold は類似度の下限。再現率を優先して低めにしている
	DefaultMatchThreshold = 0.1

	// DefaultPreviewChars は返却するフラグメント本文の最大文字数
	DefaultPreviewChars = 500
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher は類似度検索のインターフェース
type Searcher interface {
	SearchBySimilarity(ctx context.Context, q document.SimilarityQuery) ([]*document.ScoredFragment, error)
}

// Config は検索の設定
type Config struct {
	MatchThreshold float64
	PreviewChars   int
	DefaultLimit   int
	Retry          retry.Policy
}

// DefaultConfig はデフォルトの検索設定を返す
func DefaultConfig() Config {
	return Config{
		MatchThreshold: DefaultMatchThreshold,
		PreviewChars:   DefaultPreviewChars,
		DefaultLimit:   DefaultLimit,
		Retry:          retry.DefaultPolicy(),
	}
}

// Service は科目スコープの関連フラグメント検索を提供する
type Service struct {
	searcher Searcher
	embedder Embedder
	cfg      Config
	logger   *slog.Logger
}

// Option は Service のオプション設定
type Option func(*Service)

// WithConfig は検索設定を上書きする
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithRetrievalLogger はロガーを設定する
func WithRetrievalLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService は新しい Service を作成する
func NewService(searcher Searcher, embedder Embedder, opts ...Option) *Service {
	s := &Service{
		searcher: searcher,
		embedder: embedder,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.DefaultLimit <= 0 {
		s.cfg.DefaultLimit = DefaultLimit
	}
	if s.cfg.PreviewChars <= 0 {
		s.cfg.PreviewChars = DefaultPreviewChars
	}
	return s
}

// FindRelevant は質問に関連するフラグメントを科目内から類似度順に取得する
func (s *Service) FindRelevant(ctx context.Context, question, subjectID string, limit int) ([]*document.ScoredFragment, error) {
	// 科目IDの検証は Embedding・検索より先に行う
	sid, err := document.ParseSubjectID(subjectID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	query := document.SimilarityQuery{
		Vector:    queryVector,
		SubjectID: sid.String(),
		Threshold: s.cfg.MatchThreshold,
		Limit:     limit,
	}

	results, err := retry.Do(ctx, s.cfg.Retry, "similarity search", func(ctx context.Context) ([]*document.ScoredFragment, error) {
		return s.searcher.SearchBySimilarity(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	fragments := make([]*document.ScoredFragment, 0, len(results))
	for _, r := range results {
		fragments = append(fragments, &document.ScoredFragment{
			ID:           strings.ToLower(r.ID),
			DocumentID:   strings.ToLower(r.DocumentID),
			SubjectID:    strings.ToLower(r.SubjectID),
			SectionTitle: r.SectionTitle,
			PageNumber:   r.PageNumber,
			Content:      Truncate(r.Content, s.cfg.PreviewChars),
			Score:        r.Score,
		})
	}

	s.logger.Debug("関連フラグメントを取得しました",
		"subjectID", query.SubjectID,
		"count", len(fragments),
		"threshold", query.Threshold,
	)

	return fragments, nil
}

// Truncate は文字列を先頭 maxChars 文字に切り詰める
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars])
}

