package answer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/llm"
)

// DefaultTemperature は回答生成時の温度
const DefaultTemperature = 0.3

// Synthesizer はフラグメントを根拠に回答を生成する
type Synthesizer struct {
	llm         llm.Client
	temperature float64
	logger      *slog.Logger
}

// SynthesizerOption は Synthesizer のオプション設定
type SynthesizerOption func(*Synthesizer)

// WithTemperature は生成時の温度を上書きする
func WithTemperature(t float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.temperature = t
	}
}

// WithSynthesizerLogger はロガーを設定する
func WithSynthesizerLogger(logger *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynthesizer は新しい Synthesizer を作成する
func NewSynthesizer(client llm.Client, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		llm:         client,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize は質問とフラグメントから回答と引用を生成する。
// フラグメントが空の場合はLLMを呼ばずに固定回答を返す。
func (s *Synthesizer) Synthesize(ctx context.Context, question string, fragments []*document.ScoredFragment) (*Answer, error) {
	if len(fragments) == 0 {
		return &Answer{Text: NoContentAnswer, Citations: []Citation{}}, nil
	}

	ranked := slices.Clone(fragments)
	slices.SortStableFunc(ranked, func(a, b *document.ScoredFragment) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(BuildSystemPrompt(ranked)),
			llm.User(question),
		},
		Temperature: s.temperature,
	}

	s.logger.Info("generating answer with LLM", "fragments", len(ranked))

	resp, err := s.llm.GenerateCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: empty answer", apperr.ErrGeneration)
	}

	citations := make([]Citation, 0, len(ranked))
	for _, f := range ranked {
		citations = append(citations, Citation{
			SectionTitle: f.SectionTitle,
			PageNumber:   f.PageNumber,
			Text:         f.Content,
			Score:        f.Score,
		})
	}

	return &Answer{
		Text:      resp.Content,
		Citations: citations,
	}, nil
}
