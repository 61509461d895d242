package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/platform/retry"
)

// Guarded は Embedder 呼び出しにタイムアウト・リトライ・次元チェックを付与する
type Guarded struct {
	inner  Embedder
	policy retry.Policy
	logger *slog.Logger
}

// GuardedOption は Guarded のオプション設定
type GuardedOption func(*Guarded)

// WithRetryPolicy はリトライポリシーを上書きする
func WithRetryPolicy(p retry.Policy) GuardedOption {
	return func(g *Guarded) {
		g.policy = p
	}
}

// WithGuardedLogger はロガーを設定する
func WithGuardedLogger(logger *slog.Logger) GuardedOption {
	return func(g *Guarded) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuarded は新しい Guarded を作成する
func NewGuarded(inner Embedder, opts ...GuardedOption) *Guarded {
	g := &Guarded{
		inner:  inner,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Embed はタイムアウトとリトライ付きで Embedding を生成し、次元数を検証する
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", apperr.ErrGeneration)
	}

	vec, err := retry.Do(ctx, g.policy, "embed", func(ctx context.Context) ([]float32, error) {
		return g.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	if err := CheckDimension(vec, g.inner.Dimension()); err != nil {
		return nil, err
	}
	return vec, nil
}

// BatchEmbed は内部 Embedder がバッチ対応ならまとめて、そうでなければ1件ずつ順に変換する
func (g *Guarded) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", apperr.ErrGeneration, i)
		}
	}

	batcher, ok := g.inner.(BatchEmbedder)
	if !ok || len(texts) == 1 {
		vectors := make([][]float32, 0, len(texts))
		for _, text := range texts {
			vec, err := g.Embed(ctx, text)
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, vec)
		}
		return vectors, nil
	}

	vectors, err := retry.Do(ctx, g.policy, "batch embed", func(ctx context.Context) ([][]float32, error) {
		return batcher.BatchEmbed(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", apperr.ErrGeneration, len(texts), len(vectors))
	}
	for _, vec := range vectors {
		if err := CheckDimension(vec, g.inner.Dimension()); err != nil {
			return nil, err
		}
	}

	g.logger.Debug("バッチEmbeddingを生成しました", "count", len(vectors), "model", g.inner.ModelName())
	return vectors, nil
}

// Dimension はベクトル次元数を返す
func (g *Guarded) Dimension() int {
	return g.inner.Dimension()
}

// ModelName はモデル名を返す
func (g *Guarded) ModelName() string {
	return g.inner.ModelName()
}

// CheckDimension はベクトル長が期待次元と一致するか検証する
func CheckDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: expected %d, got %d", apperr.ErrDimensionMismatch, want, len(vec))
	}
	return nil
}

var _ BatchEmbedder = (*Guarded)(nil)
