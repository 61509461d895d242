package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/llm"
)

const (
	// DefaultMinChunkChars は問題生成の対象とするチャンクの最小文字数
	DefaultMinChunkChars = 100

	// DefaultTemperature は問題生成時の温度
	DefaultTemperature = 0.7

	// previewChars はログに残すチャンクプレビューの文字数
	previewChars = 80
)

// errAnswerNotInOptions は正解が選択肢のどれとも一致しない場合のエラー
var errAnswerNotInOptions = errors.New("correct answer does not match any option")

// Config は問題生成の設定
type Config struct {
	MinChunkChars int
	Temperature   float64
	MaxTokens     int
}

// DefaultConfig はデフォルトの問題生成設定を返す
func DefaultConfig() Config {
	return Config{
		MinChunkChars: DefaultMinChunkChars,
		Temperature:   DefaultTemperature,
	}
}

// Generator はチャンクから4択問題を生成する
type Generator struct {
	llm    llm.Client
	cfg    Config
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// GeneratorOption は Generator のオプション設定
type GeneratorOption func(*Generator)

// WithGeneratorConfig は生成設定を上書きする
func WithGeneratorConfig(cfg Config) GeneratorOption {
	return func(g *Generator) {
		g.cfg = cfg
	}
}

// WithRand はチャンク抽選に使う乱数生成器を差し替える
func WithRand(rng *rand.Rand) GeneratorOption {
	return func(g *Generator) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// WithGeneratorLogger はロガーを設定する
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator は新しい Generator を作成する
func NewGenerator(client llm.Client, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:    client,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate は最大 countHint 問を生成する。
// チャンク単位の失敗は記録して処理を続け、エラーとしては返さない。
func (g *Generator) Generate(ctx context.Context, chunks []string, countHint int, progress func(Progress)) ([]*Draft, []ChunkFailure) {
	selected := g.selectChunks(chunks, countHint)
	if len(selected) == 0 {
		return nil, nil
	}

	var drafts []*Draft
	var failures []ChunkFailure

	for i, ordinal := range selected {
		if ctx.Err() != nil {
			break
		}
		if progress != nil {
			progress(Progress{Current: i + 1, Total: len(selected)})
		}

		chunk := chunks[ordinal]
		draft, err := g.generateOne(ctx, chunk)
		if err != nil {
			failure := ChunkFailure{
				Ordinal: ordinal,
				Preview: preview(chunk),
				Err:     err,
			}
			failures = append(failures, failure)
			g.logger.Warn("問題生成に失敗しました（スキップして続行）",
				"chunkOrdinal", failure.Ordinal,
				"chunkPreview", failure.Preview,
				"error", err,
			)
			continue
		}

		draft.ChunkOrdinal = ordinal
		drafts = append(drafts, draft)
	}

	g.logger.Info("問題生成が完了しました",
		"requested", countHint,
		"candidates", len(selected),
		"generated", len(drafts),
		"failed", len(failures),
	)

	return drafts, failures
}

// selectChunks は最小文字数を満たすチャンクのインデックスを返す。
// 候補が countHint より多い場合は一様ランダムに countHint 件を選び、元の順序で返す。
func (g *Generator) selectChunks(chunks []string, countHint int) []int {
	if countHint <= 0 {
		return nil
	}

	var candidates []int
	for i, c := range chunks {
		if utf8.RuneCountInString(strings.TrimSpace(c)) >= g.cfg.MinChunkChars {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) <= countHint {
		return candidates
	}

	g.mu.Lock()
	perm := g.rng.Perm(len(candidates))
	g.mu.Unlock()

	picked := make([]int, 0, countHint)
	for _, p := range perm[:countHint] {
		picked = append(picked, candidates[p])
	}
	slices.Sort(picked)
	return picked
}

// generatedItem はLLMが返すJSONの形
type generatedItem struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

func (g *Generator) generateOne(ctx context.Context, chunk string) (*Draft, error) {
	resp, err := g.llm.GenerateCompletion(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(BuildSystemPrompt()),
			llm.User(chunk),
		},
		Temperature:    g.cfg.Temperature,
		MaxTokens:      g.cfg.MaxTokens,
		ResponseFormat: llm.ResponseFormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate question: %w", err)
	}

	return ParseDraft(resp.Content)
}

// ParseDraft はLLMの出力を検証して Draft に変換する
func ParseDraft(content string) (*Draft, error) {
	var item generatedItem
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &item); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", apperr.ErrGeneration, err)
	}

	if strings.TrimSpace(item.Question) == "" {
		return nil, fmt.Errorf("%w: question is empty", apperr.ErrGeneration)
	}
	if len(item.Options) != OptionCount {
		return nil, fmt.Errorf("%w: expected %d options, got %d", apperr.ErrGeneration, OptionCount, len(item.Options))
	}
	if strings.TrimSpace(item.CorrectAnswer) == "" {
		return nil, fmt.Errorf("%w: correct answer is empty", apperr.ErrGeneration)
	}
	if strings.TrimSpace(item.Explanation) == "" {
		return nil, fmt.Errorf("%w: explanation is empty", apperr.ErrGeneration)
	}

	draft := &Draft{
		Question:    strings.TrimSpace(item.Question),
		Explanation: strings.TrimSpace(item.Explanation),
	}

	seen := make(map[string]bool, OptionCount)
	for i, opt := range item.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return nil, fmt.Errorf("%w: option %s is empty", apperr.ErrGeneration, OptionTags[i])
		}
		// 重複があると正解タグが一意に決まらない
		if seen[opt] {
			return nil, fmt.Errorf("%w: duplicate option %q", apperr.ErrGeneration, opt)
		}
		seen[opt] = true
		draft.Options[i] = opt
	}

	answer := strings.TrimSpace(item.CorrectAnswer)
	for i, opt := range draft.Options {
		if opt == answer {
			draft.CorrectOption = OptionTags[i]
			return draft, nil
		}
	}

	return nil, fmt.Errorf("%w: %w: %q", apperr.ErrGeneration, errAnswerNotInOptions, answer)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func preview(chunk string) string {
	chunk = strings.Join(strings.Fields(chunk), " ")
	if utf8.RuneCountInString(chunk) <= previewChars {
		return chunk
	}
	return string([]rune(chunk)[:previewChars]) + "..."
}
