package ingestion

import (
	"context"

	"github.com/jinford/study-rag/internal/core/question"
)

// Extractor はファイル内容からテキストを抽出する
type Extractor interface {
	Extract(ctx context.Context, content []byte, contentType string) (*Extraction, error)
}

// Embedder はチャンクをベクトルに変換する
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// QuestionGenerator はチャンクから問題を生成する
type QuestionGenerator interface {
	Generate(ctx context.Context, chunks []string, countHint int, progress func(question.Progress)) ([]*question.Draft, []question.ChunkFailure)
}

// QuestionStore は生成した問題を保存する
type QuestionStore interface {
	CreateQuestions(ctx context.Context, questions []*question.Question) ([]*question.Question, error)
}
