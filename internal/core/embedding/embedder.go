package embedding

import "context"

// Embedder はテキストを固定次元のベクトルに変換する
type Embedder interface {
	// Embed は単一テキストの Embedding を生成する
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension はベクトル次元数を返す
	Dimension() int
	// ModelName はモデル名を返す
	ModelName() string
}

// BatchEmbedder は複数テキストをまとめて変換できる Embedder
type BatchEmbedder interface {
	Embedder
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}
