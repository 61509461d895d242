package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashModelName は HashEmbedder のモデル名
const HashModelName = "feature-hash"

// HashEmbedder は単語の特徴ハッシュから決定的なベクトルを生成する。
// 外部サービスを使わないオフライン実行とテスト用。
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder は指定次元の HashEmbedder を作成する
func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{dimension: dimension}
}

// Embed は単語ごとにハッシュした次元へ符号付きで加算し、L2正規化したベクトルを返す
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", h.dimension)
	}

	vec := make([]float32, h.dimension)
	for _, token := range tokenize(text) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(token))
		sum := hasher.Sum64()

		idx := int(sum % uint64(h.dimension))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// Dimension はベクトル次元数を返す
func (h *HashEmbedder) Dimension() int {
	return h.dimension
}

// ModelName はモデル名を返す
func (h *HashEmbedder) ModelName() string {
	return HashModelName
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

var _ Embedder = (*HashEmbedder)(nil)
