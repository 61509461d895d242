package document

import (
	"time"

	"github.com/google/uuid"
)

// Subject は学習ドキュメントをまとめる科目
type Subject struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Document はアップロードされた学習ドキュメントのメタデータ（作成後は不変）
type Document struct {
	ID          uuid.UUID `json:"id"`
	SubjectID   uuid.UUID `json:"subjectID"`
	Name        string    `json:"name"`
	StorageRef  string    `json:"storageRef"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Fragment は検索対象となるチャンクとその Embedding
type Fragment struct {
	ID           uuid.UUID `json:"id"`
	DocumentID   uuid.UUID `json:"documentID"`
	SubjectID    uuid.UUID `json:"subjectID"`
	SectionTitle string    `json:"sectionTitle"`
	PageNumber   int       `json:"pageNumber"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ScoredFragment は類似度検索の結果を表す。
// ID は外部へ返すため正規化済みの小文字UUID文字列で保持する。
type ScoredFragment struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"documentID"`
	SubjectID    string  `json:"subjectID"`
	SectionTitle string  `json:"sectionTitle"`
	PageNumber   int     `json:"pageNumber"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// SimilarityQuery は類似度検索の条件
type SimilarityQuery struct {
	Vector    []float32
	SubjectID string
	Threshold float64
	Limit     int
}

// DefaultSearchLimit は Limit が0以下のときに使う取得件数
const DefaultSearchLimit = 10

// EffectiveLimit はストアが使う取得件数を返す
func (q SimilarityQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultSearchLimit
	}
	return q.Limit
}
