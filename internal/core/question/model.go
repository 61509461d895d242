package question

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// OptionCount は1問あたりの選択肢数
const OptionCount = 4

// OptionTags は選択肢のタグ（Options のインデックス順）
var OptionTags = [OptionCount]string{"a", "b", "c", "d"}

// Draft はLLMが生成した永続化前の問題
type Draft struct {
	Question      string              `json:"question"`
	Options       [OptionCount]string `json:"options"`
	CorrectOption string              `json:"correctOption"`
	Explanation   string              `json:"explanation"`

	// ChunkOrdinal は生成元チャンクの位置（0始まり）
	ChunkOrdinal int `json:"chunkOrdinal"`
}

// Question は保存済みの4択問題（作成後は不変）
type Question struct {
	ID            uuid.UUID            `json:"id"`
	SubjectID     uuid.UUID            `json:"subjectID"`
	TopicID       mo.Option[uuid.UUID] `json:"topicID"`
	DocumentID    uuid.UUID            `json:"documentID"`
	Question      string               `json:"question"`
	Options       [OptionCount]string  `json:"options"`
	CorrectOption string               `json:"correctOption"`
	Explanation   string               `json:"explanation"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// NewQuestion は Draft から保存用の Question を作成する
func NewQuestion(d *Draft, subjectID, documentID uuid.UUID, topicID mo.Option[uuid.UUID]) *Question {
	return &Question{
		ID:            uuid.New(),
		SubjectID:     subjectID,
		TopicID:       topicID,
		DocumentID:    documentID,
		Question:      d.Question,
		Options:       d.Options,
		CorrectOption: d.CorrectOption,
		Explanation:   d.Explanation,
	}
}

// Validate は問題文・4つの選択肢・正解タグが揃っているか検証する
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question text is empty")
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %s is empty", OptionTags[i])
		}
	}
	if !IsValidTag(q.CorrectOption) {
		return fmt.Errorf("invalid correct option: %q", q.CorrectOption)
	}
	return nil
}

// IsValidTag は tag が a〜d のいずれかか判定する
func IsValidTag(tag string) bool {
	for _, t := range OptionTags {
		if t == tag {
			return true
		}
	}
	return false
}

// OptionIndex はタグに対応する Options のインデックスを返す
func OptionIndex(tag string) (int, bool) {
	for i, t := range OptionTags {
		if t == tag {
			return i, true
		}
	}
	return -1, false
}

// Progress は問題生成の進捗
type Progress struct {
	Current int
	Total   int
}

// ChunkFailure は1チャンク分の生成失敗
type ChunkFailure struct {
	Ordinal int
	Preview string
	Err     error
}
