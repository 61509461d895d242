package ingestion

import (
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// File はアップロードされたファイル
type File struct {
	Name        string
	StorageRef  string
	ContentType string // 空の場合は内容から判定する
	Content     []byte
}

// Request はインジェストのリクエスト
type Request struct {
	SubjectID string
	TopicID   mo.Option[uuid.UUID]
	File      File

	// QuestionCount は生成する問題数の上限（0 の場合は生成しない）
	QuestionCount int
}

// Result はインジェストの結果
type Result struct {
	DocumentID      uuid.UUID
	FragmentsCount  int
	QuestionsCount  int
	FailedQuestions int
}

// BatchResult は複数ファイルのインジェストにおける1件分の結果
type BatchResult struct {
	Index  int
	Name   string
	Result *Result
	Err    error
}

// Page は抽出テキストの1ページ
type Page struct {
	Number int
	Text   string
}

// Extraction はテキスト抽出の結果
type Extraction struct {
	ContentType string
	Pages       []Page
	// Paged はページ番号が実際の物理ページに対応するかどうか
	Paged bool
}

// Text は全ページのテキストを結合して返す
func (e *Extraction) Text() string {
	var n int
	for _, p := range e.Pages {
		n += len(p.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, p := range e.Pages {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p.Text...)
	}
	return string(buf)
}
