package question

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository は問題のデータアクセスインターフェース
type Repository interface {
	// CreateQuestions は問題をまとめて保存する（全件成功か全件失敗）
	CreateQuestions(ctx context.Context, questions []*Question) ([]*Question, error)

	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*Question, error)

	Get(ctx context.Context, id uuid.UUID) (mo.Option[*Question], error)

	// Delete は問題を削除する。存在しない場合は false を返す
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
