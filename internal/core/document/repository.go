package document

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository は科目・ドキュメント・フラグメントのデータアクセスを統合するインターフェース
type Repository interface {
	// === Subject ===
	CreateSubject(ctx context.Context, name string) (*Subject, error)
	ListSubjects(ctx context.Context) ([]*Subject, error)

	// === Document ===
	CreateDocument(ctx context.Context, doc *Document) (*Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*Document], error)
	ListDocumentsBySubject(ctx context.Context, subjectID uuid.UUID) ([]*Document, error)

	// === Fragment ===

	// PutFragment はフラグメントを保存する。
	// ドキュメントが存在しないか別科目に属する場合は ErrPersistence を返す。
	PutFragment(ctx context.Context, f *Fragment) (uuid.UUID, error)
	ListFragmentsByDocument(ctx context.Context, documentID uuid.UUID) ([]*Fragment, error)

	// SearchBySimilarity は科目内のフラグメントを類似度の降順で返す
	SearchBySimilarity(ctx context.Context, q SimilarityQuery) ([]*ScoredFragment, error)
}

// UnitOfWork は複数の書き込みを1トランザクションで実行する
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Repository) error) error
}
