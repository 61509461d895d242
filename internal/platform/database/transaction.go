package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/question"
	"github.com/jinford/study-rag/internal/infra/postgres"
	"github.com/jinford/study-rag/internal/infra/postgres/sqlc"
)

// TransactionProvider follows the pattern described in https://threedots.tech/post/database-transactions-in-go/
// It hides pgx transactions behind a callback that receives data-access adapters.
type TransactionProvider struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewTransactionProvider は新しいTransactionProviderを作成します。
// dimension はフラグメント書き込み時に検証する Embedding 次元です。
func NewTransactionProvider(pool *pgxpool.Pool, dimension int) *TransactionProvider {
	return &TransactionProvider{pool: pool, dimension: dimension}
}

// Adapter bundles repository adapters that operate inside a single transaction.
type Adapter struct {
	Documents *postgres.DocumentRepository
	Questions *postgres.QuestionRepository
}

func (p *TransactionProvider) newAdapter(tx pgx.Tx) *Adapter {
	q := sqlc.New(tx)
	return &Adapter{
		Documents: postgres.NewDocumentRepository(q, p.dimension),
		Questions: postgres.NewQuestionRepository(q),
	}
}

// Transact opens a transaction, builds adapters, and passes them to fn.
func Transact[T any](ctx context.Context, p *TransactionProvider, fn func(*Adapter) (T, error)) (T, error) {
	var zero T
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	adapters := p.newAdapter(tx)

	result, err := fn(adapters)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return zero, fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// Do は document.UnitOfWork を実装します
func (p *TransactionProvider) Do(ctx context.Context, fn func(document.Repository) error) error {
	_, err := Transact(ctx, p, func(a *Adapter) (struct{}, error) {
		return struct{}{}, fn(a.Documents)
	})
	return err
}

var _ document.UnitOfWork = (*TransactionProvider)(nil)

// QuestionStore は問題の一括保存をトランザクション内で行う question.Repository です
type QuestionStore struct {
	*postgres.QuestionRepository
	tx *TransactionProvider
}

// NewQuestionStore は読み取りをプール、一括保存をトランザクションで行う QuestionStore を作成します
func NewQuestionStore(pool *pgxpool.Pool, tx *TransactionProvider) *QuestionStore {
	return &QuestionStore{
		QuestionRepository: postgres.NewQuestionRepository(sqlc.New(pool)),
		tx:                 tx,
	}
}

// CreateQuestions は全件を1トランザクションで保存します
func (s *QuestionStore) CreateQuestions(ctx context.Context, questions []*question.Question) ([]*question.Question, error) {
	return Transact(ctx, s.tx, func(a *Adapter) ([]*question.Question, error) {
		return a.Questions.CreateQuestions(ctx, questions)
	})
}

var _ question.Repository = (*QuestionStore)(nil)
