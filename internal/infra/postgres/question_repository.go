package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/question"
	"github.com/jinford/study-rag/internal/infra/postgres/sqlc"
)

// QuestionRepository は問題の読み書きを行う PostgreSQL リポジトリです。
// CreateQuestions の原子性は呼び出し側のトランザクションに委ねます。
type QuestionRepository struct {
	q sqlc.Querier
}

// NewQuestionRepository は新しい QuestionRepository を作成します
func NewQuestionRepository(q sqlc.Querier) *QuestionRepository {
	return &QuestionRepository{q: q}
}

var _ question.Repository = (*QuestionRepository)(nil)

func (r *QuestionRepository) CreateQuestions(ctx context.Context, questions []*question.Question) ([]*question.Question, error) {
	created := make([]*question.Question, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrPersistence, err)
		}
		id := q.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		row, err := r.q.CreateQuestion(ctx, sqlc.CreateQuestionParams{
			ID:            UUIDToPgtype(id),
			SubjectID:     UUIDToPgtype(q.SubjectID),
			TopicID:       OptionToPgtype(q.TopicID),
			DocumentID:    UUIDToPgtype(q.DocumentID),
			Question:      q.Question,
			OptionA:       q.Options[0],
			OptionB:       q.Options[1],
			OptionC:       q.Options[2],
			OptionD:       q.Options[3],
			CorrectOption: q.CorrectOption,
			Explanation:   q.Explanation,
		})
		if err != nil {
			if IsForeignKeyViolation(err) {
				return nil, classify(fmt.Sprintf("document %s not found in subject %s", q.DocumentID, q.SubjectID), err)
			}
			return nil, classify("failed to create question", err)
		}
		created = append(created, toQuestion(row))
	}
	return created, nil
}

func (r *QuestionRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*question.Question, error) {
	rows, err := r.q.ListQuestionsBySubject(ctx, UUIDToPgtype(subjectID))
	if err != nil {
		return nil, classify("failed to list questions", err)
	}
	result := make([]*question.Question, 0, len(rows))
	for _, row := range rows {
		result = append(result, toQuestion(row))
	}
	return result, nil
}

func (r *QuestionRepository) Get(ctx context.Context, id uuid.UUID) (mo.Option[*question.Question], error) {
	row, err := r.q.GetQuestion(ctx, UUIDToPgtype(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*question.Question](), nil
		}
		return mo.None[*question.Question](), classify("failed to get question", err)
	}
	return mo.Some(toQuestion(row)), nil
}

func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.q.DeleteQuestion(ctx, UUIDToPgtype(id))
	if err != nil {
		return false, classify("failed to delete question", err)
	}
	return n > 0, nil
}

func toQuestion(row sqlc.Question) *question.Question {
	return &question.Question{
		ID:            PgtypeToUUID(row.ID),
		SubjectID:     PgtypeToUUID(row.SubjectID),
		TopicID:       PgtypeToOption(row.TopicID),
		DocumentID:    PgtypeToUUID(row.DocumentID),
		Question:      row.Question,
		Options:       [question.OptionCount]string{row.OptionA, row.OptionB, row.OptionC, row.OptionD},
		CorrectOption: row.CorrectOption,
		Explanation:   row.Explanation,
		CreatedAt:     PgtypeToTime(row.CreatedAt),
	}
}
