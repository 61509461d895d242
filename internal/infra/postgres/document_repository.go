package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/embedding"
	"github.com/jinford/study-rag/internal/infra/postgres/sqlc"
)

// DocumentRepository は document.Repository を実装する PostgreSQL リポジトリです
type DocumentRepository struct {
	q         sqlc.Querier
	dimension int
}

// NewDocumentRepository は新しい DocumentRepository を作成します。
// dimension はフラグメントの Embedding 次元で、書き込み前と検索前に検証します。
func NewDocumentRepository(q sqlc.Querier, dimension int) *DocumentRepository {
	return &DocumentRepository{q: q, dimension: dimension}
}

// コンパイル時の型チェック
var _ document.Repository = (*DocumentRepository)(nil)

// === Subject ===

func (r *DocumentRepository) CreateSubject(ctx context.Context, name string) (*document.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subject name is required", apperr.ErrPersistence)
	}
	row, err := r.q.CreateSubject(ctx, name)
	if err != nil {
		return nil, classify("failed to create subject", err)
	}
	return toSubject(row), nil
}

func (r *DocumentRepository) ListSubjects(ctx context.Context) ([]*document.Subject, error) {
	rows, err := r.q.ListSubjects(ctx)
	if err != nil {
		return nil, classify("failed to list subjects", err)
	}
	result := make([]*document.Subject, 0, len(rows))
	for _, row := range rows {
		result = append(result, toSubject(row))
	}
	return result, nil
}

// === Document ===

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *document.Document) (*document.Document, error) {
	id := doc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row, err := r.q.CreateDocument(ctx, sqlc.CreateDocumentParams{
		ID:          UUIDToPgtype(id),
		SubjectID:   UUIDToPgtype(doc.SubjectID),
		Name:        doc.Name,
		StorageRef:  doc.StorageRef,
		Size:        doc.Size,
		ContentType: doc.ContentType,
	})
	if err != nil {
		switch {
		case IsForeignKeyViolation(err):
			return nil, classify(fmt.Sprintf("subject not found: %s", doc.SubjectID), err)
		case IsUniqueViolation(err):
			return nil, classify(fmt.Sprintf("duplicate document id: %s", id), err)
		}
		return nil, classify("failed to create document", err)
	}
	return toDocument(row), nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*document.Document], error) {
	row, err := r.q.GetDocument(ctx, UUIDToPgtype(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*document.Document](), nil
		}
		return mo.None[*document.Document](), classify("failed to get document", err)
	}
	return mo.Some(toDocument(row)), nil
}

func (r *DocumentRepository) ListDocumentsBySubject(ctx context.Context, subjectID uuid.UUID) ([]*document.Document, error) {
	rows, err := r.q.ListDocumentsBySubject(ctx, UUIDToPgtype(subjectID))
	if err != nil {
		return nil, classify("failed to list documents", err)
	}
	result := make([]*document.Document, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDocument(row))
	}
	return result, nil
}

// === Fragment ===

// PutFragment はフラグメントを保存します。
// 親ドキュメントが存在しないか科目が一致しない場合、INSERT ... SELECT が0行となり ErrPersistence を返します。
func (r *DocumentRepository) PutFragment(ctx context.Context, f *document.Fragment) (uuid.UUID, error) {
	if err := embedding.CheckDimension(f.Embedding, r.dimension); err != nil {
		return uuid.Nil, err
	}
	id := f.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	inserted, err := r.q.InsertFragment(ctx, sqlc.InsertFragmentParams{
		ID:           UUIDToPgtype(id),
		SectionTitle: f.SectionTitle,
		PageNumber:   int32(f.PageNumber),
		Content:      f.Content,
		Embedding:    pgvector.NewVector(f.Embedding),
		DocumentID:   UUIDToPgtype(f.DocumentID),
		SubjectID:    UUIDToPgtype(f.SubjectID),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: document %s not found in subject %s",
				apperr.ErrPersistence, f.DocumentID, f.SubjectID)
		}
		return uuid.Nil, classify("failed to insert fragment", err)
	}
	return PgtypeToUUID(inserted), nil
}

func (r *DocumentRepository) ListFragmentsByDocument(ctx context.Context, documentID uuid.UUID) ([]*document.Fragment, error) {
	rows, err := r.q.ListFragmentsByDocument(ctx, UUIDToPgtype(documentID))
	if err != nil {
		return nil, classify("failed to list fragments", err)
	}
	result := make([]*document.Fragment, 0, len(rows))
	for _, row := range rows {
		result = append(result, &document.Fragment{
			ID:           PgtypeToUUID(row.ID),
			DocumentID:   PgtypeToUUID(row.DocumentID),
			SubjectID:    PgtypeToUUID(row.SubjectID),
			SectionTitle: row.SectionTitle,
			PageNumber:   int(row.PageNumber),
			Content:      row.Content,
			Embedding:    row.Embedding.Slice(),
			CreatedAt:    PgtypeToTime(row.CreatedAt),
		})
	}
	return result, nil
}

// SearchBySimilarity は科目内のフラグメントを類似度の降順で検索します。
// HNSW の iterative scan は順序を緩めるため、取得後に並べ直します。
func (r *DocumentRepository) SearchBySimilarity(ctx context.Context, q document.SimilarityQuery) ([]*document.ScoredFragment, error) {
	subjectID, err := document.ParseSubjectID(q.SubjectID)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckDimension(q.Vector, r.dimension); err != nil {
		return nil, err
	}

	rows, err := r.q.MatchFragments(ctx, sqlc.MatchFragmentsParams{
		QueryEmbedding:  pgvector.NewVector(q.Vector),
		FilterSubjectID: UUIDToPgtype(subjectID),
		MatchThreshold:  q.Threshold,
		MatchCount:      int32(q.EffectiveLimit()),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("similarity search: %w: %w", apperr.ErrServiceUnavailable, err)
		}
		return nil, classify("similarity search", err)
	}

	results := make([]*document.ScoredFragment, 0, len(rows))
	for _, row := range rows {
		results = append(results, &document.ScoredFragment{
			ID:           PgtypeToUUID(row.ID).String(),
			DocumentID:   PgtypeToUUID(row.DocumentID).String(),
			SubjectID:    PgtypeToUUID(row.SubjectID).String(),
			SectionTitle: row.SectionTitle,
			PageNumber:   int(row.PageNumber),
			Content:      row.Content,
			Score:        row.Similarity,
		})
	}
	slices.SortStableFunc(results, func(a, b *document.ScoredFragment) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return results, nil
}

func toSubject(row sqlc.Subject) *document.Subject {
	return &document.Subject{
		ID:        PgtypeToUUID(row.ID),
		Name:      row.Name,
		CreatedAt: PgtypeToTime(row.CreatedAt),
	}
}

func toDocument(row sqlc.Document) *document.Document {
	return &document.Document{
		ID:          PgtypeToUUID(row.ID),
		SubjectID:   PgtypeToUUID(row.SubjectID),
		Name:        row.Name,
		StorageRef:  row.StorageRef,
		Size:        row.Size,
		ContentType: row.ContentType,
		CreatedAt:   PgtypeToTime(row.CreatedAt),
	}
}
