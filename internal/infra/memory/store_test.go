package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/question"
)

func seedDocument(t *testing.T, s *Store, subjectName string) (*document.Subject, *document.Document) {
	t.Helper()
	ctx := context.Background()

	subject, err := s.CreateSubject(ctx, subjectName)
	require.NoError(t, err)
	doc, err := s.CreateDocument(ctx, &document.Document{SubjectID: subject.ID, Name: subjectName + ".txt"})
	require.NoError(t, err)
	return subject, doc
}

func TestStore_SearchNeverCrossesSubjects(t *testing.T) {
	ctx := context.Background()
	s := NewStore(3)

	biology, bioDoc := seedDocument(t, s, "biology")
	history, histDoc := seedDocument(t, s, "history")

	_, err := s.PutFragment(ctx, &document.Fragment{DocumentID: bioDoc.ID, SubjectID: biology.ID, Content: "cell", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	_, err = s.PutFragment(ctx, &document.Fragment{DocumentID: histDoc.ID, SubjectID: history.ID, Content: "war", Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)

	results, err := s.SearchBySimilarity(ctx, document.SimilarityQuery{
		Vector:    []float32{1, 0, 0},
		SubjectID: biology.ID.String(),
		Threshold: 0.1,
		Limit:     10,
	})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, biology.ID.String(), results[0].SubjectID)
	assert.Equal(t, "cell", results[0].Content)
}

func TestStore_SearchRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	subject, doc := seedDocument(t, s, "math")

	for _, v := range [][]float32{{0, 1}, {1, 0}, {1, 1}, {-1, 0}} {
		_, err := s.PutFragment(ctx, &document.Fragment{DocumentID: doc.ID, SubjectID: subject.ID, Embedding: v})
		require.NoError(t, err)
	}

	results, err := s.SearchBySimilarity(ctx, document.SimilarityQuery{
		Vector:    []float32{1, 0},
		SubjectID: subject.ID.String(),
		Threshold: 0.1,
		Limit:     10,
	})
	require.NoError(t, err)

	// (0,1) は類似度0、(-1,0) は負なので除外される
	require.Len(t, results, 2)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-4)

	limited, err := s.SearchBySimilarity(ctx, document.SimilarityQuery{
		Vector: []float32{1, 0}, SubjectID: subject.ID.String(), Threshold: 0.1, Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_SearchNonPositiveLimitUsesDefault(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	subject, doc := seedDocument(t, s, "history")

	for range document.DefaultSearchLimit + 2 {
		_, err := s.PutFragment(ctx, &document.Fragment{DocumentID: doc.ID, SubjectID: subject.ID, Embedding: []float32{1, 0}})
		require.NoError(t, err)
	}

	for _, limit := range []int{0, -1} {
		results, err := s.SearchBySimilarity(ctx, document.SimilarityQuery{
			Vector: []float32{1, 0}, SubjectID: subject.ID.String(), Threshold: 0.1, Limit: limit,
		})
		require.NoError(t, err)
		assert.Len(t, results, document.DefaultSearchLimit, "limit=%d", limit)
	}
}

func TestStore_SearchErrors(t *testing.T) {
	ctx := context.Background()
	s := NewStore(3)

	_, err := s.SearchBySimilarity(ctx, document.SimilarityQuery{Vector: []float32{1, 0, 0}, SubjectID: "not-a-uuid"})
	assert.ErrorIs(t, err, apperr.ErrInvalidScope)

	_, err = s.SearchBySimilarity(ctx, document.SimilarityQuery{Vector: []float32{1, 0}, SubjectID: uuid.NewString()})
	assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)

	results, err := s.SearchBySimilarity(ctx, document.SimilarityQuery{Vector: []float32{1, 0, 0}, SubjectID: uuid.NewString()})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_PutFragmentValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(3)
	subject, doc := seedDocument(t, s, "physics")

	_, err := s.PutFragment(ctx, &document.Fragment{DocumentID: doc.ID, SubjectID: subject.ID, Embedding: []float32{1, 2}})
	assert.ErrorIs(t, err, apperr.ErrDimensionMismatch)

	_, err = s.PutFragment(ctx, &document.Fragment{DocumentID: uuid.New(), SubjectID: subject.ID, Embedding: []float32{1, 2, 3}})
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	_, err = s.PutFragment(ctx, &document.Fragment{DocumentID: doc.ID, SubjectID: uuid.New(), Embedding: []float32{1, 2, 3}})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func TestStore_CreateDocumentRequiresSubject(t *testing.T) {
	s := NewStore(3)

	_, err := s.CreateDocument(context.Background(), &document.Document{SubjectID: uuid.New(), Name: "x"})

	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func TestStore_DoRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	subject, err := s.CreateSubject(ctx, "chemistry")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Do(ctx, func(repo document.Repository) error {
		doc, err := repo.CreateDocument(ctx, &document.Document{SubjectID: subject.ID, Name: "a"})
		require.NoError(t, err)
		_, err = repo.PutFragment(ctx, &document.Fragment{DocumentID: doc.ID, SubjectID: subject.ID, Embedding: []float32{1, 0}})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	docs, err := s.ListDocumentsBySubject(ctx, subject.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	err = s.Do(ctx, func(repo document.Repository) error {
		_, err := repo.CreateDocument(ctx, &document.Document{SubjectID: subject.ID, Name: "b"})
		return err
	})
	require.NoError(t, err)

	docs, err = s.ListDocumentsBySubject(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].Name)
}

func TestStore_Questions(t *testing.T) {
	ctx := context.Background()
	s := NewStore(2)
	subject, doc := seedDocument(t, s, "english")

	q := question.NewQuestion(&question.Draft{
		Question:      "Q",
		Options:       [question.OptionCount]string{"w", "x", "y", "z"},
		CorrectOption: "a",
		Explanation:   "E",
	}, subject.ID, doc.ID, mo.None[uuid.UUID]())

	created, err := s.CreateQuestions(ctx, []*question.Question{q})
	require.NoError(t, err)
	require.Len(t, created, 1)

	listed, err := s.ListBySubject(ctx, subject.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	got, err := s.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPresent())

	deleted, err := s.Delete(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, q.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	listed, err = s.ListBySubject(ctx, subject.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	invalid := *q
	invalid.CorrectOption = "x"
	_, err = s.CreateQuestions(ctx, []*question.Question{&invalid})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}
