package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/infra/postgres/sqlc"
)

// matchQuerier は MatchFragments だけを差し替えた Querier
type matchQuerier struct {
	sqlc.Querier
	rows []sqlc.MatchFragmentsRow
	last sqlc.MatchFragmentsParams
}

func (m *matchQuerier) MatchFragments(_ context.Context, arg sqlc.MatchFragmentsParams) ([]sqlc.MatchFragmentsRow, error) {
	m.last = arg
	return m.rows, nil
}

func TestDocumentRepository_SearchBySimilarity_ParamsAndOrdering(t *testing.T) {
	subjectID := uuid.New()
	docID := uuid.New()
	low, high := uuid.New(), uuid.New()

	q := &matchQuerier{rows: []sqlc.MatchFragmentsRow{
		{ID: UUIDToPgtype(low), DocumentID: UUIDToPgtype(docID), SubjectID: UUIDToPgtype(subjectID), SectionTitle: "notes.pdf", PageNumber: 2, Content: "low", Similarity: 0.4},
		{ID: UUIDToPgtype(high), DocumentID: UUIDToPgtype(docID), SubjectID: UUIDToPgtype(subjectID), SectionTitle: "notes.pdf", PageNumber: 5, Content: "high", Similarity: 0.9},
	}}
	repo := NewDocumentRepository(q, 3)

	results, err := repo.SearchBySimilarity(context.Background(), document.SimilarityQuery{
		Vector:    []float32{1, 0, 0},
		SubjectID: subjectID.String(),
		Threshold: 0.1,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(document.DefaultSearchLimit), q.last.MatchCount)
	assert.Equal(t, 0.1, q.last.MatchThreshold)
	assert.Equal(t, subjectID, PgtypeToUUID(q.last.FilterSubjectID))
	assert.Equal(t, []float32{1, 0, 0}, q.last.QueryEmbedding.Slice())

	require.Len(t, results, 2)
	assert.Equal(t, high.String(), results[0].ID)
	assert.Equal(t, 5, results[0].PageNumber)
	assert.Equal(t, "high", results[0].Content)
	assert.Equal(t, low.String(), results[1].ID)
	assert.Equal(t, "notes.pdf", results[1].SectionTitle)
}
