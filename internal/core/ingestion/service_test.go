package ingestion_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/chunk"
	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/embedding"
	"github.com/jinford/study-rag/internal/core/ingestion"
	"github.com/jinford/study-rag/internal/core/question"
	"github.com/jinford/study-rag/internal/infra/memory"
	"github.com/jinford/study-rag/internal/platform/retry"
)

const dim = 8

type stubExtractor struct {
	extraction *ingestion.Extraction
	err        error
	calls      int
}

func (e *stubExtractor) Extract(_ context.Context, content []byte, contentType string) (*ingestion.Extraction, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.extraction != nil {
		return e.extraction, nil
	}
	return &ingestion.Extraction{
		ContentType: "text/plain",
		Pages:       []ingestion.Page{{Number: 1, Text: string(content)}},
	}, nil
}

type failingEmbedder struct {
	embedding.HashEmbedder
}

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, apperr.ErrGeneration
}

type stubGenerator struct {
	drafts   []*question.Draft
	failures []question.ChunkFailure
}

func (g *stubGenerator) Generate(_ context.Context, chunks []string, countHint int, progress func(question.Progress)) ([]*question.Draft, []question.ChunkFailure) {
	total := min(len(chunks), countHint)
	for i := 1; i <= total; i++ {
		progress(question.Progress{Current: i, Total: total})
	}
	return g.drafts, g.failures
}

// cancellingGenerator は問題生成中にコンテキストをキャンセルする
type cancellingGenerator struct {
	cancel context.CancelFunc
}

func (g *cancellingGenerator) Generate(context.Context, []string, int, func(question.Progress)) ([]*question.Draft, []question.ChunkFailure) {
	g.cancel()
	return nil, nil
}

type failingQuestionStore struct{}

func (failingQuestionStore) CreateQuestions(context.Context, []*question.Question) ([]*question.Question, error) {
	return nil, apperr.ErrPersistence
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() ingestion.Config {
	return ingestion.Config{
		EmbeddingBatchSize: 2,
		Retry:              retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Timeout: time.Second},
	}
}

func newService(t *testing.T, store *memory.Store, extractor ingestion.Extractor, embedder embedding.Embedder, maxChars int, opts ...ingestion.ServiceOption) *ingestion.Service {
	t.Helper()
	tc, err := chunk.NewTokenCounter()
	require.NoError(t, err)

	opts = append([]ingestion.ServiceOption{
		ingestion.WithIngestLogger(discardLogger()),
		ingestion.WithIngestConfig(fastConfig()),
		ingestion.WithTokenCounter(tc),
	}, opts...)

	guarded := embedding.NewGuarded(embedder,
		embedding.WithRetryPolicy(fastConfig().Retry),
		embedding.WithGuardedLogger(discardLogger()),
	)
	return ingestion.NewService(extractor, chunk.New(chunk.Config{MaxChunkChars: maxChars}), guarded, store, opts...)
}

func collect(events chan ingestion.Event) []ingestion.Event {
	close(events)
	var out []ingestion.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func stages(events []ingestion.Event) []ingestion.Stage {
	out := make([]ingestion.Stage, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Stage)
	}
	return out
}

func validDraft(ordinal int) *question.Draft {
	return &question.Draft{
		Question:      "Q",
		Options:       [question.OptionCount]string{"w", "x", "y", "z"},
		CorrectOption: "b",
		Explanation:   "E",
		ChunkOrdinal:  ordinal,
	}
}

func TestIngest_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "english")
	require.NoError(t, err)

	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 15)

	events := make(chan ingestion.Event, 32)
	result, err := svc.Ingest(ctx, ingestion.Request{
		SubjectID: subject.ID.String(),
		File: ingestion.File{
			Name:    "notes.txt",
			Content: []byte("Sentence one. Sentence two. Sentence three."),
		},
	}, events)
	require.NoError(t, err)

	assert.Equal(t, 3, result.FragmentsCount)
	assert.Zero(t, result.QuestionsCount)

	fragments, err := store.ListFragmentsByDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	require.Len(t, fragments, 3)
	for i, f := range fragments {
		assert.Len(t, f.Embedding, dim)
		assert.Equal(t, subject.ID, f.SubjectID)
		assert.Equal(t, "notes.txt", f.SectionTitle)
		assert.Equal(t, i+1, f.PageNumber)
	}
	assert.Equal(t, "Sentence two.", fragments[1].Content)

	docOpt, err := store.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	require.True(t, docOpt.IsPresent())
	assert.Equal(t, "text/plain", docOpt.MustGet().ContentType)
	assert.Equal(t, int64(43), docOpt.MustGet().Size)

	got := collect(events)
	assert.Equal(t, []ingestion.Stage{
		ingestion.StageExtracted,
		ingestion.StageTextProcessed,
		ingestion.StageChunked,
		ingestion.StageEmbeddingStarted,
		ingestion.StageEmbeddingComplete,
		ingestion.StageDocumentPersisted,
		ingestion.StageQuestionsComplete,
	}, stages(got))

	percents := make([]int, 0, len(got))
	for _, ev := range got {
		percents = append(percents, ev.Percent)
	}
	assert.Equal(t, []int{10, 20, 30, 40, 60, 70, 100}, percents)
	assert.Equal(t, 3, got[2].Chunks)
	assert.Equal(t, 6, got[1].Words)
	assert.Equal(t, 43, got[1].Characters)
	assert.Greater(t, got[1].Tokens, 0)
	assert.Equal(t, result.DocumentID.String(), got[5].DocumentID)
}

func TestIngest_InvalidSubjectFailsBeforeExtraction(t *testing.T) {
	extractor := &stubExtractor{}
	svc := newService(t, memory.NewStore(dim), extractor, embedding.NewHashEmbedder(dim), 100)

	events := make(chan ingestion.Event, 4)
	_, err := svc.Ingest(context.Background(), ingestion.Request{
		SubjectID: "not-a-uuid",
		File:      ingestion.File{Name: "a.txt", Content: []byte("Hello.")},
	}, events)

	assert.ErrorIs(t, err, apperr.ErrInvalidScope)
	stage, ok := apperr.FailedStage(err)
	assert.True(t, ok)
	assert.Equal(t, ingestion.FailedAtValidation, stage)
	assert.Zero(t, extractor.calls)

	got := collect(events)
	require.Len(t, got, 1)
	assert.Equal(t, ingestion.StageFailed, got[0].Stage)
	assert.Equal(t, ingestion.FailedAtValidation, got[0].FailedStage)
}

func TestIngest_ExtractionFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	extractor := &stubExtractor{err: apperr.ErrExtraction}
	svc := newService(t, store, extractor, embedding.NewHashEmbedder(dim), 100)

	_, err = svc.Ingest(ctx, ingestion.Request{SubjectID: subject.ID.String(), File: ingestion.File{Name: "a.pdf"}}, nil)

	assert.ErrorIs(t, err, apperr.ErrExtraction)
	stage, _ := apperr.FailedStage(err)
	assert.Equal(t, ingestion.FailedAtExtraction, stage)
	assert.Equal(t, 1, extractor.calls)
}

func TestIngest_EmbeddingFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	embedder := &failingEmbedder{*embedding.NewHashEmbedder(dim)}
	svc := newService(t, store, &stubExtractor{}, embedder, 15)

	events := make(chan ingestion.Event, 16)
	_, err = svc.Ingest(ctx, ingestion.Request{
		SubjectID: subject.ID.String(),
		File:      ingestion.File{Name: "a.txt", Content: []byte("Sentence one. Sentence two.")},
	}, events)

	assert.ErrorIs(t, err, apperr.ErrGeneration)
	stage, _ := apperr.FailedStage(err)
	assert.Equal(t, ingestion.FailedAtEmbedding, stage)

	docs, err := store.ListDocumentsBySubject(ctx, subject.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	got := collect(events)
	assert.Equal(t, ingestion.StageFailed, got[len(got)-1].Stage)
	assert.NotContains(t, stages(got), ingestion.StageDocumentPersisted)
}

func TestIngest_EmptyDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 100)

	_, err = svc.Ingest(ctx, ingestion.Request{
		SubjectID: subject.ID.String(),
		File:      ingestion.File{Name: "blank.txt", Content: []byte("  \n\t ")},
	}, nil)

	assert.ErrorIs(t, err, apperr.ErrEmptyDocument)
	stage, _ := apperr.FailedStage(err)
	assert.Equal(t, ingestion.FailedAtChunking, stage)
}

func TestIngest_PagedDocumentKeepsPageNumbers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	extractor := &stubExtractor{extraction: &ingestion.Extraction{
		ContentType: "application/pdf",
		Paged:       true,
		Pages: []ingestion.Page{
			{Number: 1, Text: "First page."},
			{Number: 2, Text: ""},
			{Number: 3, Text: "Third page. More text."},
		},
	}}
	svc := newService(t, store, extractor, embedding.NewHashEmbedder(dim), 12)

	result, err := svc.Ingest(ctx, ingestion.Request{SubjectID: subject.ID.String(), File: ingestion.File{Name: "book.pdf"}}, nil)
	require.NoError(t, err)

	fragments, err := store.ListFragmentsByDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	require.Len(t, fragments, 3)
	assert.Equal(t, []int{1, 3, 3}, []int{fragments[0].PageNumber, fragments[1].PageNumber, fragments[2].PageNumber})
}

func TestIngest_QuestionsGeneratedAndStored(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	bad := validDraft(2)
	bad.CorrectOption = "z"
	generator := &stubGenerator{
		drafts:   []*question.Draft{validDraft(0), validDraft(1), bad},
		failures: []question.ChunkFailure{{Ordinal: 2, Err: errors.New("malformed")}},
	}
	topic := uuid.New()
	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 15,
		ingestion.WithQuestionGeneration(generator, store),
	)

	events := make(chan ingestion.Event, 32)
	result, err := svc.Ingest(ctx, ingestion.Request{
		SubjectID:     subject.ID.String(),
		TopicID:       mo.Some(topic),
		File:          ingestion.File{Name: "a.txt", Content: []byte("Sentence one. Sentence two. Sentence three.")},
		QuestionCount: 3,
	}, events)
	require.NoError(t, err)

	assert.Equal(t, 2, result.QuestionsCount)
	assert.Equal(t, 2, result.FailedQuestions)

	stored, err := store.ListBySubject(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, result.DocumentID, stored[0].DocumentID)
	assert.Equal(t, topic, stored[0].TopicID.MustGet())

	var generating []int
	got := collect(events)
	for _, ev := range got {
		if ev.Stage == ingestion.StageQuestionsGenerating {
			generating = append(generating, ev.Percent)
		}
	}
	assert.Equal(t, []int{75, 81, 88, 95}, generating)

	last := got[len(got)-1]
	assert.Equal(t, ingestion.StageQuestionsComplete, last.Stage)
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, 2, last.QuestionsCount)
}

func TestIngest_QuestionPersistenceFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 100,
		ingestion.WithQuestionGeneration(&stubGenerator{drafts: []*question.Draft{validDraft(0)}}, failingQuestionStore{}),
	)

	result, err := svc.Ingest(ctx, ingestion.Request{
		SubjectID:     subject.ID.String(),
		File:          ingestion.File{Name: "a.txt", Content: []byte("Some text.")},
		QuestionCount: 5,
	}, nil)

	require.NoError(t, err)
	assert.Zero(t, result.QuestionsCount)
	assert.Equal(t, 1, result.FragmentsCount)
}

func TestIngest_CancelledContext(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 100)
	_, err = svc.Ingest(cancelled, ingestion.Request{
		SubjectID: subject.ID.String(),
		File:      ingestion.File{Name: "a.txt", Content: []byte("Text.")},
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	docs, _ := store.ListDocumentsBySubject(ctx, subject.ID)
	assert.Empty(t, docs)
}

func TestIngest_CancelledAfterPersistenceReturnsDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	defer cancel()

	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 100,
		ingestion.WithQuestionGeneration(&cancellingGenerator{cancel: cancel}, store),
	)
	result, err := svc.Ingest(cancelled, ingestion.Request{
		SubjectID:     subject.ID.String(),
		File:          ingestion.File{Name: "a.txt", Content: []byte("Some text.")},
		QuestionCount: 3,
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	stage, ok := apperr.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, ingestion.FailedAtQuestions, stage)

	require.NotNil(t, result)
	assert.Equal(t, 1, result.FragmentsCount)
	got, err := store.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.True(t, got.IsPresent())
}

func TestIngestAll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	subject, err := store.CreateSubject(ctx, "s")
	require.NoError(t, err)

	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 15)

	reqs := []ingestion.Request{
		{SubjectID: subject.ID.String(), File: ingestion.File{Name: "one.txt", Content: []byte("Sentence one. Sentence two.")}},
		{SubjectID: "bad", File: ingestion.File{Name: "two.txt", Content: []byte("Text.")}},
		{SubjectID: subject.ID.String(), File: ingestion.File{Name: "three.txt", Content: []byte("Only one.")}},
	}

	for _, concurrency := range []int{1, 3} {
		var mu sync.Mutex
		perDoc := map[int][]ingestion.Stage{}

		results := svc.IngestAll(ctx, reqs, concurrency, func(index int, ev ingestion.Event) {
			mu.Lock()
			defer mu.Unlock()
			perDoc[index] = append(perDoc[index], ev.Stage)
		})

		require.Len(t, results, 3)
		assert.Equal(t, "one.txt", results[0].Name)
		require.NoError(t, results[0].Err)
		assert.Equal(t, 2, results[0].Result.FragmentsCount)
		assert.ErrorIs(t, results[1].Err, apperr.ErrInvalidScope)
		require.NoError(t, results[2].Err)
		assert.Equal(t, 1, results[2].Result.FragmentsCount)

		assert.Equal(t, ingestion.StageExtracted, perDoc[0][0])
		assert.Equal(t, ingestion.StageQuestionsComplete, perDoc[0][len(perDoc[0])-1])
		assert.Equal(t, []ingestion.Stage{ingestion.StageFailed}, perDoc[1])
	}
}

func TestIngest_NoCrossSubjectRetrieval(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(dim)
	a, err := store.CreateSubject(ctx, "a")
	require.NoError(t, err)
	b, err := store.CreateSubject(ctx, "b")
	require.NoError(t, err)

	svc := newService(t, store, &stubExtractor{}, embedding.NewHashEmbedder(dim), 100)
	for _, s := range []*document.Subject{a, b} {
		_, err := svc.Ingest(ctx, ingestion.Request{
			SubjectID: s.ID.String(),
			File:      ingestion.File{Name: s.Name + ".txt", Content: []byte("Mitochondria produce energy.")},
		}, nil)
		require.NoError(t, err)
	}

	vec, err := embedding.NewHashEmbedder(dim).Embed(ctx, "Mitochondria produce energy.")
	require.NoError(t, err)
	results, err := store.SearchBySimilarity(ctx, document.SimilarityQuery{Vector: vec, SubjectID: a.ID.String(), Threshold: 0.1, Limit: 10})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, a.ID.String(), results[0].SubjectID)
}
