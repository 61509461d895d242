package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/chunk"
	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/question"
	"github.com/jinford/study-rag/internal/platform/retry"
)

const (
	// DefaultEmbeddingBatchSize は1回のEmbedding呼び出しでまとめるチャンク数
	DefaultEmbeddingBatchSize = 16
)

// Config はインジェストの設定
type Config struct {
	EmbeddingBatchSize int
	Retry              retry.Policy
}

// DefaultConfig はデフォルトのインジェスト設定を返す
func DefaultConfig() Config {
	return Config{
		EmbeddingBatchSize: DefaultEmbeddingBatchSize,
		Retry:              retry.DefaultPolicy(),
	}
}

// Service はアップロードされたドキュメントのインジェストを提供する
type Service struct {
	extractor    Extractor
	chunker      *chunk.Chunker
	embedder     Embedder
	uow          document.UnitOfWork
	generator    QuestionGenerator
	questions    QuestionStore
	failureLog   *question.FailureLog
	tokenCounter *chunk.TokenCounter
	cfg          Config
	logger       *slog.Logger
}

type serviceOptions struct {
	generator    QuestionGenerator
	questions    QuestionStore
	failureLog   *question.FailureLog
	tokenCounter *chunk.TokenCounter
	cfg          Config
	logger       *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithIngestLogger は Service にロガーを設定する
func WithIngestLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithQuestionGeneration は問題生成と保存先を設定する
func WithQuestionGeneration(generator QuestionGenerator, store QuestionStore) ServiceOption {
	return func(o *serviceOptions) {
		o.generator = generator
		o.questions = store
	}
}

// WithFailureLog は問題生成失敗の記録先を設定する
func WithFailureLog(log *question.FailureLog) ServiceOption {
	return func(o *serviceOptions) {
		o.failureLog = log
	}
}

// WithTokenCounter はテキスト統計に使う TokenCounter を設定する
func WithTokenCounter(tc *chunk.TokenCounter) ServiceOption {
	return func(o *serviceOptions) {
		o.tokenCounter = tc
	}
}

// WithIngestConfig はインジェスト設定を上書きする
func WithIngestConfig(cfg Config) ServiceOption {
	return func(o *serviceOptions) {
		o.cfg = cfg
	}
}

// NewService は新しい Service を作成する
func NewService(
	extractor Extractor,
	chunker *chunk.Chunker,
	embedder Embedder,
	uow document.UnitOfWork,
	opts ...ServiceOption,
) *Service {
	options := serviceOptions{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.cfg.EmbeddingBatchSize <= 0 {
		options.cfg.EmbeddingBatchSize = DefaultEmbeddingBatchSize
	}

	return &Service{
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		uow:          uow,
		generator:    options.generator,
		questions:    options.questions,
		failureLog:   options.failureLog,
		tokenCounter: options.tokenCounter,
		cfg:          options.cfg,
		logger:       options.logger,
	}
}

// pageChunk はページ番号付きのチャンク
type pageChunk struct {
	page int
	text string
}

// Ingest はファイルを抽出・分割・Embedding・保存し、問題を生成する。
// 進捗は events に送信する（nil 可）。
// ドキュメントの保存後に失敗した場合は、保存済みの DocumentID を持つ Result をエラーと共に返す。
func (s *Service) Ingest(ctx context.Context, req Request, events chan<- Event) (*Result, error) {
	startTime := time.Now()

	fail := func(stage string, err error) (*Result, error) {
		err = apperr.AtStage(stage, err)
		emit(ctx, events, Event{Stage: StageFailed, FailedStage: stage, Err: err})
		s.logger.Error("インジェストに失敗しました",
			"file", req.File.Name,
			"stage", stage,
			"error", err,
		)
		return nil, err
	}

	// 1. 科目IDの検証（抽出・保存・生成より前）
	subjectID, err := document.ParseSubjectID(req.SubjectID)
	if err != nil {
		return fail(FailedAtValidation, err)
	}

	s.logger.Info("インジェストを開始",
		"file", req.File.Name,
		"subjectID", subjectID,
		"size", len(req.File.Content),
	)

	// 2. テキスト抽出
	if err := ctx.Err(); err != nil {
		return fail(FailedAtExtraction, err)
	}
	extraction, err := retry.Do(ctx, s.cfg.Retry, "extract", func(ctx context.Context) (*Extraction, error) {
		return s.extractor.Extract(ctx, req.File.Content, req.File.ContentType)
	})
	if err != nil {
		return fail(FailedAtExtraction, err)
	}
	emit(ctx, events, Event{Stage: StageExtracted, Percent: 10, Pages: len(extraction.Pages)})

	// 3. テキスト整形と統計
	for i := range extraction.Pages {
		extraction.Pages[i].Text = normalizeText(extraction.Pages[i].Text)
	}
	stats := s.textStats(extraction.Text())
	emit(ctx, events, Event{
		Stage:      StageTextProcessed,
		Percent:    20,
		Pages:      len(extraction.Pages),
		Characters: stats.Characters,
		Words:      stats.Words,
		Tokens:     stats.Tokens,
	})

	// 4. チャンク分割
	if err := ctx.Err(); err != nil {
		return fail(FailedAtChunking, err)
	}
	chunks := s.split(extraction)
	if len(chunks) == 0 {
		return fail(FailedAtChunking, apperr.ErrEmptyDocument)
	}
	emit(ctx, events, Event{Stage: StageChunked, Percent: 30, Chunks: len(chunks)})

	// 5. Embedding（全件成功するまで保存しない）
	emit(ctx, events, Event{Stage: StageEmbeddingStarted, Percent: 40, Chunks: len(chunks)})
	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		return fail(FailedAtEmbedding, err)
	}
	emit(ctx, events, Event{Stage: StageEmbeddingComplete, Percent: 60, Chunks: len(chunks), Embedded: len(vectors)})

	// 6. ドキュメントとフラグメントを1トランザクションで保存
	if err := ctx.Err(); err != nil {
		return fail(FailedAtPersistence, err)
	}
	contentType := extraction.ContentType
	if contentType == "" {
		contentType = req.File.ContentType
	}
	doc := &document.Document{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		Name:        req.File.Name,
		StorageRef:  req.File.StorageRef,
		Size:        int64(len(req.File.Content)),
		ContentType: contentType,
	}
	err = s.uow.Do(ctx, func(repo document.Repository) error {
		created, err := repo.CreateDocument(ctx, doc)
		if err != nil {
			return err
		}
		doc = created

		for i, c := range chunks {
			if _, err := repo.PutFragment(ctx, &document.Fragment{
				ID:           uuid.New(),
				DocumentID:   doc.ID,
				SubjectID:    subjectID,
				SectionTitle: req.File.Name,
				PageNumber:   c.page,
				Content:      c.text,
				Embedding:    vectors[i],
			}); err != nil {
				return fmt.Errorf("failed to put fragment %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fail(FailedAtPersistence, err)
	}
	emit(ctx, events, Event{Stage: StageDocumentPersisted, Percent: 70, DocumentID: doc.ID.String(), Chunks: len(chunks)})

	result := &Result{
		DocumentID:     doc.ID,
		FragmentsCount: len(chunks),
	}

	failPersisted := func(err error) (*Result, error) {
		_, err = fail(FailedAtQuestions, err)
		return result, err
	}

	// 7. 問題生成（失敗しても致命的ではない）
	if err := ctx.Err(); err != nil {
		return failPersisted(err)
	}
	stored, failed := s.generateQuestions(ctx, req, doc, subjectID, chunks, events)
	result.QuestionsCount = stored
	result.FailedQuestions = failed
	if err := ctx.Err(); err != nil {
		return failPersisted(err)
	}

	emit(ctx, events, Event{
		Stage:          StageQuestionsComplete,
		Percent:        100,
		DocumentID:     doc.ID.String(),
		QuestionsCount: result.QuestionsCount,
	})

	s.logger.Info("インジェスト完了",
		"file", req.File.Name,
		"documentID", doc.ID,
		"fragments", result.FragmentsCount,
		"questions", result.QuestionsCount,
		"failedQuestions", result.FailedQuestions,
		"duration", time.Since(startTime),
	)

	return result, nil
}

func (s *Service) textStats(text string) chunk.TextStats {
	return s.tokenCounter.Stats(text)
}

// split はページごとにチャンク分割する。
// ページ情報を持たないテキストではチャンクの通し番号（1始まり）をページ番号とする。
func (s *Service) split(extraction *Extraction) []pageChunk {
	var chunks []pageChunk
	for _, p := range extraction.Pages {
		for _, text := range s.chunker.Split(p.Text) {
			page := p.Number
			if !extraction.Paged {
				page = len(chunks) + 1
			}
			chunks = append(chunks, pageChunk{page: page, text: text})
		}
	}
	return chunks
}

// embedAll はバッチサイズごとに順番に Embedding を生成する
func (s *Service) embedAll(ctx context.Context, chunks []pageChunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	batchSize := s.cfg.EmbeddingBatchSize

	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.text)
		}

		batch, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, batch...)

		s.logger.Debug("Embedding生成",
			"progress", fmt.Sprintf("%d/%d", len(vectors), len(chunks)),
			"model", s.embedder.ModelName(),
		)
	}

	return vectors, nil
}

// generateQuestions は問題を生成して保存し、保存件数と失敗件数を返す
func (s *Service) generateQuestions(
	ctx context.Context,
	req Request,
	doc *document.Document,
	subjectID uuid.UUID,
	chunks []pageChunk,
	events chan<- Event,
) (int, int) {
	if s.generator == nil || s.questions == nil || req.QuestionCount <= 0 {
		return 0, 0
	}

	emit(ctx, events, Event{Stage: StageQuestionsGenerating, Percent: 75, DocumentID: doc.ID.String()})

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.text)
	}

	drafts, failures := s.generator.Generate(ctx, texts, req.QuestionCount, func(p question.Progress) {
		emit(ctx, events, Event{
			Stage:           StageQuestionsGenerating,
			Percent:         questionPercent(p.Current, p.Total),
			DocumentID:      doc.ID.String(),
			QuestionCurrent: p.Current,
			QuestionTotal:   p.Total,
		})
	})

	if err := s.failureLog.Append(doc.ID.String(), doc.Name, failures); err != nil {
		s.logger.Warn("問題生成失敗ログの書き込みに失敗しました", "error", err)
	}

	questions := make([]*question.Question, 0, len(drafts))
	for _, d := range drafts {
		q := question.NewQuestion(d, subjectID, doc.ID, req.TopicID)
		if err := q.Validate(); err != nil {
			s.logger.Warn("不正な問題を除外しました", "chunkOrdinal", d.ChunkOrdinal, "error", err)
			failures = append(failures, question.ChunkFailure{Ordinal: d.ChunkOrdinal, Err: err})
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return 0, len(failures)
	}

	created, err := s.questions.CreateQuestions(ctx, questions)
	if err != nil {
		s.logger.Warn("問題の保存に失敗しました（ドキュメントは保存済み）",
			"documentID", doc.ID,
			"count", len(questions),
			"error", err,
		)
		return 0, len(failures) + len(questions)
	}

	return len(created), len(failures)
}

// normalizeText は空白の連続を1つのスペースにまとめる
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
