package container

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/jinford/study-rag/internal/core/answer"
	"github.com/jinford/study-rag/internal/core/chunk"
	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/embedding"
	"github.com/jinford/study-rag/internal/core/ingestion"
	"github.com/jinford/study-rag/internal/core/llm"
	"github.com/jinford/study-rag/internal/core/question"
	"github.com/jinford/study-rag/internal/core/retrieval"
	"github.com/jinford/study-rag/internal/infra/extract"
	"github.com/jinford/study-rag/internal/infra/memory"
	"github.com/jinford/study-rag/internal/infra/openai"
	"github.com/jinford/study-rag/internal/infra/postgres"
	"github.com/jinford/study-rag/internal/infra/postgres/sqlc"
	"github.com/jinford/study-rag/internal/platform/config"
	"github.com/jinford/study-rag/internal/platform/database"
	"github.com/jinford/study-rag/internal/platform/retry"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
// サービスはすべてここで明示的に組み立てて注入し、パッケージ変数には持たない。
type ServiceContainer struct {
	Documents document.Repository
	Questions question.Repository
	Ingestion *ingestion.Service
	Retrieval *retrieval.Service
	Answers   *answer.Service

	config     *config.Config
	failureLog *question.FailureLog
	logger     *slog.Logger
	database   *database.DB
}

type containerOptions struct {
	logger    *slog.Logger
	embedder  embedding.Embedder
	llmClient llm.Client
	extractor ingestion.Extractor
	rng       *rand.Rand
	inMemory  bool
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder embedding.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client llm.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerExtractor はテキスト抽出器を差し替える
func WithContainerExtractor(extractor ingestion.Extractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// WithContainerRand は問題生成で使う乱数源を固定する
func WithContainerRand(rng *rand.Rand) ContainerOption {
	return func(opts *containerOptions) {
		opts.rng = rng
	}
}

// WithInMemoryStore はPostgreSQLの代わりにプロセス内ストアを使う
func WithInMemoryStore() ContainerOption {
	return func(opts *containerOptions) {
		opts.inMemory = true
	}
}

type stores struct {
	documents document.Repository
	uow       document.UnitOfWork
	questions question.Repository
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := applyOptions(opts)
	dimension := cfg.OpenAI.EmbeddingDimension
	if options.embedder != nil {
		dimension = options.embedder.Dimension()
	}

	if options.inMemory {
		store := memory.NewStore(dimension)
		return build(cfg, nil, stores{documents: store, uow: store, questions: store}, options)
	}

	db, err := database.Open(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	tx := database.NewTransactionProvider(db.Pool, dimension)
	c, err := build(cfg, db, stores{
		documents: postgres.NewDocumentRepository(sqlc.New(db.Pool), dimension),
		uow:       tx,
		questions: database.NewQuestionStore(db.Pool, tx),
	}, options)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func applyOptions(opts []ContainerOption) containerOptions {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	return options
}

func build(cfg *config.Config, db *database.DB, st stores, options containerOptions) (*ServiceContainer, error) {
	logger := options.logger
	policy := RetryPolicy(cfg)

	// Embedder（openai / hash）
	base := options.embedder
	if base == nil {
		var err error
		base, err = newEmbedder(cfg)
		if err != nil {
			return nil, err
		}
	}
	embedder := embedding.NewGuarded(base,
		embedding.WithRetryPolicy(policy),
		embedding.WithGuardedLogger(logger),
	)

	// LLMClient (OpenAI)
	llmClient := options.llmClient
	if llmClient == nil {
		client, err := openai.NewClient(
			cfg.OpenAI.APIKey,
			openai.WithModel(cfg.OpenAI.LLMModel),
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithRetryPolicy(policy),
			openai.WithClientLogger(logger),
		)
		if err != nil {
			// APIキー未設定でも科目・一覧系のコマンドは動かせるよう、呼び出し時にエラーを返す
			logger.Debug("LLM client disabled", "error", err)
			llmClient = unavailableClient{err: err}
		} else {
			llmClient = client
		}
	}
	llmClient = llm.NewThrottledClient(llmClient, cfg.LLMRequestsPerMinute)

	extractor := options.extractor
	if extractor == nil {
		extractor = extract.NewRegistry(extract.WithLogger(logger))
	}

	tokenCounter, err := chunk.NewTokenCounter()
	if err != nil {
		// トークン数は統計表示のみに使うため、近似値で続行する
		logger.Warn("tiktoken unavailable, falling back to approximate token counts", "error", err)
	}

	failureLog, err := question.NewFailureLog(cfg.QuestionFailureLogDir)
	if err != nil {
		return nil, fmt.Errorf("問題生成ログの初期化に失敗しました: %w", err)
	}

	genOpts := []question.GeneratorOption{
		question.WithGeneratorConfig(question.Config{
			MinChunkChars: cfg.Pipeline.Questions.MinChunkChars,
			Temperature:   cfg.Pipeline.Questions.Temperature,
		}),
		question.WithGeneratorLogger(logger),
	}
	if options.rng != nil {
		genOpts = append(genOpts, question.WithRand(options.rng))
	}
	generator := question.NewGenerator(llmClient, genOpts...)

	chunker := chunk.New(chunk.Config{
		MaxChunkChars: cfg.Pipeline.Chunking.MaxChars,
		OverlapChars:  cfg.Pipeline.Chunking.OverlapChars,
	})

	ingestionService := ingestion.NewService(
		extractor,
		chunker,
		embedder,
		st.uow,
		ingestion.WithQuestionGeneration(generator, st.questions),
		ingestion.WithFailureLog(failureLog),
		ingestion.WithTokenCounter(tokenCounter),
		ingestion.WithIngestConfig(ingestion.Config{
			EmbeddingBatchSize: cfg.Pipeline.Ingest.EmbeddingBatchSize,
			Retry:              policy,
		}),
		ingestion.WithIngestLogger(logger),
	)

	retrievalService := retrieval.NewService(st.documents, embedder,
		retrieval.WithConfig(retrieval.Config{
			MatchThreshold: cfg.Pipeline.Retrieval.MatchThreshold,
			PreviewChars:   cfg.Pipeline.Retrieval.PreviewChars,
			DefaultLimit:   cfg.Pipeline.Retrieval.Limit,
			Retry:          policy,
		}),
		retrieval.WithRetrievalLogger(logger),
	)

	synthesizer := answer.NewSynthesizer(llmClient, answer.WithSynthesizerLogger(logger))
	answerService := answer.NewService(retrievalService, synthesizer, answer.WithAskLogger(logger))

	return &ServiceContainer{
		Documents:  st.documents,
		Questions:  st.questions,
		Ingestion:  ingestionService,
		Retrieval:  retrievalService,
		Answers:    answerService,
		config:     cfg,
		failureLog: failureLog,
		logger:     logger,
		database:   db,
	}, nil
}

// RetryPolicy は設定から外部呼び出しのリトライポリシーを作る
func RetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.Pipeline.Retry.MaxAttempts,
		InitialInterval: cfg.Pipeline.Retry.InitialInterval,
		MaxInterval:     cfg.Pipeline.Retry.MaxInterval,
		Timeout:         cfg.Pipeline.Retry.Timeout,
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.EmbedderProvider {
	case "hash":
		return embedding.NewHashEmbedder(cfg.OpenAI.EmbeddingDimension), nil
	case "openai":
		e, err := openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithEmbeddingBaseURL(cfg.OpenAI.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI Embedder初期化に失敗しました: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %q", cfg.EmbedderProvider)
	}
}

// Config は設定を返す。
func (c *ServiceContainer) Config() *config.Config {
	return c.config
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	if c.failureLog != nil {
		if err := c.failureLog.Close(); err != nil {
			c.Logger().Warn("failed to close question failure log", "error", err)
		}
	}
	if c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// unavailableClient は LLM が構成されていないときに使う Client。
type unavailableClient struct {
	err error
}

func (c unavailableClient) GenerateCompletion(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
	return llm.CompletionResponse{}, c.err
}
