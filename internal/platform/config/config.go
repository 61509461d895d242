package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings + LLM）
	OpenAI OpenAIConfig

	// EmbedderProvider は "openai" または "hash"（オフライン用の決定的Embedding）
	EmbedderProvider string

	// LLMRequestsPerMinute は生成APIへの毎分リクエスト上限（0以下で無制限）
	LLMRequestsPerMinute int

	Pipeline PipelineConfig

	Log LogConfig

	// QuestionFailureLogDir は問題生成の失敗をJSONLで書き出すディレクトリ（空なら無効）
	QuestionFailureLogDir string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
}

// LogConfig はログ出力設定
type LogConfig struct {
	Level  string
	Format string
}

// PipelineConfig はチャンク分割・検索・問題生成・再試行のチューニング値。
// YAMLファイルで上書きできます。
type PipelineConfig struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Questions QuestionsConfig `yaml:"questions"`
	Retry     RetryConfig     `yaml:"retry"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

type ChunkingConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

type RetrievalConfig struct {
	MatchThreshold float64 `yaml:"match_threshold"`
	Limit          int     `yaml:"limit"`
	PreviewChars   int     `yaml:"preview_chars"`
}

type QuestionsConfig struct {
	PerDocument   int     `yaml:"per_document"`
	MinChunkChars int     `yaml:"min_chunk_chars"`
	Temperature   float64 `yaml:"temperature"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

type IngestConfig struct {
	EmbeddingBatchSize int `yaml:"embedding_batch_size"`
	Concurrency        int `yaml:"concurrency"`
}

// Load は環境変数または.envファイルから設定を読み込み、
// tuningFile（空なら PIPELINE_CONFIG_FILE）があればパイプライン設定を上書きします
func Load(envFilePath, tuningFile string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "studyrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "studyrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		},
		EmbedderProvider:     getEnv("EMBEDDER_PROVIDER", "openai"),
		LLMRequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", 0),
		Pipeline: PipelineConfig{
			Chunking: ChunkingConfig{
				MaxChars:     getEnvAsInt("CHUNK_MAX_CHARS", 1000),
				OverlapChars: getEnvAsInt("CHUNK_OVERLAP_CHARS", 0),
			},
			Retrieval: RetrievalConfig{
				MatchThreshold: getEnvAsFloat("RETRIEVAL_MATCH_THRESHOLD", 0.1),
				Limit:          getEnvAsInt("RETRIEVAL_LIMIT", 10),
				PreviewChars:   getEnvAsInt("RETRIEVAL_PREVIEW_CHARS", 500),
			},
			Questions: QuestionsConfig{
				PerDocument:   getEnvAsInt("QUESTIONS_PER_DOCUMENT", 10),
				MinChunkChars: getEnvAsInt("QUESTION_MIN_CHUNK_CHARS", 100),
				Temperature:   getEnvAsFloat("QUESTION_TEMPERATURE", 0.7),
			},
			Retry: RetryConfig{
				MaxAttempts:     getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
				InitialInterval: getEnvAsDuration("RETRY_INITIAL_INTERVAL", time.Second),
				MaxInterval:     getEnvAsDuration("RETRY_MAX_INTERVAL", 16*time.Second),
				Timeout:         getEnvAsDuration("EXTERNAL_CALL_TIMEOUT", 60*time.Second),
			},
			Ingest: IngestConfig{
				EmbeddingBatchSize: getEnvAsInt("EMBEDDING_BATCH_SIZE", 16),
				Concurrency:        getEnvAsInt("INGEST_CONCURRENCY", 1),
			},
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		QuestionFailureLogDir: getEnv("QUESTION_FAILURE_LOG_DIR", ""),
	}

	if tuningFile == "" {
		tuningFile = getEnv("PIPELINE_CONFIG_FILE", "")
	}
	if tuningFile != "" {
		if err := cfg.Pipeline.loadFile(tuningFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile はYAMLの値で上書きします。ファイルに書かれていないキーは現在値のまま残ります
func (p *PipelineConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}
	return nil
}

// Validate は組み合わせとして成立しない設定を検出します
func (c *Config) Validate() error {
	var errs []error
	switch c.EmbedderProvider {
	case "openai", "hash":
	default:
		errs = append(errs, fmt.Errorf("EMBEDDER_PROVIDER must be openai or hash: %q", c.EmbedderProvider))
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("OPENAI_EMBEDDING_DIMENSION must be positive: %d", c.OpenAI.EmbeddingDimension))
	}
	if c.Pipeline.Chunking.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("chunking max_chars must be positive: %d", c.Pipeline.Chunking.MaxChars))
	}
	if c.Pipeline.Chunking.OverlapChars < 0 {
		errs = append(errs, fmt.Errorf("chunking overlap_chars must not be negative: %d", c.Pipeline.Chunking.OverlapChars))
	}
	if c.Pipeline.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry max_attempts must be at least 1: %d", c.Pipeline.Retry.MaxAttempts))
	}
	if c.Pipeline.Ingest.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("ingest concurrency must be at least 1: %d", c.Pipeline.Ingest.Concurrency))
	}
	return errors.Join(errs...)
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration（"30s" 形式）として取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
