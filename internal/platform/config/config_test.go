package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EMBEDDER_PROVIDER", "")
	t.Setenv("CHUNK_MAX_CHARS", "")
	t.Setenv("PIPELINE_CONFIG_FILE", "")

	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.EmbedderProvider)
	assert.Equal(t, 1536, cfg.OpenAI.EmbeddingDimension)
	assert.Equal(t, 1000, cfg.Pipeline.Chunking.MaxChars)
	assert.Equal(t, 0, cfg.Pipeline.Chunking.OverlapChars)
	assert.InDelta(t, 0.1, cfg.Pipeline.Retrieval.MatchThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Pipeline.Retrieval.Limit)
	assert.Equal(t, 500, cfg.Pipeline.Retrieval.PreviewChars)
	assert.Equal(t, 10, cfg.Pipeline.Questions.PerDocument)
	assert.Equal(t, 100, cfg.Pipeline.Questions.MinChunkChars)
	assert.Equal(t, 3, cfg.Pipeline.Retry.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.Retry.Timeout)
	assert.Equal(t, 16, cfg.Pipeline.Ingest.EmbeddingBatchSize)
	assert.Equal(t, 1, cfg.Pipeline.Ingest.Concurrency)
}

func TestLoad_EnvFileAndTuningFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EMBEDDER_PROVIDER=hash\nRETRY_INITIAL_INTERVAL=250ms\n"), 0o644))
	tuning := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(tuning, []byte(`
chunking:
  max_chars: 400
  overlap_chars: 80
retrieval:
  match_threshold: 0.25
questions:
  per_document: 5
`), 0o644))

	// godotenv は既存の環境変数を上書きしないため、テスト前に空にしておく
	t.Setenv("EMBEDDER_PROVIDER", "")
	t.Setenv("RETRY_INITIAL_INTERVAL", "")
	os.Unsetenv("EMBEDDER_PROVIDER")
	os.Unsetenv("RETRY_INITIAL_INTERVAL")

	cfg, err := Load(envFile, tuning)
	require.NoError(t, err)

	assert.Equal(t, "hash", cfg.EmbedderProvider)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.Retry.InitialInterval)
	assert.Equal(t, 400, cfg.Pipeline.Chunking.MaxChars)
	assert.Equal(t, 80, cfg.Pipeline.Chunking.OverlapChars)
	assert.InDelta(t, 0.25, cfg.Pipeline.Retrieval.MatchThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Pipeline.Questions.PerDocument)
	// ファイルにないキーは環境変数の値のまま
	assert.Equal(t, 10, cfg.Pipeline.Retrieval.Limit)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"), "")
	require.NoError(t, err)
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("EMBEDDER_PROVIDER", "cohere")
	_, err := Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDER_PROVIDER")
}

func TestGetEnvAsDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("STUDY_RAG_TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("STUDY_RAG_TEST_DURATION", time.Minute))
}
