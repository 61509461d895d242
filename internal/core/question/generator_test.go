package question

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/llm"
)

const validItem = `{"question":"光合成で生成される気体は？","options":["酸素","窒素","水素","二酸化炭素"],"correct_answer":"酸素","explanation":"光合成では水が分解され酸素が放出される。"}`

// scriptedLLM は呼び出し順に応じた応答を返す
type scriptedLLM struct {
	respond func(call int, req llm.CompletionRequest) (string, error)
	calls   int
	chunks  []string
}

func (s *scriptedLLM) GenerateCompletion(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.calls++
	s.chunks = append(s.chunks, req.Messages[len(req.Messages)-1].Content)
	content, err := s.respond(s.calls, req)
	if err != nil {
		return llm.CompletionResponse{}, err
	}
	return llm.CompletionResponse{Content: content}, nil
}

func longChunk(i int) string {
	return fmt.Sprintf("chunk-%02d ", i) + strings.Repeat("学習内容の説明文です。", 15)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(client llm.Client) *Generator {
	return NewGenerator(client,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithGeneratorLogger(discardLogger()),
	)
}

func TestGenerate_PartialFailureTolerance(t *testing.T) {
	chunks := make([]string, 25)
	for i := range chunks {
		chunks[i] = longChunk(i)
	}

	client := &scriptedLLM{respond: func(call int, _ llm.CompletionRequest) (string, error) {
		if call == 2 || call == 5 || call == 9 {
			return "this is not json", nil
		}
		return validItem, nil
	}}
	g := newTestGenerator(client)

	var progress []Progress
	drafts, failures := g.Generate(context.Background(), chunks, 10, func(p Progress) {
		progress = append(progress, p)
	})

	assert.Len(t, drafts, 7)
	assert.Len(t, failures, 3)
	assert.Equal(t, 10, client.calls)
	require.Len(t, progress, 10)
	assert.Equal(t, Progress{Current: 10, Total: 10}, progress[9])

	for _, f := range failures {
		assert.ErrorIs(t, f.Err, apperr.ErrGeneration)
		assert.NotEmpty(t, f.Preview)
	}
	for _, d := range drafts {
		assert.Equal(t, "a", d.CorrectOption)
	}
}

func TestGenerate_SubsetKeepsOriginalOrder(t *testing.T) {
	chunks := make([]string, 20)
	for i := range chunks {
		chunks[i] = longChunk(i)
	}
	client := &scriptedLLM{respond: func(int, llm.CompletionRequest) (string, error) { return validItem, nil }}
	g := newTestGenerator(client)

	drafts, _ := g.Generate(context.Background(), chunks, 5, nil)

	require.Len(t, drafts, 5)
	for i := 1; i < len(drafts); i++ {
		assert.Less(t, drafts[i-1].ChunkOrdinal, drafts[i].ChunkOrdinal)
	}
	seen := map[int]bool{}
	for _, d := range drafts {
		assert.False(t, seen[d.ChunkOrdinal])
		seen[d.ChunkOrdinal] = true
		assert.Equal(t, chunks[d.ChunkOrdinal], client.chunks[indexOf(drafts, d)])
	}
}

func indexOf(drafts []*Draft, d *Draft) int {
	for i, x := range drafts {
		if x == d {
			return i
		}
	}
	return -1
}

func TestGenerate_SkipsShortChunks(t *testing.T) {
	chunks := []string{"短い", longChunk(1), "   " + strings.Repeat("a", 99) + "   ", longChunk(3)}
	client := &scriptedLLM{respond: func(int, llm.CompletionRequest) (string, error) { return validItem, nil }}
	g := newTestGenerator(client)

	drafts, failures := g.Generate(context.Background(), chunks, 10, nil)

	require.Len(t, drafts, 2)
	assert.Empty(t, failures)
	assert.Equal(t, 1, drafts[0].ChunkOrdinal)
	assert.Equal(t, 3, drafts[1].ChunkOrdinal)
}

func TestGenerate_NonPositiveHintGeneratesNothing(t *testing.T) {
	client := &scriptedLLM{respond: func(int, llm.CompletionRequest) (string, error) { return validItem, nil }}
	g := newTestGenerator(client)

	drafts, failures := g.Generate(context.Background(), []string{longChunk(0)}, 0, nil)

	assert.Empty(t, drafts)
	assert.Empty(t, failures)
	assert.Zero(t, client.calls)
}

func TestGenerate_LLMErrorIsRecorded(t *testing.T) {
	client := &scriptedLLM{respond: func(call int, _ llm.CompletionRequest) (string, error) {
		if call == 1 {
			return "", apperr.ErrServiceUnavailable
		}
		return validItem, nil
	}}
	g := newTestGenerator(client)

	drafts, failures := g.Generate(context.Background(), []string{longChunk(0), longChunk(1)}, 5, nil)

	assert.Len(t, drafts, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, 0, failures[0].Ordinal)
	assert.ErrorIs(t, failures[0].Err, apperr.ErrServiceUnavailable)
}

func TestGenerate_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &scriptedLLM{respond: func(int, llm.CompletionRequest) (string, error) {
		cancel()
		return validItem, nil
	}}
	g := newTestGenerator(client)

	drafts, _ := g.Generate(ctx, []string{longChunk(0), longChunk(1), longChunk(2)}, 3, nil)

	assert.Len(t, drafts, 1)
	assert.Equal(t, 1, client.calls)
}

func TestGenerate_RequestShape(t *testing.T) {
	var got llm.CompletionRequest
	client := &scriptedLLM{respond: func(_ int, req llm.CompletionRequest) (string, error) {
		got = req
		return validItem, nil
	}}
	g := newTestGenerator(client)

	g.Generate(context.Background(), []string{longChunk(0)}, 1, nil)

	assert.Equal(t, llm.ResponseFormatJSON, got.ResponseFormat)
	assert.Equal(t, DefaultTemperature, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, llm.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, longChunk(0), got.Messages[1].Content)
}

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantTag string
		wantErr bool
	}{
		{name: "正常", content: validItem, wantTag: "a"},
		{
			name:    "前後空白のある正解",
			content: `{"question":"Q","options":["w","x"," y ","z"],"correct_answer":"y ","explanation":"E"}`,
			wantTag: "c",
		},
		{
			name:    "コードフェンス付き",
			content: "```json\n" + `{"question":"Q","options":["w","x","y","z"],"correct_answer":"z","explanation":"E"}` + "\n```",
			wantTag: "d",
		},
		{name: "不正なJSON", content: "{", wantErr: true},
		{
			name:    "選択肢が3つ",
			content: `{"question":"Q","options":["w","x","y"],"correct_answer":"w","explanation":"E"}`,
			wantErr: true,
		},
		{
			name:    "正解が選択肢にない",
			content: `{"question":"Q","options":["w","x","y","z"],"correct_answer":"v","explanation":"E"}`,
			wantErr: true,
		},
		{
			name:    "選択肢が重複",
			content: `{"question":"Q","options":["w","w","y","z"],"correct_answer":"w","explanation":"E"}`,
			wantErr: true,
		},
		{
			name:    "解説が空",
			content: `{"question":"Q","options":["w","x","y","z"],"correct_answer":"w","explanation":""}`,
			wantErr: true,
		},
		{
			name:    "問題文が空",
			content: `{"question":" ","options":["w","x","y","z"],"correct_answer":"w","explanation":"E"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := ParseDraft(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrGeneration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, draft.CorrectOption)
		})
	}
}

func TestParseDraft_UnmatchedAnswerIsDistinguishable(t *testing.T) {
	_, err := ParseDraft(`{"question":"Q","options":["w","x","y","z"],"correct_answer":"v","explanation":"E"}`)

	assert.True(t, errors.Is(err, errAnswerNotInOptions))
}

func TestQuestion_Validate(t *testing.T) {
	valid := NewQuestion(&Draft{
		Question:      "Q",
		Options:       [OptionCount]string{"a1", "b1", "c1", "d1"},
		CorrectOption: "b",
		Explanation:   "E",
	}, uuid.New(), uuid.New(), mo.None[uuid.UUID]())
	require.NoError(t, valid.Validate())

	badTag := *valid
	badTag.CorrectOption = "e"
	assert.Error(t, badTag.Validate())

	emptyOption := *valid
	emptyOption.Options[3] = " "
	assert.Error(t, emptyOption.Validate())

	idx, ok := OptionIndex("c")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestFailureLog_AppendWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	log, err := NewFailureLog(dir)
	require.NoError(t, err)

	err = log.Append("doc-1", "biology.pdf", []ChunkFailure{
		{Ordinal: 3, Preview: "preview text", Err: errors.New("boom")},
		{Ordinal: 7, Preview: "another"},
	})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "question_failures_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()

	var records []FailureRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r FailureRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].ChunkOrdinal)
	assert.Equal(t, "boom", records[0].ErrorMessage)
	assert.Equal(t, "biology.pdf", records[1].DocumentName)
}

func TestFailureLog_DisabledIsNoop(t *testing.T) {
	log, err := NewFailureLog("")
	require.NoError(t, err)

	assert.NoError(t, log.Append("doc", "name", []ChunkFailure{{Ordinal: 1}}))
	assert.NoError(t, log.Close())

	var nilLog *FailureLog
	assert.NoError(t, nilLog.Append("doc", "name", []ChunkFailure{{Ordinal: 1}}))
}
