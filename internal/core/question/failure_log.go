package question

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FailureRecord は問題生成に失敗したチャンクのログレコード
type FailureRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	ChunkOrdinal int       `json:"chunk_ordinal"`
	ChunkPreview string    `json:"chunk_preview"`
	ErrorMessage string    `json:"error_message"`
}

// FailureLog は問題生成の失敗を JSON Lines 形式で追記する。
// ディレクトリ未指定の場合は何もしない。
type FailureLog struct {
	mu      sync.Mutex
	file    *os.File
	enabled bool
	now     func() time.Time
}

// NewFailureLog は logDir に日付付きのログファイルを開く
func NewFailureLog(logDir string) (*FailureLog, error) {
	if logDir == "" {
		return &FailureLog{enabled: false, now: time.Now}, nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("question_failures_%s.jsonl", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FailureLog{file: file, enabled: true, now: time.Now}, nil
}

// Append はドキュメント単位の失敗をまとめて記録する
func (l *FailureLog) Append(documentID, documentName string, failures []ChunkFailure) error {
	if l == nil || !l.enabled || len(failures) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, f := range failures {
		record := FailureRecord{
			Timestamp:    l.now(),
			DocumentID:   documentID,
			DocumentName: documentName,
			ChunkOrdinal: f.Ordinal,
			ChunkPreview: f.Preview,
		}
		if f.Err != nil {
			record.ErrorMessage = f.Err.Error()
		}

		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal failure record: %w", err)
		}
		if _, err := l.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write failure log: %w", err)
		}
	}
	return nil
}

// Close はログファイルを閉じる
func (l *FailureLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
