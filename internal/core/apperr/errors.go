package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScope は科目IDの形式が不正な場合のエラー
	ErrInvalidScope = errors.New("invalid subject scope")

	// ErrPersistence はストアへの読み書きに失敗した場合のエラー
	ErrPersistence = errors.New("persistence failure")

	// ErrServiceUnavailable は類似度検索や生成サービスに到達できない場合のエラー
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrGeneration はモデル出力が空・不正な場合のエラー
	ErrGeneration = errors.New("generation failed")

	// ErrExtraction はテキスト抽出に失敗した場合のエラー
	ErrExtraction = errors.New("extraction failed")

	// ErrDimensionMismatch はベクトル次元が設定値と一致しない場合のエラー
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyDocument は抽出結果からチャンクが1つも得られなかった場合のエラー
	ErrEmptyDocument = errors.New("document has no extractable text")
)

// StageError はインジェストの失敗ステージを保持するエラー
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingestion failed at stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage は err をステージ情報付きでラップする（nil はそのまま返す）
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage は err に含まれるステージ名を返す
func FailedStage(err error) (string, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// IsRetryable は一時的な障害として再試行してよいエラーかを判定する
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
