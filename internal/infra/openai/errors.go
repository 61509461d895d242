package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"

	"github.com/jinford/study-rag/internal/core/apperr"
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")
)

// classifyError は OpenAI API のエラーを apperr の種別に変換する。
// 429・5xx・通信エラーは再試行可能な ErrServiceUnavailable、それ以外は ErrGeneration とする。
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %s: status %d", apperr.ErrServiceUnavailable, op, apiErr.StatusCode)
		default:
			return fmt.Errorf("%w: %s: status %d", apperr.ErrGeneration, op, apiErr.StatusCode)
		}
	}

	return fmt.Errorf("%w: %s: %v", apperr.ErrServiceUnavailable, op, err)
}
