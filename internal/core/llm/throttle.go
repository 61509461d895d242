package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ThrottledClient は1分あたりのリクエスト数を制限して内部クライアントを呼び出す
type ThrottledClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewThrottledClient は新しい ThrottledClient を作成する。
// requestsPerMinute が0以下の場合は制限しない。
func NewThrottledClient(inner Client, requestsPerMinute int) *ThrottledClient {
	limit := rate.Inf
	burst := 1
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
		burst = requestsPerMinute
	}
	return &ThrottledClient{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// GenerateCompletion はレート制限に従って待機した後にリクエストを送る
func (c *ThrottledClient) GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return CompletionResponse{}, fmt.Errorf("rate limiter wait: %w", err)
	}
	return c.inner.GenerateCompletion(ctx, req)
}

var _ Client = (*ThrottledClient)(nil)
