package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jinford/study-rag/internal/core/apperr"
)

const (
	// DefaultMaxAttempts は1回の外部呼び出しあたりの最大試行回数
	DefaultMaxAttempts = 3

	// DefaultInitialInterval は最初のリトライまでの待機時間
	DefaultInitialInterval = 1 * time.Second

	// DefaultMaxInterval はリトライ間隔の上限
	DefaultMaxInterval = 16 * time.Second

	// DefaultTimeout は1回の外部呼び出しのタイムアウト
	DefaultTimeout = 60 * time.Second
)

// Policy は外部呼び出しのタイムアウトとリトライ方針
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration // 0 の場合は試行ごとのタイムアウトなし
}

// DefaultPolicy はデフォルトのリトライ方針を返す
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Timeout:         DefaultTimeout,
	}
}

// Do は ErrServiceUnavailable のみを再試行対象として op を実行する
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	return DoIf(ctx, p, name, apperr.IsRetryable, op)
}

// DoIf は retryable が true を返すエラーに限り、指数バックオフで op を再実行する。
// 試行ごとのタイムアウト超過は ErrServiceUnavailable として扱う。
func DoIf[T any](ctx context.Context, p Policy, name string, retryable func(error) bool, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++

		callCtx := ctx
		cancel := func() {}
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()

		v, err := op(callCtx)
		if err == nil {
			return v, nil
		}

		// 呼び出し元のキャンセルは再試行しない
		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}

		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, apperr.ErrServiceUnavailable) {
			err = fmt.Errorf("%w: %s timed out after %s: %w", apperr.ErrServiceUnavailable, name, p.Timeout, err)
		}

		if !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("外部呼び出しをリトライします",
			"call", name,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	return backoff.RetryNotifyWithData(operation, bo, notify)
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Millisecond
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}
