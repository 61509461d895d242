package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jinford/study-rag/internal/core/apperr"
)

const (
	pgErrCodeUniqueViolation     = "23505"
	pgErrCodeForeignKeyViolation = "23503"
	pgErrCodeQueryCanceled       = "57014"
	pgErrCodeAdminShutdown       = "57P01"
	pgErrCodeCannotConnectNow    = "57P03"
	pgErrClassConnection         = "08"
)

// IsUniqueViolation は PostgreSQL の unique_violation(23505) かどうかを判定します
func IsUniqueViolation(err error) bool {
	return hasCode(err, pgErrCodeUniqueViolation)
}

// IsForeignKeyViolation は foreign_key_violation(23503) かどうかを判定します
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, pgErrCodeForeignKeyViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// isUnavailable は接続断・タイムアウトなど再試行で回復しうる障害かを判定します
func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrCodeQueryCanceled, pgErrCodeAdminShutdown, pgErrCodeCannotConnectNow:
			return true
		}
		return strings.HasPrefix(pgErr.Code, pgErrClassConnection)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// isDimensionError は pgvector の次元不一致エラーかを判定します
func isDimensionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.Contains(pgErr.Message, "dimensions")
	}
	return false
}

// classify は op の失敗を apperr の種別に変換します
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case isDimensionError(err):
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrDimensionMismatch, err)
	case isUnavailable(err):
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrPersistence, err)
	}
}
