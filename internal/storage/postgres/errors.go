package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// opTimeout ограничивает одну операцию репозитория.
const opTimeout = 5 * time.Second

// SQLSTATE коды, которые репозитории разбирают явно.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// withOpTimeout накладывает opTimeout поверх контекста вызывающего.
func withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opTimeout)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}
