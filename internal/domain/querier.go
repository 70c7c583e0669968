package domain

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor runs fn inside one storage transaction. A non-nil error from fn
// rolls the transaction back; otherwise it is committed.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
}
