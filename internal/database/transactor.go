package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"nutritrack/internal/domain"
)

// SQLTransactor opens a READ COMMITTED transaction per call. Row locks taken
// inside fn (SELECT ... FOR UPDATE) serialise concurrent callers.
type SQLTransactor struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLTransactor(db *sql.DB, logger *zap.Logger) *SQLTransactor {
	return &SQLTransactor{db: db, logger: logger}
}

func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Recovered panic inside transaction, rolling back", zap.Any("panic", r))
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			t.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
