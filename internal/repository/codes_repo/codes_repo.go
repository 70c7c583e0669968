package codes_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nutritrack/internal/domain"
)

type codeRepository struct {
	db *sql.DB
}

func NewCodeRepository(db *sql.DB) *codeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) CreateTx(ctx context.Context, querier domain.Querier, code *domain.RegistrationCode) error {
	query := `
		INSERT INTO registration_codes (code, transaction_id, status, used, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (code) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query, code.Code, code.TransactionID, string(code.Status), code.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert registration code for transaction %s: %w", code.TransactionID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for registration code insert: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrCodeCollision
	}
	return nil
}

func (r *codeRepository) GetByCodeForUpdateTx(ctx context.Context, querier domain.Querier, code string) (*domain.RegistrationCode, error) {
	query := `
		SELECT code, transaction_id, status, used, used_by, used_at, created_at
		FROM registration_codes
		WHERE code = $1
		FOR UPDATE
	`
	return r.get(ctx, querier, query, code)
}

func (r *codeRepository) GetByCode(ctx context.Context, code string) (*domain.RegistrationCode, error) {
	query := `
		SELECT code, transaction_id, status, used, used_by, used_at, created_at
		FROM registration_codes
		WHERE code = $1
	`
	return r.get(ctx, r.db, query, code)
}

func (r *codeRepository) get(ctx context.Context, querier domain.Querier, query, code string) (*domain.RegistrationCode, error) {
	var (
		rc     domain.RegistrationCode
		status string
		usedBy sql.NullString
		usedAt sql.NullTime
	)
	err := querier.QueryRowContext(ctx, query, code).Scan(
		&rc.Code,
		&rc.TransactionID,
		&status,
		&rc.Used,
		&usedBy,
		&usedAt,
		&rc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("registration code %s: %w", code, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get registration code %s: %w", code, err)
	}
	rc.Status = domain.PaymentStatus(status)
	if usedBy.Valid {
		rc.UsedBy = &usedBy.String
	}
	if usedAt.Valid {
		rc.UsedAt = &usedAt.Time
	}
	return &rc, nil
}

func (r *codeRepository) MarkUsedTx(ctx context.Context, querier domain.Querier, code, userID string, at time.Time) error {
	query := `
		UPDATE registration_codes
		SET used = TRUE, used_by = $2, used_at = $3
		WHERE code = $1 AND used = FALSE
	`
	res, err := querier.ExecContext(ctx, query, code, userID, at)
	if err != nil {
		return fmt.Errorf("failed to mark registration code %s used: %w", code, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for registration code update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("registration code %s: %w", code, domain.ErrAlreadyUsed)
	}
	return nil
}
