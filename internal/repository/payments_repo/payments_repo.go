package payments_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nutritrack/internal/domain"
)

const selectColumns = `transaction_id, reference, status, registration_code, amount_in_cents, event_type, raw_event, created_at, updated_at`

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreateIfAbsentTx(ctx context.Context, querier domain.Querier, rec *domain.PaymentRecord) (bool, error) {
	query := `
		INSERT INTO payment_records (transaction_id, reference, status, registration_code, amount_in_cents, event_type, raw_event, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query,
		rec.TransactionID,
		nullString(rec.Reference),
		string(rec.Status),
		rec.AmountInCents,
		rec.EventType,
		nullText(rec.RawEvent),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert payment record %s: %w", rec.TransactionID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for payment record insert: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *paymentRepository) GetForUpdateTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_records WHERE transaction_id = $1 FOR UPDATE`
	rec, err := scanRecord(querier.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment record %s: %w", transactionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock payment record %s: %w", transactionID, err)
	}
	return rec, nil
}

// UpdateTx overwrites the mutable fields of rec. An already attached
// reference or registration code is never replaced.
func (r *paymentRepository) UpdateTx(ctx context.Context, querier domain.Querier, rec *domain.PaymentRecord) error {
	query := `
		UPDATE payment_records
		SET reference = COALESCE(reference, $2),
			status = $3,
			registration_code = COALESCE(registration_code, $4),
			amount_in_cents = $5,
			event_type = $6,
			raw_event = COALESCE($7, raw_event),
			updated_at = $8
		WHERE transaction_id = $1
	`
	res, err := querier.ExecContext(ctx, query,
		rec.TransactionID,
		nullString(rec.Reference),
		string(rec.Status),
		nullString(rec.RegistrationCode),
		rec.AmountInCents,
		rec.EventType,
		nullText(rec.RawEvent),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment record %s: %w", rec.TransactionID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for payment record update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payment record %s for update: %w", rec.TransactionID, domain.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_records WHERE transaction_id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment record %s: %w", transactionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment record %s: %w", transactionID, err)
	}
	return rec, nil
}

// GetLatestByReference returns the most recently updated record carrying
// reference. References are client generated, so several may match.
func (r *paymentRepository) GetLatestByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_records WHERE reference = $1 ORDER BY updated_at DESC LIMIT 1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment record with reference %s: %w", reference, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment record by reference %s: %w", reference, err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.PaymentRecord, error) {
	var (
		rec       domain.PaymentRecord
		reference sql.NullString
		code      sql.NullString
		status    string
		raw       []byte
	)
	err := row.Scan(
		&rec.TransactionID,
		&reference,
		&status,
		&code,
		&rec.AmountInCents,
		&rec.EventType,
		&raw,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.PaymentStatus(status)
	if reference.Valid {
		rec.Reference = &reference.String
	}
	if code.Valid {
		rec.RegistrationCode = &code.String
	}
	if len(raw) > 0 {
		rec.RawEvent = raw
	}
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullText stores the body verbatim in a TEXT column; lib/pq would send a
// []byte as bytea.
func nullText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
