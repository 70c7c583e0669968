package payments_repo

import (
	"context"

	"nutritrack/internal/domain"
)

type PaymentRepository interface {
	// CreateIfAbsentTx inserts rec unless a record with the same transaction id
	// exists. It reports whether this call created the row.
	CreateIfAbsentTx(ctx context.Context, querier domain.Querier, rec *domain.PaymentRecord) (bool, error)
	GetForUpdateTx(ctx context.Context, querier domain.Querier, transactionID string) (*domain.PaymentRecord, error)
	UpdateTx(ctx context.Context, querier domain.Querier, rec *domain.PaymentRecord) error

	GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRecord, error)
	GetLatestByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error)
}
