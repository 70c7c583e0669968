package codes_repo

import (
	"context"
	"time"

	"nutritrack/internal/domain"
)

type CodeRepository interface {
	// CreateTx stores a freshly issued code. A code that already exists yields
	// domain.ErrCodeCollision so the caller can draw another.
	CreateTx(ctx context.Context, querier domain.Querier, code *domain.RegistrationCode) error
	GetByCodeForUpdateTx(ctx context.Context, querier domain.Querier, code string) (*domain.RegistrationCode, error)
	// MarkUsedTx flips used from false to true. It fails with
	// domain.ErrAlreadyUsed when the code was redeemed already.
	MarkUsedTx(ctx context.Context, querier domain.Querier, code, userID string, at time.Time) error

	GetByCode(ctx context.Context, code string) (*domain.RegistrationCode, error)
}
