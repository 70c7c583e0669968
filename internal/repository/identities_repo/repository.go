package identities_repo

import (
	"context"

	"nutritrack/internal/domain"
)

type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	Delete(ctx context.Context, uid string) error
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
}
