package users_repo

import (
	"context"

	"nutritrack/internal/domain"
)

type UserRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, user *domain.UserAccount) error
}
