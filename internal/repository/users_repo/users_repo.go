package users_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"nutritrack/internal/domain"
)

const (
	uniqueViolation = "23505"

	usersEmailKey = "users_email_key"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateTx(ctx context.Context, querier domain.Querier, user *domain.UserAccount) error {
	query := `
		INSERT INTO users (id, email, registration_code, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := querier.ExecContext(ctx, query, user.ID, user.Email, user.RegistrationCode, user.CreatedAt)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.Constraint == usersEmailKey {
				return fmt.Errorf("user with email %s: %w", user.Email, domain.ErrEmailTaken)
			}
			return fmt.Errorf("user for code %s: %w", user.RegistrationCode, domain.ErrAlreadyUsed)
		}
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}
