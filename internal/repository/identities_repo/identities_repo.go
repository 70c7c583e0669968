package identities_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"nutritrack/internal/domain"
)

type identityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *identityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (uid, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, identity.UID, identity.Email, string(identity.PasswordHash), identity.CreatedAt)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("identity %s: %w", identity.Email, domain.ErrEmailTaken)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// Delete removes the identity. Deleting a missing identity is not an error.
func (r *identityRepository) Delete(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("failed to delete identity %s: %w", uid, err)
	}
	return nil
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `
		SELECT uid, email, password_hash, created_at
		FROM identities
		WHERE email = $1
	`
	var (
		identity domain.Identity
		hash     string
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(&identity.UID, &identity.Email, &hash, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity %s: %w", email, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get identity %s: %w", email, err)
	}
	identity.PasswordHash = []byte(hash)
	return &identity, nil
}
