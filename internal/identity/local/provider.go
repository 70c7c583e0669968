// Package local keeps logins in the service's own database and signs
// session tokens with a shared HMAC secret.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository/identities_repo"
)

const issuer = "nutritrack"

var ErrInvalidToken = errors.New("invalid token")

type Provider struct {
	repo   identities_repo.IdentityRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func New(repo identities_repo.IdentityRepository, secret string, ttl time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// CreateUser stores a bcrypt identity. A known email is rejected before
// hashing; the unique index still decides under concurrency.
func (p *Provider) CreateUser(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(email)
	if _, err := p.repo.GetByEmail(ctx, email); err == nil {
		return "", fmt.Errorf("identity %s: %w", email, domain.ErrEmailTaken)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	identity := &domain.Identity{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.repo.Create(ctx, identity); err != nil {
		return "", err
	}
	p.logger.Info("Local identity created", zap.String("uid", identity.UID))
	return identity.UID, nil
}

func (p *Provider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.repo.Delete(ctx, uid); err != nil {
		return err
	}
	p.logger.Info("Local identity deleted", zap.String("uid", uid))
	return nil
}

func (p *Provider) CustomToken(_ context.Context, uid string) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// verifyToken parses a token minted by CustomToken and returns its subject.
func (p *Provider) verifyToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}
