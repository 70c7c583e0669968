package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"nutritrack/internal/domain"
)

type authClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	CustomToken(ctx context.Context, uid string) (string, error)
}

type Provider struct {
	client authClient
	logger *zap.Logger
}

// New builds a provider from the Firebase Admin SDK. Without a credentials
// file the SDK falls back to application default credentials.
func New(ctx context.Context, projectID, credentialsFile string, logger *zap.Logger) (*Provider, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase auth client: %w", err)
	}
	return &Provider{client: client, logger: logger}, nil
}

func (p *Provider) CreateUser(ctx context.Context, email, password string) (string, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	user, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", fmt.Errorf("firebase user %s: %w", email, domain.ErrEmailTaken)
		}
		return "", fmt.Errorf("failed to create firebase user: %w", err)
	}
	p.logger.Info("Firebase user created", zap.String("uid", user.UID))
	return user.UID, nil
}

func (p *Provider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		if auth.IsUserNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete firebase user %s: %w", uid, err)
	}
	p.logger.Info("Firebase user deleted", zap.String("uid", uid))
	return nil
}

func (p *Provider) CustomToken(ctx context.Context, uid string) (string, error) {
	token, err := p.client.CustomToken(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("failed to mint custom token for %s: %w", uid, err)
	}
	return token, nil
}
