// Package identity abstracts the external account system a redeemed
// registration code creates a login in.
package identity

import "context"

type Provider interface {
	// CreateUser returns domain.ErrEmailTaken when the email is registered.
	CreateUser(ctx context.Context, email, password string) (uid string, err error)
	// DeleteUser removes uid. A missing user is not an error.
	DeleteUser(ctx context.Context, uid string) error
	CustomToken(ctx context.Context, uid string) (string, error)
}
