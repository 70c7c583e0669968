package domain

import "time"

// Identity is a login held by the local identity provider.
type Identity struct {
	UID          string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
