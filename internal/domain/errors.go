package domain

import "errors"

var (
	ErrConfiguration      = errors.New("server misconfiguration")
	ErrMalformedRequest   = errors.New("malformed request")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyUsed        = errors.New("registration code already used")
	ErrPreconditionFailed = errors.New("registration code not approved")
	ErrAborted            = errors.New("registration aborted, retry")
	ErrStorage            = errors.New("storage unavailable")

	ErrInvalidInput   = errors.New("invalid input")
	ErrEmailTaken     = errors.New("email already registered")
	ErrTokenIssuance  = errors.New("token issuance failed")
	ErrCodeCollision  = errors.New("registration code collision")
	ErrCodesExhausted = errors.New("could not allocate a unique registration code")
)

// IsRegistrationValidation reports whether err is one of the user-facing
// validation errors that must reach the caller unchanged.
func IsRegistrationValidation(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrPreconditionFailed) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrInvalidInput)
}
