package wompi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"nutritrack/internal/domain"
)

// Verifier recomputes event checksums with the shared events secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Configured reports whether a secret is available. Without one no delivery
// can be authenticated.
func (v *Verifier) Configured() bool {
	return v != nil && v.secret != ""
}

// Checksum computes the lowercase hex SHA-256 of the resolved properties, the
// timestamp and the secret, concatenated without separators.
func (v *Verifier) Checksum(e *Event) string {
	return Checksum(e.Properties, e.Data, e.Timestamp, v.secret)
}

// Verify returns the computed checksum and nil when it matches the received
// one. A mismatch yields domain.ErrSignatureMismatch together with the
// computed value so the caller can log it.
func (v *Verifier) Verify(e *Event) (string, error) {
	if !v.Configured() {
		return "", fmt.Errorf("%w: events secret is not set", domain.ErrConfiguration)
	}
	computed := v.Checksum(e)
	received := strings.ToLower(strings.TrimSpace(e.Checksum))
	if subtle.ConstantTimeCompare([]byte(computed), []byte(received)) != 1 {
		return computed, domain.ErrSignatureMismatch
	}
	return computed, nil
}

// Checksum is the processor's signing algorithm.
func Checksum(properties []string, data, timestamp Value, secret string) string {
	var b strings.Builder
	for _, p := range properties {
		b.WriteString(data.Lookup(p).SignatureString())
	}
	b.WriteString(timestamp.SignatureString())
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// MaskSecret keeps enough of a secret to tell environments apart in logs.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-4)
}

func (v *Verifier) MaskedSecret() string {
	return MaskSecret(v.secret)
}
