package domain

import "time"

// RegistrationCode is materialised only for approved payments and may be
// redeemed exactly once.
type RegistrationCode struct {
	Code          string        `json:"code"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId"`
	Used          bool          `json:"used"`
	UsedBy        *string       `json:"usedBy,omitempty"`
	UsedAt        *time.Time    `json:"usedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// UserAccount is created by a successful code redemption.
type UserAccount struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	RegistrationCode string    `json:"registrationCode"`
	CreatedAt        time.Time `json:"createdAt"`
}
