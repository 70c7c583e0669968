package domain

import "time"

const (
	AggregatePayment      = "payment"
	AggregateRegistration = "registration"

	MessagePaymentStatusChanged  = "payment.status_changed"
	MessageRegistrationCompleted = "registration.completed"
)

// PaymentStatusChangedEvent is published whenever a PaymentRecord changes status.
type PaymentStatusChangedEvent struct {
	TransactionID  string        `json:"transaction_id"`
	Reference      string        `json:"reference,omitempty"`
	PreviousStatus PaymentStatus `json:"previous_status,omitempty"`
	Status         PaymentStatus `json:"status"`
	AmountInCents  int64         `json:"amount_in_cents"`
	CodeIssued     bool          `json:"code_issued"`
	Timestamp      time.Time     `json:"timestamp"`
}

// RegistrationCompletedEvent is published when a code has been redeemed.
type RegistrationCompletedEvent struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}
