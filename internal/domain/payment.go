package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusDeclined PaymentStatus = "DECLINED"
	PaymentStatusVoided   PaymentStatus = "VOIDED"
	PaymentStatusError    PaymentStatus = "ERROR"
	PaymentStatusUnknown  PaymentStatus = "UNKNOWN"
)

// NormalizePaymentStatus maps a processor-reported status onto the known set,
// case-insensitively. Anything unrecognised becomes UNKNOWN.
func NormalizePaymentStatus(raw string) PaymentStatus {
	switch s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusDeclined,
		PaymentStatusVoided, PaymentStatusError:
		return s
	default:
		return PaymentStatusUnknown
	}
}

// IsTerminal reports whether no further status change is accepted.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusDeclined, PaymentStatusVoided, PaymentStatusError:
		return true
	}
	return false
}

// Transition returns the status a record should hold after a delivery
// reporting next. Terminal states never change; UNKNOWN never overwrites a
// known state.
func (s PaymentStatus) Transition(next PaymentStatus) PaymentStatus {
	if s.IsTerminal() {
		return s
	}
	if next == PaymentStatusUnknown && s != "" {
		return s
	}
	return next
}

// PaymentRecord is the last known processor state of one transaction.
// TransactionID is the only idempotency key; Reference is client generated.
type PaymentRecord struct {
	TransactionID    string          `json:"transactionId"`
	Reference        *string         `json:"reference,omitempty"`
	Status           PaymentStatus   `json:"status"`
	RegistrationCode *string         `json:"registrationCode,omitempty"`
	AmountInCents    int64           `json:"amountInCents"`
	EventType        string          `json:"eventType,omitempty"`
	RawEvent         json.RawMessage `json:"rawEvent,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (p *PaymentRecord) HasCode() bool {
	return p.RegistrationCode != nil && *p.RegistrationCode != ""
}
