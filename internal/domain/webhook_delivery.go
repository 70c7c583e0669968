package domain

import "time"

// WebhookDelivery is one verified inbound processor call. Deliveries are keyed
// by the received checksum, so a redelivery of the same event maps to the
// same row.
type WebhookDelivery struct {
	Checksum      string
	EventType     string
	TransactionID string
	Status        PaymentStatus
	Payload       []byte
	ReceivedAt    time.Time
}
