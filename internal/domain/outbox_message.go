package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is an event waiting to be published to Kafka. It is written in
// the same transaction as the state change it describes.
type OutboxMessage struct {
	ID            string
	AggregateID   string
	AggregateType string
	MessageType   string
	Topic         string
	Key           string
	Payload       []byte
	Status        OutboxMessageStatus
	CreatedAt     time.Time
	SentAt        *time.Time
}
