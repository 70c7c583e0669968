// Package wompi understands the webhook envelope posted by the Wompi payment
// processor and verifies its checksum.
package wompi

import (
	"fmt"
	"strings"

	"nutritrack/internal/domain"
)

// Event is a parsed webhook delivery:
//
//	{
//	  "event": "transaction.updated",
//	  "data": {"transaction": {...}},
//	  "signature": {"checksum": "...", "properties": ["transaction.id", ...]},
//	  "timestamp": 1530291411
//	}
type Event struct {
	Type       string
	Checksum   string
	Properties []string
	Timestamp  Value
	Data       Value
	Raw        []byte
}

// Transaction is the subset of data.transaction the service acts on.
type Transaction struct {
	ID            string
	Status        string
	Reference     *string
	AmountInCents int64
}

// ParseEvent decodes a webhook body. It fails with domain.ErrMalformedRequest
// when the body is not a JSON object or the signature block is unusable.
func ParseEvent(body []byte) (*Event, error) {
	root, err := ParseValue(body)
	if err != nil {
		return nil, fmt.Errorf("%w: body is not valid JSON: %v", domain.ErrMalformedRequest, err)
	}
	if root.Kind() != KindObject {
		return nil, fmt.Errorf("%w: body is not a JSON object", domain.ErrMalformedRequest)
	}

	sig := root.Field("signature")
	checksum, _ := sig.Field("checksum").Str()
	checksum = strings.TrimSpace(checksum)
	if checksum == "" {
		return nil, fmt.Errorf("%w: missing signature checksum", domain.ErrMalformedRequest)
	}

	items, ok := sig.Field("properties").Items()
	if !ok {
		return nil, fmt.Errorf("%w: signature properties must be an array", domain.ErrMalformedRequest)
	}
	props := make([]string, 0, len(items))
	for i, item := range items {
		p, ok := item.Str()
		if !ok {
			return nil, fmt.Errorf("%w: signature property %d is not a string", domain.ErrMalformedRequest, i)
		}
		props = append(props, p)
	}

	eventType, _ := root.Field("event").Str()

	return &Event{
		Type:       eventType,
		Checksum:   checksum,
		Properties: props,
		Timestamp:  root.Field("timestamp"),
		Data:       root.Field("data"),
		Raw:        body,
	}, nil
}

// Transaction extracts data.transaction. Only the transaction id is required;
// every other field is optional across integration versions.
func (e *Event) Transaction() (*Transaction, error) {
	txv := e.Data.Field("transaction")
	if txv.Kind() != KindObject {
		return nil, fmt.Errorf("%w: transaction is missing", domain.ErrMalformedRequest)
	}

	id := strings.TrimSpace(txv.Field("id").SignatureString())
	if id == "" {
		return nil, fmt.Errorf("%w: transaction id is missing", domain.ErrMalformedRequest)
	}

	tx := &Transaction{
		ID:     id,
		Status: txv.Field("status").SignatureString(),
	}
	if ref := strings.TrimSpace(txv.Field("reference").SignatureString()); ref != "" {
		tx.Reference = &ref
	}
	if amount, ok := txv.Field("amount_in_cents").Int64(); ok {
		tx.AmountInCents = amount
	}
	return tx, nil
}
