package deliveries_repo

import (
	"context"
	"database/sql"
	"fmt"

	"nutritrack/internal/domain"
)

type deliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *deliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) RecordTx(ctx context.Context, querier domain.Querier, delivery *domain.WebhookDelivery) (bool, error) {
	query := `
		INSERT INTO webhook_deliveries (checksum, event_type, transaction_id, status, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (checksum) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query,
		delivery.Checksum,
		delivery.EventType,
		delivery.TransactionID,
		string(delivery.Status),
		string(delivery.Payload),
		delivery.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook delivery for transaction %s: %w", delivery.TransactionID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for webhook delivery insert: %w", err)
	}
	return rowsAffected == 0, nil
}
