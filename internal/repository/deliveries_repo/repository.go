package deliveries_repo

import (
	"context"

	"nutritrack/internal/domain"
)

type DeliveryRepository interface {
	// RecordTx appends a verified webhook delivery. It reports true when the
	// same checksum was already recorded.
	RecordTx(ctx context.Context, querier domain.Querier, delivery *domain.WebhookDelivery) (duplicate bool, err error)
}
