package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nutritrack/internal/domain"
)

const keyPrefix = "nutritrack:payment:"

// StatusCache stores payment records that reached a terminal status. Such
// records only ever gain a code once, which happens in the same transaction
// that makes them terminal, so cached entries never go stale.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Get returns (nil, nil) on a cache miss.
func (c *StatusCache) Get(ctx context.Context, transactionID string) (*domain.PaymentRecord, error) {
	raw, err := c.client.Get(ctx, keyPrefix+transactionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached payment %s: %w", transactionID, err)
	}
	var rec domain.PaymentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached payment %s: %w", transactionID, err)
	}
	return &rec, nil
}

func (c *StatusCache) Set(ctx context.Context, rec *domain.PaymentRecord) error {
	if !rec.Status.IsTerminal() {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode payment %s: %w", rec.TransactionID, err)
	}
	if err := c.client.Set(ctx, keyPrefix+rec.TransactionID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache payment %s: %w", rec.TransactionID, err)
	}
	return nil
}
