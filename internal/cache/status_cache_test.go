package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"nutritrack/internal/domain"
)

func newCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStatusCache(client, time.Minute), mr
}

func TestStatusCacheRoundTrip(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	code := "AB12CD"
	rec := &domain.PaymentRecord{TransactionID: "123", Status: domain.PaymentStatusApproved, RegistrationCode: &code, AmountInCents: 4000000}

	got, err := c.Get(ctx, "123")
	if err != nil || got != nil {
		t.Fatalf("miss: got %+v, err %v", got, err)
	}
	if err := c.Set(ctx, rec); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = c.Get(ctx, "123")
	if err != nil || got == nil {
		t.Fatalf("hit: got %+v, err %v", got, err)
	}
	if got.RegistrationCode == nil || *got.RegistrationCode != code || got.AmountInCents != 4000000 {
		t.Fatalf("cached record = %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if got, _ := c.Get(ctx, "123"); got != nil {
		t.Fatal("entry survived its TTL")
	}
}

func TestStatusCacheSkipsNonTerminal(t *testing.T) {
	c, mr := newCache(t)
	if err := c.Set(context.Background(), &domain.PaymentRecord{TransactionID: "123", Status: domain.PaymentStatusPending}); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(keyPrefix + "123") {
		t.Fatal("pending record was cached")
	}
}

func TestStatusCacheReportsRedisErrors(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	if _, err := c.Get(context.Background(), "123"); err == nil {
		t.Fatal("expected error from closed redis")
	}
}
