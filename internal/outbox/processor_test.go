package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository/memory"
)

type fakeProducer struct {
	mu          sync.Mutex
	ProduceFunc func(ctx context.Context, key, topic string, value []byte) error
	produced    []string
}

func (f *fakeProducer) Produce(ctx context.Context, key, topic string, value []byte) error {
	if f.ProduceFunc != nil {
		if err := f.ProduceFunc(ctx, key, topic, value); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.produced = append(f.produced, topic+"/"+key)
	return nil
}

func seed(t *testing.T, store *memory.Store, msgs ...*domain.OutboxMessage) {
	t.Helper()
	for _, msg := range msgs {
		if err := store.Outbox().CreateMessageTx(context.Background(), nil, msg); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProcessBatchPublishesAndMarksSent(t *testing.T) {
	store := memory.NewStore()
	now := time.Now()
	m1, err := NewMessage(domain.AggregatePayment, "123", domain.MessagePaymentStatusChanged, "payments", map[string]string{"status": "APPROVED"}, now)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := NewMessage(domain.AggregateRegistration, "uid-1", domain.MessageRegistrationCompleted, "registrations", map[string]string{}, now.Add(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	seed(t, store, m1, m2)

	producer := &fakeProducer{}
	p := NewProcessor(store, store.Outbox(), producer, 10, time.Second, time.Second, zaptest.NewLogger(t))

	sent, err := p.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
	if len(producer.produced) != 2 || producer.produced[0] != "payments/123" {
		t.Fatalf("produced = %v", producer.produced)
	}

	pending, _ := store.Outbox().GetPendingMessages(context.Background(), nil, 10)
	if len(pending) != 0 {
		t.Fatalf("%d messages still pending", len(pending))
	}
}

func TestProcessBatchLeavesFailedMessagesPending(t *testing.T) {
	store := memory.NewStore()
	now := time.Now()
	m1, _ := NewMessage(domain.AggregatePayment, "fail", domain.MessagePaymentStatusChanged, "payments", struct{}{}, now)
	m2, _ := NewMessage(domain.AggregatePayment, "ok", domain.MessagePaymentStatusChanged, "payments", struct{}{}, now.Add(time.Millisecond))
	seed(t, store, m1, m2)

	producer := &fakeProducer{
		ProduceFunc: func(_ context.Context, key, _ string, _ []byte) error {
			if key == "fail" {
				return errors.New("broker unavailable")
			}
			return nil
		},
	}
	p := NewProcessor(store, store.Outbox(), producer, 10, time.Second, time.Second, zaptest.NewLogger(t))

	sent, err := p.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	pending, _ := store.Outbox().GetPendingMessages(context.Background(), nil, 10)
	if len(pending) != 1 || pending[0].Key != "fail" {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	p := NewProcessor(store, store.Outbox(), &fakeProducer{}, 10, 10*time.Millisecond, time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after cancel")
	}
}
