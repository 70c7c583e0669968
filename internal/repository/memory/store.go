// Package memory keeps every repository in process memory. Transactions are
// serialised by a single mutex and rolled back by restoring a snapshot, which
// gives the same observable isolation as the row locks the Postgres
// repositories rely on.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"sync"

	"nutritrack/internal/domain"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type state struct {
	payments   map[string]domain.PaymentRecord
	codes      map[string]domain.RegistrationCode
	users      map[string]domain.UserAccount
	deliveries map[string]domain.WebhookDelivery
	outbox     map[string]domain.OutboxMessage
	identities map[string]domain.Identity
}

func newState() state {
	return state{
		payments:   make(map[string]domain.PaymentRecord),
		codes:      make(map[string]domain.RegistrationCode),
		users:      make(map[string]domain.UserAccount),
		deliveries: make(map[string]domain.WebhookDelivery),
		outbox:     make(map[string]domain.OutboxMessage),
		identities: make(map[string]domain.Identity),
	}
}

func (s state) clone() state {
	return state{
		payments:   maps.Clone(s.payments),
		codes:      maps.Clone(s.codes),
		users:      maps.Clone(s.users),
		deliveries: maps.Clone(s.deliveries),
		outbox:     maps.Clone(s.outbox),
		identities: maps.Clone(s.identities),
	}
}

type Store struct {
	mu    sync.Mutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// tx is the Querier handed to functions run by WithinTx. It only marks the
// call as transactional; the memory repositories never run SQL through it.
type tx struct {
	store *Store
}

func (t *tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (t *tx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (t *tx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	if err := fn(ctx, &tx{store: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// lock acquires the store mutex unless q is a transaction of this store,
// whose caller already holds it.
func (s *Store) lock(q domain.Querier) func() {
	if t, ok := q.(*tx); ok && t.store == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Payments() *PaymentRepository { return &PaymentRepository{s} }
func (s *Store) Codes() *CodeRepository { return &CodeRepository{s} }
func (s *Store) Users() *UserRepository { return &UserRepository{s} }
func (s *Store) Deliveries() *DeliveryRepository { return &DeliveryRepository{s} }
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{s} }
func (s *Store) Identities() *IdentityRepository { return &IdentityRepository{s} }
