package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"nutritrack/internal/domain"
)

type PaymentRepository struct{ s *Store }

func (r *PaymentRepository) CreateIfAbsentTx(_ context.Context, q domain.Querier, rec *domain.PaymentRecord) (bool, error) {
	defer r.s.lock(q)()
	if _, ok := r.s.state.payments[rec.TransactionID]; ok {
		return false, nil
	}
	stored := clonePayment(*rec)
	stored.RegistrationCode = nil
	r.s.state.payments[rec.TransactionID] = stored
	return true, nil
}

func (r *PaymentRepository) GetForUpdateTx(_ context.Context, q domain.Querier, transactionID string) (*domain.PaymentRecord, error) {
	defer r.s.lock(q)()
	return r.get(transactionID)
}

func (r *PaymentRepository) UpdateTx(_ context.Context, q domain.Querier, rec *domain.PaymentRecord) error {
	defer r.s.lock(q)()
	current, ok := r.s.state.payments[rec.TransactionID]
	if !ok {
		return fmt.Errorf("payment record %s for update: %w", rec.TransactionID, domain.ErrNotFound)
	}
	next := clonePayment(*rec)
	if current.Reference != nil {
		next.Reference = current.Reference
	}
	if current.RegistrationCode != nil {
		next.RegistrationCode = current.RegistrationCode
	}
	if len(next.RawEvent) == 0 {
		next.RawEvent = current.RawEvent
	}
	next.CreatedAt = current.CreatedAt
	r.s.state.payments[rec.TransactionID] = next
	return nil
}

func (r *PaymentRepository) GetByTransactionID(_ context.Context, transactionID string) (*domain.PaymentRecord, error) {
	defer r.s.lock(nil)()
	return r.get(transactionID)
}

func (r *PaymentRepository) GetLatestByReference(_ context.Context, reference string) (*domain.PaymentRecord, error) {
	defer r.s.lock(nil)()
	var latest *domain.PaymentRecord
	for _, rec := range r.s.state.payments {
		if rec.Reference == nil || *rec.Reference != reference {
			continue
		}
		if latest == nil || rec.UpdatedAt.After(latest.UpdatedAt) {
			c := clonePayment(rec)
			latest = &c
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("payment record with reference %s: %w", reference, domain.ErrNotFound)
	}
	return latest, nil
}

func (r *PaymentRepository) get(transactionID string) (*domain.PaymentRecord, error) {
	rec, ok := r.s.state.payments[transactionID]
	if !ok {
		return nil, fmt.Errorf("payment record %s: %w", transactionID, domain.ErrNotFound)
	}
	c := clonePayment(rec)
	return &c, nil
}

type CodeRepository struct{ s *Store }

func (r *CodeRepository) CreateTx(_ context.Context, q domain.Querier, code *domain.RegistrationCode) error {
	defer r.s.lock(q)()
	if _, ok := r.s.state.codes[code.Code]; ok {
		return domain.ErrCodeCollision
	}
	for _, existing := range r.s.state.codes {
		if existing.TransactionID == code.TransactionID {
			return fmt.Errorf("transaction %s already has a registration code", code.TransactionID)
		}
	}
	stored := cloneCode(*code)
	stored.Used, stored.UsedBy, stored.UsedAt = false, nil, nil
	r.s.state.codes[code.Code] = stored
	return nil
}

func (r *CodeRepository) GetByCodeForUpdateTx(_ context.Context, q domain.Querier, code string) (*domain.RegistrationCode, error) {
	defer r.s.lock(q)()
	return r.get(code)
}

func (r *CodeRepository) MarkUsedTx(_ context.Context, q domain.Querier, code, userID string, at time.Time) error {
	defer r.s.lock(q)()
	rc, ok := r.s.state.codes[code]
	if !ok {
		return fmt.Errorf("registration code %s: %w", code, domain.ErrNotFound)
	}
	if rc.Used {
		return fmt.Errorf("registration code %s: %w", code, domain.ErrAlreadyUsed)
	}
	rc.Used = true
	rc.UsedBy = &userID
	rc.UsedAt = &at
	r.s.state.codes[code] = rc
	return nil
}

func (r *CodeRepository) GetByCode(_ context.Context, code string) (*domain.RegistrationCode, error) {
	defer r.s.lock(nil)()
	return r.get(code)
}

func (r *CodeRepository) get(code string) (*domain.RegistrationCode, error) {
	rc, ok := r.s.state.codes[code]
	if !ok {
		return nil, fmt.Errorf("registration code %s: %w", code, domain.ErrNotFound)
	}
	c := cloneCode(rc)
	return &c, nil
}

type UserRepository struct{ s *Store }

func (r *UserRepository) CreateTx(_ context.Context, q domain.Querier, user *domain.UserAccount) error {
	defer r.s.lock(q)()
	for _, existing := range r.s.state.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("user with email %s: %w", user.Email, domain.ErrEmailTaken)
		}
		if existing.RegistrationCode == user.RegistrationCode {
			return fmt.Errorf("user for code %s: %w", user.RegistrationCode, domain.ErrAlreadyUsed)
		}
	}
	if _, ok := r.s.state.users[user.ID]; ok {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	r.s.state.users[user.ID] = *user
	return nil
}

func (r *UserRepository) Count() int {
	defer r.s.lock(nil)()
	return len(r.s.state.users)
}

type DeliveryRepository struct{ s *Store }

func (r *DeliveryRepository) RecordTx(_ context.Context, q domain.Querier, delivery *domain.WebhookDelivery) (bool, error) {
	defer r.s.lock(q)()
	if _, ok := r.s.state.deliveries[delivery.Checksum]; ok {
		return true, nil
	}
	stored := *delivery
	stored.Payload = slices.Clone(delivery.Payload)
	r.s.state.deliveries[delivery.Checksum] = stored
	return false, nil
}

type OutboxRepository struct{ s *Store }

func (r *OutboxRepository) CreateMessageTx(_ context.Context, q domain.Querier, msg *domain.OutboxMessage) error {
	defer r.s.lock(q)()
	if _, ok := r.s.state.outbox[msg.ID]; ok {
		return fmt.Errorf("outbox message %s already exists", msg.ID)
	}
	stored := *msg
	stored.Payload = slices.Clone(msg.Payload)
	r.s.state.outbox[msg.ID] = stored
	return nil
}

func (r *OutboxRepository) GetPendingMessages(_ context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	defer r.s.lock(q)()
	var pending []domain.OutboxMessage
	for _, msg := range r.s.state.outbox {
		if msg.Status == domain.OutboxStatusPending {
			pending = append(pending, msg)
		}
	}
	slices.SortFunc(pending, func(a, b domain.OutboxMessage) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *OutboxRepository) UpdateMessageStatusTx(_ context.Context, q domain.Querier, id string, status domain.OutboxMessageStatus) error {
	defer r.s.lock(q)()
	msg, ok := r.s.state.outbox[id]
	if !ok {
		return fmt.Errorf("outbox message %s: %w", id, domain.ErrNotFound)
	}
	msg.Status = status
	msg.SentAt = nil
	if status == domain.OutboxStatusSent {
		now := time.Now().UTC()
		msg.SentAt = &now
	}
	r.s.state.outbox[id] = msg
	return nil
}

type IdentityRepository struct{ s *Store }

func (r *IdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	defer r.s.lock(nil)()
	for _, existing := range r.s.state.identities {
		if strings.EqualFold(existing.Email, identity.Email) {
			return fmt.Errorf("identity %s: %w", identity.Email, domain.ErrEmailTaken)
		}
	}
	r.s.state.identities[identity.UID] = *identity
	return nil
}

func (r *IdentityRepository) Delete(_ context.Context, uid string) error {
	defer r.s.lock(nil)()
	delete(r.s.state.identities, uid)
	return nil
}

func (r *IdentityRepository) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	defer r.s.lock(nil)()
	for _, identity := range r.s.state.identities {
		if strings.EqualFold(identity.Email, email) {
			return &identity, nil
		}
	}
	return nil, fmt.Errorf("identity %s: %w", email, domain.ErrNotFound)
}

func clonePayment(rec domain.PaymentRecord) domain.PaymentRecord {
	if rec.Reference != nil {
		ref := *rec.Reference
		rec.Reference = &ref
	}
	if rec.RegistrationCode != nil {
		code := *rec.RegistrationCode
		rec.RegistrationCode = &code
	}
	rec.RawEvent = slices.Clone(rec.RawEvent)
	return rec
}

func cloneCode(rc domain.RegistrationCode) domain.RegistrationCode {
	if rc.UsedBy != nil {
		by := *rc.UsedBy
		rc.UsedBy = &by
	}
	if rc.UsedAt != nil {
		at := *rc.UsedAt
		rc.UsedAt = &at
	}
	return rc
}
