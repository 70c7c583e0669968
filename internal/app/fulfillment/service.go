// Package fulfillment applies verified processor notifications to payment
// records and attaches a registration code once a payment is approved.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nutritrack/internal/codes"
	"nutritrack/internal/domain"
	"nutritrack/internal/metrics"
	"nutritrack/internal/outbox"
	"nutritrack/internal/repository/codes_repo"
	"nutritrack/internal/repository/deliveries_repo"
	"nutritrack/internal/repository/outbox_repo"
	"nutritrack/internal/repository/payments_repo"
	"nutritrack/internal/wompi"
)

// Notification is one verified processor delivery.
type Notification struct {
	EventType   string
	Checksum    string
	Transaction wompi.Transaction
	RawEvent    []byte
}

type Outcome struct {
	Record         *domain.PaymentRecord
	PreviousStatus domain.PaymentStatus
	StatusChanged  bool
	CodeIssued     bool
	Duplicate      bool
}

type Service interface {
	ProcessNotification(ctx context.Context, n Notification) (*Outcome, error)
}

type Config struct {
	MaxCodeAttempts    int
	PaymentEventsTopic string
}

type service struct {
	transactor   domain.Transactor
	paymentRepo  payments_repo.PaymentRepository
	codeRepo     codes_repo.CodeRepository
	deliveryRepo deliveries_repo.DeliveryRepository
	outboxRepo   outbox_repo.OutboxRepository
	generator    codes.Generator
	cfg          Config
	now          func() time.Time
	logger       *zap.Logger
}

func NewService(
	transactor domain.Transactor,
	paymentRepo payments_repo.PaymentRepository,
	codeRepo codes_repo.CodeRepository,
	deliveryRepo deliveries_repo.DeliveryRepository,
	outboxRepo outbox_repo.OutboxRepository,
	generator codes.Generator,
	cfg Config,
	logger *zap.Logger,
) Service {
	if cfg.MaxCodeAttempts < 1 {
		cfg.MaxCodeAttempts = 1
	}
	return &service{
		transactor:   transactor,
		paymentRepo:  paymentRepo,
		codeRepo:     codeRepo,
		deliveryRepo: deliveryRepo,
		outboxRepo:   outboxRepo,
		generator:    generator,
		cfg:          cfg,
		now:          time.Now,
		logger:       logger,
	}
}

// ProcessNotification upserts the record keyed by transaction id and, inside
// the same transaction, issues at most one code for it. Concurrent deliveries
// for one transaction serialise on the record's row lock.
func (s *service) ProcessNotification(ctx context.Context, n Notification) (*Outcome, error) {
	var out *Outcome
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		out, err = s.processTx(ctx, q, n)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to apply payment notification",
			zap.String("transaction_id", n.Transaction.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	if out.StatusChanged {
		metrics.PaymentTransitions.WithLabelValues(string(out.Record.Status)).Inc()
	}
	if out.CodeIssued {
		metrics.CodesIssued.Inc()
	}
	s.logger.Info("Payment notification applied",
		zap.String("transaction_id", out.Record.TransactionID),
		zap.String("event", n.EventType),
		zap.String("previous_status", string(out.PreviousStatus)),
		zap.String("status", string(out.Record.Status)),
		zap.Bool("code_issued", out.CodeIssued),
		zap.Bool("duplicate", out.Duplicate))
	return out, nil
}

func (s *service) processTx(ctx context.Context, q domain.Querier, n Notification) (*Outcome, error) {
	now := s.now().UTC()
	incoming := domain.NormalizePaymentStatus(n.Transaction.Status)

	duplicate, err := s.deliveryRepo.RecordTx(ctx, q, &domain.WebhookDelivery{
		Checksum:      n.Checksum,
		EventType:     n.EventType,
		TransactionID: n.Transaction.ID,
		Status:        incoming,
		Payload:       n.RawEvent,
		ReceivedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	created, err := s.paymentRepo.CreateIfAbsentTx(ctx, q, &domain.PaymentRecord{
		TransactionID: n.Transaction.ID,
		Reference:     n.Transaction.Reference,
		Status:        incoming,
		AmountInCents: n.Transaction.AmountInCents,
		EventType:     n.EventType,
		RawEvent:      n.RawEvent,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	rec, err := s.paymentRepo.GetForUpdateTx(ctx, q, n.Transaction.ID)
	if err != nil {
		return nil, err
	}

	previous := rec.Status
	if created {
		previous = ""
	}
	next := previous.Transition(incoming)
	// A terminal record is frozen; only a delivery that determines the
	// resulting status may replace the stored event.
	applied := !previous.IsTerminal() && next == incoming

	if applied {
		rec.Status = next
		rec.EventType = n.EventType
		rec.RawEvent = n.RawEvent
		if n.Transaction.AmountInCents != 0 {
			rec.AmountInCents = n.Transaction.AmountInCents
		}
		if rec.Reference == nil {
			rec.Reference = n.Transaction.Reference
		}
	}

	codeIssued := false
	if rec.Status == domain.PaymentStatusApproved && !rec.HasCode() {
		code, err := s.issueCodeTx(ctx, q, rec.TransactionID, now)
		if err != nil {
			return nil, err
		}
		rec.RegistrationCode = &code
		codeIssued = true
	}

	if applied || codeIssued {
		rec.UpdatedAt = now
		if err := s.paymentRepo.UpdateTx(ctx, q, rec); err != nil {
			return nil, err
		}
	}

	statusChanged := rec.Status != previous
	if statusChanged || codeIssued {
		if err := s.enqueueStatusEvent(ctx, q, rec, previous, codeIssued, now); err != nil {
			return nil, err
		}
	}

	return &Outcome{
		Record:         rec,
		PreviousStatus: previous,
		StatusChanged:  statusChanged,
		CodeIssued:     codeIssued,
		Duplicate:      duplicate,
	}, nil
}

func (s *service) issueCodeTx(ctx context.Context, q domain.Querier, transactionID string, now time.Time) (string, error) {
	for attempt := 1; attempt <= s.cfg.MaxCodeAttempts; attempt++ {
		code := s.generator.Generate()
		err := s.codeRepo.CreateTx(ctx, q, &domain.RegistrationCode{
			Code:          code,
			Status:        domain.PaymentStatusApproved,
			TransactionID: transactionID,
			CreatedAt:     now,
		})
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, domain.ErrCodeCollision) {
			return "", err
		}
		metrics.CodeCollisions.Inc()
		s.logger.Warn("Registration code collision, drawing another",
			zap.String("transaction_id", transactionID),
			zap.Int("attempt", attempt))
	}
	return "", fmt.Errorf("transaction %s after %d attempts: %w", transactionID, s.cfg.MaxCodeAttempts, domain.ErrCodesExhausted)
}

func (s *service) enqueueStatusEvent(ctx context.Context, q domain.Querier, rec *domain.PaymentRecord, previous domain.PaymentStatus, codeIssued bool, now time.Time) error {
	event := domain.PaymentStatusChangedEvent{
		TransactionID:  rec.TransactionID,
		PreviousStatus: previous,
		Status:         rec.Status,
		AmountInCents:  rec.AmountInCents,
		CodeIssued:     codeIssued,
		Timestamp:      now,
	}
	if rec.Reference != nil {
		event.Reference = *rec.Reference
	}
	msg, err := outbox.NewMessage(domain.AggregatePayment, rec.TransactionID, domain.MessagePaymentStatusChanged, s.cfg.PaymentEventsTopic, event, now)
	if err != nil {
		return err
	}
	return s.outboxRepo.CreateMessageTx(ctx, q, msg)
}
