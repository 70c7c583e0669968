// Package status answers payment status polls from the post-checkout page.
package status

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"nutritrack/internal/domain"
	"nutritrack/internal/metrics"
)

type PaymentReader interface {
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRecord, error)
	GetLatestByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error)
}

type Cache interface {
	Get(ctx context.Context, transactionID string) (*domain.PaymentRecord, error)
	Set(ctx context.Context, rec *domain.PaymentRecord) error
}

type Service interface {
	ByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRecord, error)
	ByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error)
}

type service struct {
	payments PaymentReader
	cache    Cache
	logger   *zap.Logger
}

// NewService builds the status service. cache may be nil.
func NewService(payments PaymentReader, cache Cache, logger *zap.Logger) Service {
	return &service{payments: payments, cache: cache, logger: logger}
}

func (s *service) ByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRecord, error) {
	if s.cache != nil {
		rec, err := s.cache.Get(ctx, transactionID)
		if err != nil {
			s.logger.Warn("Status cache read failed", zap.String("transaction_id", transactionID), zap.Error(err))
		} else if rec != nil {
			metrics.StatusCacheLookups.WithLabelValues("hit").Inc()
			return rec, nil
		}
		metrics.StatusCacheLookups.WithLabelValues("miss").Inc()
	}

	rec, err := s.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, wrap(err)
	}
	s.remember(ctx, rec)
	return rec, nil
}

// ByReference is never served from the cache: several transactions may share
// a reference and the newest one wins.
func (s *service) ByReference(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	rec, err := s.payments.GetLatestByReference(ctx, reference)
	if err != nil {
		return nil, wrap(err)
	}
	s.remember(ctx, rec)
	return rec, nil
}

func (s *service) remember(ctx context.Context, rec *domain.PaymentRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, rec); err != nil {
		s.logger.Warn("Status cache write failed", zap.String("transaction_id", rec.TransactionID), zap.Error(err))
	}
}

func wrap(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}
