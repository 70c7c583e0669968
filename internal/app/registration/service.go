// Package registration redeems a registration code for a new account.
package registration

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"nutritrack/internal/codes"
	"nutritrack/internal/domain"
	"nutritrack/internal/identity"
	"nutritrack/internal/metrics"
	"nutritrack/internal/outbox"
	"nutritrack/internal/repository/codes_repo"
	"nutritrack/internal/repository/outbox_repo"
	"nutritrack/internal/repository/users_repo"
	"nutritrack/internal/saga"
)

const minPasswordLength = 6

type Request struct {
	Email            string
	Password         string
	RegistrationCode string
}

type Result struct {
	UserID      string
	CustomToken string
}

type Service interface {
	// Register returns a non-nil Result together with domain.ErrTokenIssuance
	// when the account was created but no token could be minted.
	Register(ctx context.Context, req Request) (*Result, error)
}

type Config struct {
	RegistrationEventsTopic string
}

type service struct {
	transactor domain.Transactor
	codeRepo   codes_repo.CodeRepository
	userRepo   users_repo.UserRepository
	outboxRepo outbox_repo.OutboxRepository
	provider   identity.Provider
	cfg        Config
	now        func() time.Time
	logger     *zap.Logger
}

func NewService(
	transactor domain.Transactor,
	codeRepo codes_repo.CodeRepository,
	userRepo users_repo.UserRepository,
	outboxRepo outbox_repo.OutboxRepository,
	provider identity.Provider,
	cfg Config,
	logger *zap.Logger,
) Service {
	return &service{
		transactor: transactor,
		codeRepo:   codeRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		provider:   provider,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *service) Register(ctx context.Context, req Request) (*Result, error) {
	res, err := s.register(ctx, req)
	metrics.Registrations.WithLabelValues(resultLabel(err)).Inc()
	return res, err
}

func (s *service) register(ctx context.Context, req Request) (*Result, error) {
	email, code, err := validate(req)
	if err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, code); err != nil {
		return nil, err
	}

	var uid string
	redemption := saga.New("registration", s.logger).
		AddStep(saga.Step{
			Name: "create_identity",
			Action: func(ctx context.Context) error {
				var err error
				uid, err = s.provider.CreateUser(ctx, email, req.Password)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.provider.DeleteUser(ctx, uid)
			},
		}).
		AddStep(saga.Step{
			Name: "redeem_code",
			Action: func(ctx context.Context) error {
				return s.transactor.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
					return s.redeemTx(ctx, q, code, uid, email)
				})
			},
		})

	if err := redemption.Run(ctx); err != nil {
		var sagaErr *saga.Error
		if errors.As(err, &sagaErr) && domain.IsRegistrationValidation(sagaErr.Err) {
			s.logger.Info("Registration rejected", zap.String("step", sagaErr.Step), zap.Error(sagaErr.Err))
			return nil, sagaErr.Err
		}
		s.logger.Error("Registration aborted", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrAborted, err)
	}

	s.logger.Info("Registration code redeemed", zap.String("uid", uid), zap.String("code", code))

	token, err := s.provider.CustomToken(ctx, uid)
	if err != nil {
		s.logger.Error("Failed to issue token after registration", zap.String("uid", uid), zap.Error(err))
		return &Result{UserID: uid}, fmt.Errorf("%w: %w", domain.ErrTokenIssuance, err)
	}
	return &Result{UserID: uid, CustomToken: token}, nil
}

func validate(req Request) (email, code string, err error) {
	email = strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.RegistrationCode) == "" {
		return "", "", fmt.Errorf("%w: email, password and registration code are required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", fmt.Errorf("%w: email address is not valid", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return "", "", fmt.Errorf("%w: password must have at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	return email, codes.Normalize(req.RegistrationCode), nil
}

// precheck gives early, specific answers. It takes no locks; redeemTx
// repeats the checks under the row lock.
func (s *service) precheck(ctx context.Context, code string) error {
	if !codes.WellFormed(code) {
		return fmt.Errorf("registration code %q: %w", code, domain.ErrNotFound)
	}
	rc, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return checkRedeemable(rc)
}

func checkRedeemable(rc *domain.RegistrationCode) error {
	if rc.Used {
		return fmt.Errorf("registration code %s: %w", rc.Code, domain.ErrAlreadyUsed)
	}
	if rc.Status != domain.PaymentStatusApproved {
		return fmt.Errorf("registration code %s: %w", rc.Code, domain.ErrPreconditionFailed)
	}
	return nil
}

func (s *service) redeemTx(ctx context.Context, q domain.Querier, code, uid, email string) error {
	rc, err := s.codeRepo.GetByCodeForUpdateTx(ctx, q, code)
	if err != nil {
		return err
	}
	if err := checkRedeemable(rc); err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.codeRepo.MarkUsedTx(ctx, q, code, uid, now); err != nil {
		return err
	}
	if err := s.userRepo.CreateTx(ctx, q, &domain.UserAccount{
		ID:               uid,
		Email:            email,
		RegistrationCode: code,
		CreatedAt:        now,
	}); err != nil {
		return err
	}

	msg, err := outbox.NewMessage(domain.AggregateRegistration, uid, domain.MessageRegistrationCompleted, s.cfg.RegistrationEventsTopic,
		domain.RegistrationCompletedEvent{
			UserID:        uid,
			Email:         email,
			TransactionID: rc.TransactionID,
			Timestamp:     now,
		}, now)
	if err != nil {
		return err
	}
	return s.outboxRepo.CreateMessageTx(ctx, q, msg)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsRegistrationValidation(err):
		return "rejected"
	case errors.Is(err, domain.ErrTokenIssuance):
		return "token_failed"
	case errors.Is(err, domain.ErrAborted):
		return "aborted"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}
