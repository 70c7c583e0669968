package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"nutritrack/internal/domain"
	"nutritrack/internal/identity/local"
	"nutritrack/internal/repository/memory"
)

type fakeProvider struct {
	CreateUserFunc  func(ctx context.Context, email, password string) (string, error)
	DeleteUserFunc  func(ctx context.Context, uid string) error
	CustomTokenFunc func(ctx context.Context, uid string) (string, error)

	deleted atomic.Int32
}

func (f *fakeProvider) CreateUser(ctx context.Context, email, password string) (string, error) {
	if f.CreateUserFunc != nil {
		return f.CreateUserFunc(ctx, email, password)
	}
	return "uid-" + email, nil
}

func (f *fakeProvider) DeleteUser(ctx context.Context, uid string) error {
	f.deleted.Add(1)
	if f.DeleteUserFunc != nil {
		return f.DeleteUserFunc(ctx, uid)
	}
	return nil
}

func (f *fakeProvider) CustomToken(ctx context.Context, uid string) (string, error) {
	if f.CustomTokenFunc != nil {
		return f.CustomTokenFunc(ctx, uid)
	}
	return "token-" + uid, nil
}

func seedCode(t *testing.T, store *memory.Store, code string, status domain.PaymentStatus) {
	t.Helper()
	err := store.Codes().CreateTx(context.Background(), nil, &domain.RegistrationCode{
		Code:          code,
		Status:        status,
		TransactionID: "tx-" + code,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func newService(t *testing.T, store *memory.Store, provider *fakeProvider) Service {
	t.Helper()
	return NewService(store, store.Codes(), store.Users(), store.Outbox(), provider,
		Config{RegistrationEventsTopic: "registration_events"}, zaptest.NewLogger(t))
}

func TestRegisterSuccess(t *testing.T) {
	store := memory.NewStore()
	seedCode(t, store, "AB12CD", domain.PaymentStatusApproved)
	svc := newService(t, store, &fakeProvider{})

	res, err := svc.Register(context.Background(), Request{Email: "ana@example.com", Password: "secret1", RegistrationCode: " ab-12 cd "})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.CustomToken != "token-uid-ana@example.com" {
		t.Errorf("token = %q", res.CustomToken)
	}

	rc, _ := store.Codes().GetByCode(context.Background(), "AB12CD")
	if !rc.Used || rc.UsedBy == nil || *rc.UsedBy != res.UserID || rc.UsedAt == nil {
		t.Errorf("code not marked used: %+v", rc)
	}
	if store.Users().Count() != 1 {
		t.Errorf("users = %d, want 1", store.Users().Count())
	}
	msgs, _ := store.Outbox().GetPendingMessages(context.Background(), nil, 10)
	if len(msgs) != 1 || msgs[0].MessageType != domain.MessageRegistrationCompleted {
		t.Errorf("outbox = %+v", msgs)
	}
}

func TestRegisterPrecheckErrors(t *testing.T) {
	store := memory.NewStore()
	seedCode(t, store, "AB12CD", domain.PaymentStatusApproved)
	seedCode(t, store, "PE12ND", domain.PaymentStatusPending)
	if err := store.Codes().MarkUsedTx(context.Background(), nil, "AB12CD", "someone", time.Now()); err != nil {
		t.Fatal(err)
	}
	provider := &fakeProvider{
		CreateUserFunc: func(context.Context, string, string) (string, error) {
			t.Error("identity must not be created when the pre-check fails")
			return "", errors.New("unexpected")
		},
	}
	svc := newService(t, store, provider)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"missing email", Request{Password: "secret1", RegistrationCode: "AB12CD"}, domain.ErrInvalidInput},
		{"bad email", Request{Email: "not-an-email", Password: "secret1", RegistrationCode: "AB12CD"}, domain.ErrInvalidInput},
		{"short password", Request{Email: "a@example.com", Password: "123", RegistrationCode: "AB12CD"}, domain.ErrInvalidInput},
		{"unknown code", Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "ZZ99ZZ"}, domain.ErrNotFound},
		{"malformed code", Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "???"}, domain.ErrNotFound},
		{"used code", Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "ab12cd"}, domain.ErrAlreadyUsed},
		{"not approved", Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "PE12ND"}, domain.ErrPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRegisterEmailTakenPropagates(t *testing.T) {
	store := memory.NewStore()
	seedCode(t, store, "AB12CD", domain.PaymentStatusApproved)
	provider := &fakeProvider{
		CreateUserFunc: func(context.Context, string, string) (string, error) {
			return "", fmt.Errorf("exists: %w", domain.ErrEmailTaken)
		},
	}
	svc := newService(t, store, provider)

	_, err := svc.Register(context.Background(), Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "AB12CD"})
	if !errors.Is(err, domain.ErrEmailTaken) || errors.Is(err, domain.ErrAborted) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	if provider.deleted.Load() != 0 {
		t.Fatal("nothing was created, nothing should be compensated")
	}
}

func TestRegisterCompensatesWhenCodeTakenMidway(t *testing.T) {
	store := memory.NewStore()
	seedCode(t, store, "AB12CD", domain.PaymentStatusApproved)

	var deletedUID string
	provider := &fakeProvider{
		CreateUserFunc: func(ctx context.Context, email, _ string) (string, error) {
			// Another registration wins between the pre-check and the transaction.
			if err := store.Codes().MarkUsedTx(ctx, nil, "AB12CD", "winner", time.Now()); err != nil {
				t.Fatal(err)
			}
			return "uid-loser", nil
		},
		DeleteUserFunc: func(_ context.Context, uid string) error {
			deletedUID = uid
			return nil
		},
	}
	svc := newService(t, store, provider)

	_, err := svc.Register(context.Background(), Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "AB12CD"})
	if !errors.Is(err, domain.ErrAlreadyUsed) {
		t.Fatalf("err = %v, want ErrAlreadyUsed", err)
	}
	if deletedUID != "uid-loser" {
		t.Fatalf("compensation deleted %q, want uid-loser", deletedUID)
	}
	if store.Users().Count() != 0 {
		t.Fatal("user account created for losing registration")
	}
}

func TestRegisterStorageFailureAborts(t *testing.T) {
	store := memory.NewStore()
	seedCode(t, store, "AB12CD", domain.PaymentStatusApproved)
	provider := &fakeProvider{}
	svc := NewService(failingTransactor{}, store.Codes(), store.Users(), store.Outbox(), provider,
		Config{RegistrationEventsTopic: "registration_events"}, zaptest.NewLogger(t))

	_, err := svc.Register(context.Background(), Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "AB12CD"})
	if !errors.Is(err, domain.ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if provider.deleted.Load() != 1 {
		t.Fatalf("identity deleted %d times, want 1", provider.deleted.Load())
	}
}

type failingTransactor struct{}

func (failingTransactor) WithinTx(context.Context, func(context.Context, domain.Querier) error) error {
	return errors.New("connection refused")
}

func TestRegisterTokenFailureKeepsAccount(t *testing.T) {
	store := memory.NewStore()
	seedCode(t, store, "AB12CD", domain.PaymentStatusApproved)
	provider := &fakeProvider{
		CustomTokenFunc: func(context.Context, string) (string, error) {
			return "", errors.New("signer unavailable")
		},
	}
	svc := newService(t, store, provider)

	res, err := svc.Register(context.Background(), Request{Email: "a@example.com", Password: "secret1", RegistrationCode: "AB12CD"})
	if !errors.Is(err, domain.ErrTokenIssuance) {
		t.Fatalf("err = %v, want ErrTokenIssuance", err)
	}
	if res == nil || res.UserID == "" {
		t.Fatalf("result = %+v", res)
	}
	if provider.deleted.Load() != 0 {
		t.Fatal("token failure must not delete the identity")
	}
	rc, _ := store.Codes().GetByCode(context.Background(), "AB12CD")
	if !rc.Used {
		t.Fatal("code was released after token failure")
	}
}

func TestConcurrentRedemptionCreatesOneAccount(t *testing.T) {
	store := memory.NewStore()
	seedCode(t, store, "AB12CD", domain.PaymentStatusApproved)
	provider := local.New(store.Identities(), "test-secret", time.Hour, zaptest.NewLogger(t))
	svc := NewService(store, store.Codes(), store.Users(), store.Outbox(), provider,
		Config{RegistrationEventsTopic: "registration_events"}, zaptest.NewLogger(t))

	const n = 5
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		errs      = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(context.Background(), Request{
				Email:            fmt.Sprintf("user%d@example.com", i),
				Password:         "secret1",
				RegistrationCode: "AB12CD",
			})
			if err == nil {
				successes.Add(1)
				return
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	if successes.Load() != 1 {
		t.Fatalf("successes = %d, want 1", successes.Load())
	}
	for err := range errs {
		if !errors.Is(err, domain.ErrAlreadyUsed) && !errors.Is(err, domain.ErrAborted) {
			t.Errorf("loser got %v, want AlreadyUsed or Aborted", err)
		}
	}
	if store.Users().Count() != 1 {
		t.Fatalf("users = %d, want 1", store.Users().Count())
	}

	remaining := 0
	for i := 0; i < n; i++ {
		if _, err := store.Identities().GetByEmail(context.Background(), fmt.Sprintf("user%d@example.com", i)); err == nil {
			remaining++
		}
	}
	if remaining != 1 {
		t.Fatalf("identities left = %d, want 1", remaining)
	}
}
