package payments_repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"nutritrack/internal/domain"
)

var recordColumns = []string{"transaction_id", "reference", "status", "registration_code", "amount_in_cents", "event_type", "raw_event", "created_at", "updated_at"}

func newMock(t *testing.T) (*paymentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPaymentRepository(db), mock
}

func TestCreateIfAbsentTx(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	ref := "nutritrack-1-abc"
	rec := &domain.PaymentRecord{
		TransactionID: "123",
		Reference:     &ref,
		Status:        domain.PaymentStatusPending,
		AmountInCents: 4000000,
		EventType:     "transaction.updated",
		RawEvent:      []byte(`{"event":"transaction.updated"}`),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	insert := regexp.QuoteMeta("ON CONFLICT (transaction_id) DO NOTHING")
	mock.ExpectExec(insert).
		WithArgs("123", ref, "PENDING", int64(4000000), "transaction.updated", `{"event":"transaction.updated"}`, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsentTx(context.Background(), repo.db, rec)
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}
	created, err = repo.CreateIfAbsentTx(context.Background(), repo.db, rec)
	if err != nil || created {
		t.Fatalf("second insert: created=%v err=%v", created, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetForUpdateTxScansNullableColumns(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_records WHERE transaction_id = $1 FOR UPDATE")).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("123", nil, "APPROVED", "AB12CD", int64(100), "transaction.updated", nil, now, now))

	rec, err := repo.GetForUpdateTx(context.Background(), repo.db, "123")
	if err != nil {
		t.Fatalf("GetForUpdateTx: %v", err)
	}
	if rec.Reference != nil {
		t.Errorf("Reference = %v, want nil", *rec.Reference)
	}
	if !rec.HasCode() || *rec.RegistrationCode != "AB12CD" {
		t.Errorf("RegistrationCode = %v", rec.RegistrationCode)
	}
	if rec.Status != domain.PaymentStatusApproved {
		t.Errorf("Status = %s", rec.Status)
	}
	if rec.RawEvent != nil {
		t.Errorf("RawEvent = %s, want nil", rec.RawEvent)
	}
}

func TestGetByTransactionIDNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_records WHERE transaction_id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	_, err := repo.GetByTransactionID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTxKeepsExistingCode(t *testing.T) {
	repo, mock := newMock(t)
	code := "AB12CD"
	rec := &domain.PaymentRecord{
		TransactionID:    "123",
		Status:           domain.PaymentStatusApproved,
		RegistrationCode: &code,
		UpdatedAt:        time.Now(),
	}
	mock.ExpectExec(regexp.QuoteMeta("registration_code = COALESCE(registration_code, $4)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateTx(context.Background(), repo.db, rec); err != nil {
		t.Fatalf("UpdateTx: %v", err)
	}
	if err := repo.UpdateTx(context.Background(), repo.db, rec); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("UpdateTx on missing row: %v", err)
	}
}

func TestRawEventStoredVerbatim(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	body := `{"data":{"transaction":{"id":"123","reference":"a\u0000b"}}}`
	rec := &domain.PaymentRecord{
		TransactionID: "123",
		Status:        domain.PaymentStatusApproved,
		EventType:     "transaction.updated",
		RawEvent:      []byte(body),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_records")).
		WithArgs("123", nil, "APPROVED", int64(0), "transaction.updated", body, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_records")).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("123", nil, "APPROVED", nil, int64(0), "transaction.updated", body, now, now))

	if _, err := repo.CreateIfAbsentTx(context.Background(), repo.db, rec); err != nil {
		t.Fatalf("CreateIfAbsentTx: %v", err)
	}
	got, err := repo.GetByTransactionID(context.Background(), "123")
	if err != nil {
		t.Fatalf("GetByTransactionID: %v", err)
	}
	if string(got.RawEvent) != body {
		t.Fatalf("RawEvent = %s, want %s", got.RawEvent, body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
