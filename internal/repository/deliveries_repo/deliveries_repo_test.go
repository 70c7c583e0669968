package deliveries_repo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"nutritrack/internal/domain"
)

func TestRecordTxDetectsDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewDeliveryRepository(db)
	delivery := &domain.WebhookDelivery{
		Checksum:      "abc",
		EventType:     "transaction.updated",
		TransactionID: "123",
		Status:        domain.PaymentStatusApproved,
		Payload:       []byte(`{}`),
		ReceivedAt:    time.Now(),
	}

	insert := regexp.QuoteMeta("ON CONFLICT (checksum) DO NOTHING")
	mock.ExpectExec(insert).
		WithArgs("abc", "transaction.updated", "123", "APPROVED", "{}", delivery.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 0))

	dup, err := repo.RecordTx(context.Background(), db, delivery)
	if err != nil || dup {
		t.Fatalf("first delivery: dup=%v err=%v", dup, err)
	}
	dup, err = repo.RecordTx(context.Background(), db, delivery)
	if err != nil || !dup {
		t.Fatalf("redelivery: dup=%v err=%v", dup, err)
	}
}

func TestRecordTxKeepsPayloadVerbatim(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewDeliveryRepository(db)
	body := `{"data":{"transaction":{"id":"123","reference":"a\u0000b"}}}`
	delivery := &domain.WebhookDelivery{
		Checksum:      "def",
		TransactionID: "123",
		Status:        domain.PaymentStatusApproved,
		Payload:       []byte(body),
		ReceivedAt:    time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO webhook_deliveries")).
		WithArgs("def", "", "123", "APPROVED", body, delivery.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := repo.RecordTx(context.Background(), db, delivery); err != nil {
		t.Fatalf("RecordTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
