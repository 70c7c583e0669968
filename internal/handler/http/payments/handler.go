package payments_http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nutritrack/internal/app/checkout"
	"nutritrack/internal/app/status"
	"nutritrack/internal/domain"
	"nutritrack/internal/handler/http/respond"
)

type PaymentHandler struct {
	status   status.Service
	checkout *checkout.Service
	logger   *zap.Logger
}

func NewPaymentHandler(s status.Service, c *checkout.Service, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{status: s, checkout: c, logger: l}
}

// PaymentResponse is what the post-checkout page polls. The raw processor
// event stays server side.
type PaymentResponse struct {
	TransactionID    string  `json:"transactionId"`
	Reference        *string `json:"reference,omitempty"`
	Status           string  `json:"status"`
	RegistrationCode *string `json:"registrationCode,omitempty"`
	AmountInCents    int64   `json:"amountInCents"`
	UpdatedAt        string  `json:"updatedAt"`
}

func toResponse(rec *domain.PaymentRecord) PaymentResponse {
	resp := PaymentResponse{
		TransactionID: rec.TransactionID,
		Reference:     rec.Reference,
		Status:        string(rec.Status),
		AmountInCents: rec.AmountInCents,
		UpdatedAt:     rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if rec.Status == domain.PaymentStatusApproved && rec.HasCode() {
		resp.RegistrationCode = rec.RegistrationCode
	}
	return resp
}

func (h *PaymentHandler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	transactionID := strings.TrimSpace(chi.URLParam(r, "transactionId"))
	if transactionID == "" {
		respond.Error(w, h.logger, http.StatusBadRequest, "transaction id is required")
		return
	}

	rec, err := h.status.ByTransactionID(r.Context(), transactionID)
	if err != nil {
		h.writeLookupError(w, err, zap.String("transaction_id", transactionID))
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, toResponse(rec))
}

func (h *PaymentHandler) FindPaymentHandler(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		respond.Error(w, h.logger, http.StatusBadRequest, "reference query parameter is required")
		return
	}

	rec, err := h.status.ByReference(r.Context(), reference)
	if err != nil {
		h.writeLookupError(w, err, zap.String("reference", reference))
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, toResponse(rec))
}

func (h *PaymentHandler) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	session := h.checkout.NewSession()
	h.logger.Info("Checkout session created", zap.String("reference", session.Reference))
	respond.JSON(w, h.logger, http.StatusCreated, session)
}

func (h *PaymentHandler) writeLookupError(w http.ResponseWriter, err error, field zap.Field) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respond.Error(w, h.logger, http.StatusNotFound, "payment not found")
	case errors.Is(err, domain.ErrStorage):
		h.logger.Error("Payment lookup failed", field, zap.Error(err))
		respond.Error(w, h.logger, http.StatusServiceUnavailable, domain.ErrStorage.Error())
	default:
		h.logger.Error("Payment lookup failed", field, zap.Error(err))
		respond.Error(w, h.logger, http.StatusInternalServerError, "internal server error")
	}
}
