package webhook_http

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"nutritrack/internal/app/fulfillment"
	"nutritrack/internal/domain"
	"nutritrack/internal/handler/http/respond"
	"nutritrack/internal/metrics"
	"nutritrack/internal/wompi"
)

const maxBodyBytes = 1 << 20

type WebhookHandler struct {
	verifier *wompi.Verifier
	service  fulfillment.Service
	logger   *zap.Logger
}

func NewWebhookHandler(v *wompi.Verifier, s fulfillment.Service, l *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: v, service: s, logger: l}
}

type ReceivedResponse struct {
	Received bool `json:"received"`
}

// HandleWompiEvent authenticates a processor notification before touching
// storage. Every business outcome after authentication is acknowledged with
// 200; only persistence failures return 500 so the processor retries.
func (h *WebhookHandler) HandleWompiEvent(w http.ResponseWriter, r *http.Request) {
	if !h.verifier.Configured() {
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookMisconfig).Inc()
		h.logger.Error("Webhook received but the events secret is not configured")
		respond.Error(w, h.logger, http.StatusInternalServerError, "server misconfiguration")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookMalformed).Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, h.logger, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		respond.Error(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := wompi.ParseEvent(body)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookMalformed).Inc()
		h.logger.Warn("Malformed webhook payload", zap.Error(err))
		respond.Error(w, h.logger, http.StatusBadRequest, "malformed event")
		return
	}

	computed, err := h.verifier.Verify(event)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureMismatch) {
			metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookBadSignature).Inc()
			h.logger.Warn("Webhook checksum mismatch",
				zap.String("received_checksum", event.Checksum),
				zap.String("computed_checksum", computed),
				zap.String("secret", h.verifier.MaskedSecret()),
				zap.Strings("properties", event.Properties))
			respond.Error(w, h.logger, http.StatusForbidden, "invalid checksum")
			return
		}
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookMisconfig).Inc()
		h.logger.Error("Webhook verification failed", zap.Error(err))
		respond.Error(w, h.logger, http.StatusInternalServerError, "server misconfiguration")
		return
	}

	tx, err := event.Transaction()
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookMalformed).Inc()
		h.logger.Warn("Verified webhook without a usable transaction", zap.String("event", event.Type), zap.Error(err))
		respond.Error(w, h.logger, http.StatusBadRequest, "transaction missing")
		return
	}

	outcome, err := h.service.ProcessNotification(r.Context(), fulfillment.Notification{
		EventType:   event.Type,
		Checksum:    computed,
		Transaction: *tx,
		RawEvent:    event.Raw,
	})
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookStorageError).Inc()
		h.logger.Error("Failed to persist webhook", zap.String("transaction_id", tx.ID), zap.Error(err))
		respond.Error(w, h.logger, http.StatusInternalServerError, "failed to persist event")
		return
	}

	if outcome.Duplicate {
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookDuplicate).Inc()
	} else {
		metrics.WebhookDeliveries.WithLabelValues(metrics.WebhookAccepted).Inc()
	}
	respond.JSON(w, h.logger, http.StatusOK, ReceivedResponse{Received: true})
}
