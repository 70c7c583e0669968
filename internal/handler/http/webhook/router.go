package webhook_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nutritrack/internal/app/fulfillment"
	"nutritrack/internal/wompi"
)

func RegisterRoutes(r chi.Router, path string, v *wompi.Verifier, s fulfillment.Service, l *zap.Logger) {
	handler := NewWebhookHandler(v, s, l.With(zap.String("component", "WebhookHTTPHandler")))
	r.Post(path, handler.HandleWompiEvent)
}
