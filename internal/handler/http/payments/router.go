package payments_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nutritrack/internal/app/checkout"
	"nutritrack/internal/app/status"
)

func RegisterRoutes(r chi.Router, s status.Service, c *checkout.Service, l *zap.Logger) {
	handler := NewPaymentHandler(s, c, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("nutritrack is healthy"))
		})
	})

	r.Post("/api/v1/checkout", handler.CreateCheckoutHandler)

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Get("/", handler.FindPaymentHandler)
		r.Get("/{transactionId}", handler.GetPaymentHandler)
	})
}
