package registration_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nutritrack/internal/app/registration"
)

func RegisterRoutes(r chi.Router, s registration.Service, l *zap.Logger) {
	handler := NewRegistrationHandler(s, l.With(zap.String("component", "RegistrationHTTPHandler")))

	r.Route("/api/v1/registrations", func(r chi.Router) {
		r.Post("/", handler.RegisterHandler)
	})
}
