package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nutritrack/internal/app/checkout"
	"nutritrack/internal/app/fulfillment"
	"nutritrack/internal/app/registration"
	"nutritrack/internal/app/status"
	"nutritrack/internal/config"
	"nutritrack/internal/handler/http/accesslog"
	payments_http "nutritrack/internal/handler/http/payments"
	registration_http "nutritrack/internal/handler/http/registration"
	webhook_http "nutritrack/internal/handler/http/webhook"
	"nutritrack/internal/metrics"
	"nutritrack/internal/wompi"
)

type services struct {
	fulfillment  fulfillment.Service
	registration registration.Service
	status       status.Service
	checkout     *checkout.Service
	verifier     *wompi.Verifier
}

func newRouter(cfg *config.Config, svc services, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accesslog.Middleware(logger.With(zap.String("component", "AccessLog"))))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	webhook_http.RegisterRoutes(r, cfg.WompiWebhookPath, svc.verifier, svc.fulfillment, logger)
	registration_http.RegisterRoutes(r, svc.registration, logger)
	payments_http.RegisterRoutes(r, svc.status, svc.checkout, logger)

	return r
}
