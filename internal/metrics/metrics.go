// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the services and the outbox processor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook delivery outcomes.
const (
	WebhookAccepted     = "accepted"
	WebhookDuplicate    = "duplicate"
	WebhookBadSignature = "bad_signature"
	WebhookMalformed    = "malformed"
	WebhookMisconfig    = "misconfigured"
	WebhookStorageError = "storage_error"
)

var (
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutritrack_webhook_deliveries_total",
		Help: "Processor webhook calls, labeled by outcome",
	}, []string{"outcome"})

	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutritrack_payment_transitions_total",
		Help: "Payment record status changes, labeled by new status",
	}, []string{"status"})

	CodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nutritrack_registration_codes_issued_total",
		Help: "Registration codes attached to approved payments",
	})

	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nutritrack_registration_code_collisions_total",
		Help: "Generated codes rejected because they already existed",
	})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutritrack_registrations_total",
		Help: "Registration attempts, labeled by result code",
	}, []string{"result"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutritrack_outbox_published_total",
		Help: "Outbox messages handed to Kafka, labeled by topic and result",
	}, []string{"topic", "result"})

	StatusCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutritrack_status_cache_lookups_total",
		Help: "Payment status cache lookups, labeled by hit or miss",
	}, []string{"result"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutritrack_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nutritrack_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}
