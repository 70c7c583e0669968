package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"nutritrack/internal/app/checkout"
	"nutritrack/internal/app/fulfillment"
	"nutritrack/internal/app/registration"
	"nutritrack/internal/app/status"
	"nutritrack/internal/codes"
	"nutritrack/internal/config"
	"nutritrack/internal/identity/local"
	"nutritrack/internal/repository/memory"
	"nutritrack/internal/wompi"
)

const samplePayload = `{"event":"transaction.updated","data":{"transaction":{"id":"123","status":"APPROVED","amount_in_cents":4000000}},"signature":{"checksum":"x","properties":["transaction.id","transaction.status","transaction.amount_in_cents"]},"timestamp":1530291411}`

func TestSignCommand(t *testing.T) {
	t.Setenv("WOMPI_EVENT_SECRET", "prod_events_secret")
	t.Setenv("JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(samplePayload), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := signCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--file", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sign: %v", err)
	}

	ev, err := wompi.ParseEvent([]byte(samplePayload))
	if err != nil {
		t.Fatal(err)
	}
	want := wompi.NewVerifier("prod_events_secret").Checksum(ev)
	if got := strings.TrimSpace(out.String()); got != want {
		t.Fatalf("checksum = %q, want %q", got, want)
	}
}

func TestSignCommandRequiresSecret(t *testing.T) {
	t.Setenv("WOMPI_EVENT_SECRET", "")
	cmd := signCmd()
	cmd.SetIn(strings.NewReader(samplePayload))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error without a secret")
	}
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return testRouterWithLogger(t, zaptest.NewLogger(t))
}

func testRouterWithLogger(t *testing.T, logger *zap.Logger) http.Handler {
	t.Helper()
	store := memory.NewStore()
	co, err := checkout.NewService("https://checkout.wompi.co/l/test", "http://localhost:3000", "nutritrack")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		WompiWebhookPath:   "/hooks/payments",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
	svc := services{
		fulfillment: fulfillment.NewService(store, store.Payments(), store.Codes(), store.Deliveries(), store.Outbox(),
			codes.NewRandomGenerator(), fulfillment.Config{MaxCodeAttempts: 3}, logger),
		registration: registration.NewService(store, store.Codes(), store.Users(), store.Outbox(),
			local.New(store.Identities(), "s", 0, logger), registration.Config{}, logger),
		status:   status.NewService(store.Payments(), nil, logger),
		checkout: co,
		verifier: wompi.NewVerifier(""),
	}
	return newRouter(cfg, svc, logger)
}

func TestRouterMountsConfiguredWebhookPath(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/payments", strings.NewReader(samplePayload)))
	// No secret configured, so the route exists and reports misconfiguration.
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/registrations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	router := testRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "nutritrack_") {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}

func TestRouterLogsRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := testRouterWithLogger(t, zap.New(core))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d access log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/api/v1/payments/{transactionId}" || fields["status"] != int64(404) || fields["request_id"] == "" {
		t.Fatalf("fields = %v", fields)
	}
}
