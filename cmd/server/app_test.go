package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/go-quotations/auth"
	"github.com/diewo77/go-quotations/internal/config"
	"github.com/diewo77/go-quotations/internal/db"
	"github.com/diewo77/go-quotations/internal/logging"
	"github.com/diewo77/go-quotations/internal/services"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	log := logging.New("info", &logs)
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"}
	conn, err := db.Open(cfg, false, log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := conn.DB()
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.Migrate(conn, cfg, false); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := services.NewQuotationService(conn, services.Options{Logger: log})
	return NewApp(conn, svc, log), &logs
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id")
	}
}

func TestRequestLogging(t *testing.T) {
	t.Setenv("SESSION_SECRET", "app-test-secret")
	app, logs := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/quotations", strings.NewReader(`{"counterparty":{"name":"Acme"}}`))
	req.Header.Set("Authorization", "Bearer "+auth.Token(5))
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("request id = %q", got)
	}

	var entry map[string]any
	found := false
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if err := json.Unmarshal([]byte(line), &entry); err == nil && entry["msg"] == "request" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("no request log line in %s", logs.String())
	}
	if entry["request_id"] != "req-123" || entry["status"] != float64(http.StatusCreated) || entry["actor"] != float64(5) {
		t.Errorf("log entry = %v", entry)
	}
}
