package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ihirwe/go-triage-backend/internal/config"
	"github.com/ihirwe/go-triage-backend/internal/repo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer builds the full production middleware stack and route table
// over a temp SQLite database. Rate limits are generous so tests never trip
// the limiter by accident.
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        1000,
		RateBurst:      1000,
		IdempotencyTTL: time.Hour,
	}
	cfg.OTEL.ServiceName = "go-triage-backend-test"

	r := gin.New()
	RegisterRoutes(r, db, cfg)
	return r, db
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("health body: %s", w.Body.String())
	}
}

func TestNoRoute_ErrorEnvelope(t *testing.T) {
	r, _ := newTestServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		RequestID string `json:"request_id"`
		Code      string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("not JSON: %s", w.Body.String())
	}
	if resp.Code != "not_found" {
		t.Errorf("code = %q", resp.Code)
	}
	if resp.RequestID == "" {
		t.Error("request_id missing from error envelope")
	}
}

func TestNoMethod(t *testing.T) {
	r, _ := newTestServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "method_not_allowed") {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestServer(t)

	// Generate at least one observation so the counter families exist.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Error("expected Prometheus exposition output")
	}
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	r, _ := newTestServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("ACAO = %q (no allowlist configured)", got)
	}
	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Error("X-Request-ID missing")
	}
}

// TestAPIThroughFullStack drives a registration and session open through
// every middleware layer to catch ordering regressions.
func TestAPIThroughFullStack(t *testing.T) {
	r, _ := newTestServer(t)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/api/v1/patients", `{"full_name":"Aline Uwase","phone_number":"+250788000001"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("register patient: %d %s", w.Code, w.Body.String())
	}
	var patient struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &patient); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = post("/api/v1/sessions", `{"patient_id":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("open session: %d %s", w.Code, w.Body.String())
	}

	// A message append with an Idempotency-Key replays through the real
	// persistence-backed lookup.
	appendMsg := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/1/messages",
			strings.NewReader(`{"sender":"patient","message_text":"Mfite umuriro"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "stack-test-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := appendMsg(); w.Code != http.StatusCreated {
		t.Fatalf("fresh append: %d %s", w.Code, w.Body.String())
	}
	w = appendMsg()
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay: %d %s", w.Code, w.Body.String())
	}
}

func TestBadIdempotencyKeyRejectedAtEdge(t *testing.T) {
	r, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/1/messages",
		strings.NewReader(`{"sender":"patient","message_text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "bad key with spaces")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad_idempotency_key") {
		t.Fatalf("body: %s", w.Body.String())
	}
}
