package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayanero/mimik/internal/health"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := health.New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decode(t, rec); body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	t.Parallel()
	h := health.New(
		health.Checker{Name: "gateway", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "voice", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	checks := body["checks"].(map[string]any)
	for _, name := range []string{"gateway", "voice"} {
		check := checks[name].(map[string]any)
		if check["status"] != "ok" {
			t.Errorf("%s status = %v, want ok", name, check["status"])
		}
		if check["latency"] == "" {
			t.Errorf("%s check reports no latency", name)
		}
	}
}

func TestReadyz_FailingCheckerReports503(t *testing.T) {
	t.Parallel()
	h := health.New(
		health.Checker{Name: "gateway", Check: func(context.Context) error {
			return errors.New("not connected")
		}},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "fail" {
		t.Errorf("status field = %v, want fail", body["status"])
	}
	check := body["checks"].(map[string]any)["gateway"].(map[string]any)
	if check["status"] != "fail" {
		t.Errorf("gateway status = %v, want fail", check["status"])
	}
	if check["error"] != "not connected" {
		t.Errorf("gateway error = %v, want not connected", check["error"])
	}
}
