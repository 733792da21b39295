package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/patients/internal/config"
	"github.com/ehr/patients/internal/platform/middleware"
	"github.com/ehr/patients/internal/platform/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:             "development",
		StoreDriver:     store.DriverMemory,
		CORSOrigins:     []string{"*"},
		BodyLimit:       "1K",
		RequestTimeout:  5 * time.Second,
		SerializeWrites: true,
	}
}

func newTestServer(t *testing.T) (*echo.Echo, *store.Memory) {
	t.Helper()
	backend := store.NewMemory([]byte("{}"))
	return newServer(testConfig(), zerolog.Nop(), backend), backend
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Banner(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["title"] != "Patient Management System API" || body["version"] != version {
		t.Errorf("unexpected banner %v", body)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestServer_PatientLifecycle(t *testing.T) {
	e, backend := newTestServer(t)

	create := `{"id":"P001","name":"Ananya Verma","city":"Guwahati","age":28,"gender":"female","height":1.65,"weight":90}`
	if rec := serve(e, http.MethodPost, "/create", create); rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(e, http.MethodPut, "/update/P001", `{"city":"Pune"}`); rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}

	stored, err := backend.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(stored, []byte(`"city": "Pune"`)) {
		t.Errorf("expected updated city in stored document:\n%s", stored)
	}

	if rec := serve(e, http.MethodDelete, "/delete/P001", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/views", ""); strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Errorf("expected empty collection, got %s", rec.Body.String())
	}
}

func TestServer_BodyLimit(t *testing.T) {
	e, _ := newTestServer(t)

	big := `{"id":"P001","name":"` + strings.Repeat("x", 2048) + `"}`
	rec := serve(e, http.MethodPost, "/create", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestServer_OperationalEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	for _, path := range []string{"/health", "/health/store", "/openapi.json"} {
		if rec := serve(e, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	serve(e, http.MethodGet, "/views", "")
	rec := serve(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/views"`) {
		t.Error("expected /views to be counted in metrics")
	}
}

func TestServer_MetricsCountErrorStatus(t *testing.T) {
	e, _ := newTestServer(t)

	if rec := serve(e, http.MethodGet, "/patient/P404", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec := serve(e, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), `route="/patient/:id",status="404"`) {
		t.Errorf("expected missing patient counted as 404, got:\n%s", rec.Body.String())
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
