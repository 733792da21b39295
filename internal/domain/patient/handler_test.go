package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const createBody = `{"id":"P001","name":"Ananya Verma","city":"Guwahati","age":28,"gender":"female","height":1.65,"weight":90}`

func newTestServer() (*echo.Echo, *memDocument) {
	svc, doc := newTestService()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	NewHandler(svc).RegisterRoutes(e.Group(""))
	return e, doc
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandler_CreatePatient(t *testing.T) {
	e, _ := newTestServer()

	rec := do(e, http.MethodPost, "/create", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var msg MessageResponse
	json.Unmarshal(rec.Body.Bytes(), &msg)
	if msg.Message != "Patient created successfully" {
		t.Errorf("unexpected message %q", msg.Message)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/patient/P001" {
		t.Errorf("expected Location /patient/P001, got %q", loc)
	}
}

func TestHandler_CreatePatient_Duplicate(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)

	rec := do(e, http.MethodPost, "/create", createBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(decodeError(t, rec).Detail, "already exists") {
		t.Errorf("unexpected detail: %s", rec.Body.String())
	}
}

func TestHandler_CreatePatient_Validation(t *testing.T) {
	e, doc := newTestServer()

	rec := do(e, http.MethodPost, "/create", `{"id":"P001","name":"X","city":"Y","age":150,"gender":"robot","height":1.7,"weight":70}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	fields := map[string]bool{}
	for _, f := range body.Errors {
		fields[f.Field] = true
	}
	if !fields["age"] || !fields["gender"] {
		t.Errorf("expected age and gender errors, got %+v", body.Errors)
	}
	if doc.writes != 0 {
		t.Errorf("expected no writes, got %d", doc.writes)
	}
}

func TestHandler_CreatePatient_BadBody(t *testing.T) {
	e, _ := newTestServer()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"malformed", `{"id":`, "body"},
		{"empty", "", "body"},
		{"wrong type", `{"id":"P001","age":"old"}`, "age"},
		{"fractional age", `{"id":"P001","age":30.5}`, "age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rec.Code)
			}
			body := decodeError(t, rec)
			if len(body.Errors) != 1 || body.Errors[0].Field != tt.field {
				t.Errorf("expected %s error, got %+v", tt.field, body.Errors)
			}
		})
	}
}

func TestHandler_GetPatient(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)

	rec := do(e, http.MethodGet, "/patient/P001", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.ID != "P001" || p.Name != "Ananya Verma" {
		t.Errorf("unexpected patient %+v", p)
	}
	if p.BMI != 33.06 || p.Verdict != VerdictOverweight {
		t.Errorf("unexpected derived fields %v %s", p.BMI, p.Verdict)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)

	rec := do(e, http.MethodGet, "/patient/P999", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(decodeError(t, rec).Detail, "P001") {
		t.Errorf("expected valid ids in detail, got %s", rec.Body.String())
	}
}

func TestHandler_ListPatients(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)
	do(e, http.MethodPost, "/create", strings.Replace(createBody, "P001", "P000", 1))

	rec := do(e, http.MethodGet, "/views", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Index(body, `"P001"`) > strings.Index(body, `"P000"`) {
		t.Errorf("expected insertion order P001, P000 in %s", body)
	}
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := raw["P001"]["id"]; ok {
		t.Error("stored attributes must not repeat the id")
	}
}

func TestHandler_SortPatients(t *testing.T) {
	e, _ := newTestServer()
	for i, w := range []float64{20, 30, 10} {
		body := fmt.Sprintf(`{"id":"%c","name":"N","city":"C","age":30,"gender":"other","height":1,"weight":%v}`, 'A'+i, w)
		if rec := do(e, http.MethodPost, "/create", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := do(e, http.MethodGet, "/sort?sort_by=bmi&order=desc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []Patient
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 3 || items[0].ID != "B" || items[1].ID != "A" || items[2].ID != "C" {
		t.Errorf("unexpected order %+v", items)
	}
}

func TestHandler_SortPatients_Invalid(t *testing.T) {
	e, _ := newTestServer()

	for _, target := range []string{"/sort?sort_by=name", "/sort", "/sort?sort_by=bmi&order=up", "/sort?sort_by=bmi&order="} {
		rec := do(e, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestHandler_UpdatePatient(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)

	rec := do(e, http.MethodPut, "/update/P001", `{"weight": 50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/patient/P001", "")
	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Weight != 50 || p.BMI != 18.37 || p.Verdict != VerdictUnderweight {
		t.Errorf("unexpected patient after update %+v", p)
	}
	if p.City != "Guwahati" {
		t.Errorf("city changed to %s", p.City)
	}
}

func TestHandler_UpdatePatient_Errors(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)

	if rec := do(e, http.MethodPut, "/update/P404", `{"city":"Pune"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: expected 400, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPut, "/update/P001", `{"height": -1}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid merge: expected 422, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPut, "/update/P001", `{"gender": null}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("null field: expected 422, got %d", rec.Code)
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)

	rec := do(e, http.MethodDelete, "/delete/P001", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/delete/P001", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("second delete: expected 400, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/patient/P001", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("get after delete: expected 400, got %d", rec.Code)
	}
}

func TestHandler_StorageFailure(t *testing.T) {
	e, doc := newTestServer()
	doc.readErr = errors.New("permission denied")

	rec := do(e, http.MethodGet, "/views", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(decodeError(t, rec).Detail, "permission denied") {
		t.Errorf("unexpected detail %s", rec.Body.String())
	}
}

func TestStatusFor_EchoError(t *testing.T) {
	code, body := StatusFor(echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big"))
	if code != http.StatusRequestEntityTooLarge || body.Detail != "too big" {
		t.Errorf("got %d %+v", code, body)
	}
	code, _ = StatusFor(errors.New("boom"))
	if code != http.StatusInternalServerError {
		t.Errorf("expected 500 for unknown error, got %d", code)
	}
}

func TestHandler_SortPatients_DefaultOrder(t *testing.T) {
	e, _ := newTestServer()
	for i, w := range []float64{20, 10} {
		body := fmt.Sprintf(`{"id":"%c","name":"N","city":"C","age":30,"gender":"other","height":1,"weight":%v}`, 'A'+i, w)
		do(e, http.MethodPost, "/create", body)
	}

	rec := do(e, http.MethodGet, "/sort?sort_by=weight", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []Patient
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 2 || items[0].ID != "B" {
		t.Errorf("expected ascending order B, A, got %+v", items)
	}
}

func TestHandler_CreatePatient_UnsupportedMediaType(t *testing.T) {
	e, doc := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(createBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMETextPlain)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
	if doc.writes != 0 {
		t.Errorf("expected no writes, got %d", doc.writes)
	}
}

func TestHandler_UpdatePatient_WrongType(t *testing.T) {
	e, _ := newTestServer()
	do(e, http.MethodPost, "/create", createBody)

	rec := do(e, http.MethodPut, "/update/P001", `{"age":"old"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if len(body.Errors) != 1 || body.Errors[0].Field != "age" {
		t.Errorf("expected age error, got %+v", body.Errors)
	}
}
