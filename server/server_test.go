package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"unit_scanner/scanner"
)

type stubService struct {
	status     *scanner.StatusReport
	statusErr  error
	result     *scanner.ScanResult
	executeErr error

	executedProperty uuid.UUID
	executedMethod   string
}

func (s *stubService) Status(ctx context.Context) (*scanner.StatusReport, error) {
	return s.status, s.statusErr
}

func (s *stubService) Execute(ctx context.Context, propertyID uuid.UUID, methodID string) (*scanner.ScanResult, error) {
	s.executedProperty = propertyID
	s.executedMethod = methodID
	return s.result, s.executeErr
}

func TestStatusEndpoint(t *testing.T) {
	svc := &stubService{
		status: &scanner.StatusReport{
			Stats: scanner.OverviewStats{TotalProperties: 3, TotalScans: 10, SuccessfulScans: 4, SuccessRate: 0.4},
		},
	}
	srv := New(svc)

	req := httptest.NewRequest("GET", "/api/scanner", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var report scanner.StatusReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.Stats.TotalProperties != 3 || report.Stats.SuccessRate != 0.4 {
		t.Fatalf("unexpected report %+v", report.Stats)
	}
}

func TestStatusEndpoint_ServiceError(t *testing.T) {
	svc := &stubService{statusErr: errors.New("db unavailable")}
	srv := New(svc)

	req := httptest.NewRequest("GET", "/api/scanner", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "db unavailable") {
		t.Fatalf("error body missing cause: %s", rec.Body.String())
	}
}

func TestExecuteEndpoint(t *testing.T) {
	propID := uuid.New()
	svc := &stubService{
		result: &scanner.ScanResult{Success: true, PropertyID: propID, Method: "site-floorplans", UnitsFound: 4},
	}
	srv := New(svc)

	body := `{"propertyId": "` + propID.String() + `", "method": "site-floorplans"}`
	req := httptest.NewRequest("POST", "/api/scanner", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.executedProperty != propID || svc.executedMethod != "site-floorplans" {
		t.Fatalf("service called with %s / %s", svc.executedProperty, svc.executedMethod)
	}

	var result scanner.ScanResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || result.UnitsFound != 4 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExecuteEndpoint_BadBody(t *testing.T) {
	srv := New(&stubService{})

	req := httptest.NewRequest("POST", "/api/scanner", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExecuteEndpoint_BadPropertyID(t *testing.T) {
	srv := New(&stubService{})

	req := httptest.NewRequest("POST", "/api/scanner", strings.NewReader(`{"propertyId": "nope", "method": "site-floorplans"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExecuteEndpoint_UnknownMethod(t *testing.T) {
	svc := &stubService{}
	srv := New(svc)

	body := `{"propertyId": "` + uuid.New().String() + `", "method": "carrier-pigeon"}`
	req := httptest.NewRequest("POST", "/api/scanner", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svc.executedMethod != "" {
		t.Fatalf("service should not be called for unknown method")
	}
}

func TestExecuteEndpoint_ServiceError(t *testing.T) {
	svc := &stubService{executeErr: errors.New("RENDER_TOKEN not set")}
	srv := New(svc)

	body := `{"propertyId": "` + uuid.New().String() + `", "method": "site-root"}`
	req := httptest.NewRequest("POST", "/api/scanner", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "RENDER_TOKEN") {
		t.Fatalf("error body missing cause: %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	srv := New(&stubService{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
