package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amparo-care/amparo/internal/logbook"
	"github.com/amparo-care/amparo/internal/report"
)

const validEntry = `{
	"date": "2026-08-29",
	"patient_name": "Rosa",
	"meals": 3,
	"water_glasses": 6,
	"hours_slept": 7.5,
	"medications_taken": 2,
	"mood": 4,
	"social": 3
}`

func TestUpsertLog(t *testing.T) {
	srv, _, logs, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/logs", strings.NewReader(validEntry))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if _, err := logs.Get(t.Context(), "2026-08-29", "Rosa"); err != nil {
		t.Errorf("entry not stored: %v", err)
	}
}

func TestUpsertLog_ValidationRejected(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad date", `{"date":"29/08/2026","patient_name":"Rosa"}`},
		{"missing patient", `{"date":"2026-08-29"}`},
		{"mood out of range", `{"date":"2026-08-29","patient_name":"Rosa","mood":9}`},
		{"negative meals", `{"date":"2026-08-29","patient_name":"Rosa","meals":-1}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/logs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetLog(t *testing.T) {
	srv, _, logs, _ := newTestServer(t)
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-29", PatientName: "Rosa", Meals: 3})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs/2026-08-29?patient=Rosa", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got logbook.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Meals != 3 {
		t.Errorf("meals = %d, want 3", got.Meals)
	}
}

func TestGetLog_Errors(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing entry", "/api/v1/logs/2026-08-29?patient=Rosa", http.StatusNotFound},
		{"bad date", "/api/v1/logs/not-a-date?patient=Rosa", http.StatusBadRequest},
		{"missing patient", "/api/v1/logs/2026-08-29", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListLogs_Range(t *testing.T) {
	srv, _, logs, _ := newTestServer(t)
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-27", PatientName: "Rosa"})
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-28", PatientName: "Rosa"})
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-28", PatientName: "Elena"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/logs?patient=Rosa&from=2026-08-27&to=2026-08-28", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Entries []*logbook.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Errorf("entries = %d, want 2 (Elena excluded)", len(body.Entries))
	}
}

func TestListLogs_HalfRangeRejected(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/logs?patient=Rosa&from=2026-08-27", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteLog(t *testing.T) {
	srv, _, logs, _ := newTestServer(t)
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-29", PatientName: "Rosa"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/logs/2026-08-29?patient=Rosa", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/logs/2026-08-29?patient=Rosa", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestReportSummary(t *testing.T) {
	srv, _, logs, _ := newTestServer(t)
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-27", PatientName: "Rosa", Meals: 3, HoursSlept: 7, Mood: 4})
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-28", PatientName: "Rosa", Meals: 2, HoursSlept: 8, Mood: 2})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/reports/summary?patient=Rosa&from=2026-08-27&to=2026-08-28", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got report.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Days != 2 {
		t.Errorf("days = %d, want 2", got.Days)
	}
}

func TestReportSummary_NoEntries(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/reports/summary?patient=Rosa&from=2026-01-01&to=2026-01-31", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReportExport_CSV(t *testing.T) {
	srv, _, logs, _ := newTestServer(t)
	_ = logs.Upsert(t.Context(), &logbook.Entry{Date: "2026-08-28", PatientName: "Rosa", Meals: 3})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/reports/export?patient=Rosa&from=2026-08-01&to=2026-08-31&format=csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "daily-logs.csv") {
		t.Errorf("Content-Disposition = %q, want attachment filename", cd)
	}
	if !strings.Contains(rec.Body.String(), "Rosa") {
		t.Errorf("export body missing data: %s", rec.Body.String())
	}
}

func TestReportExport_BadFormat(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/reports/export?patient=Rosa&format=pdf", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
