package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/payroll"
)

// addWorkdays records n days of March 2026 for the identity, the first late ones late.
func addWorkdays(env *testEnv, n, late int) {
	for i := range n {
		day := time.Date(2026, 3, i+1, 0, 0, 0, 0, testLoc)
		status := database.StatusOnTime
		if i < late {
			status = database.StatusLate
		}
		env.store.AddAttendance(database.AttendanceRecord{
			IdentityID: env.identity.ID,
			WorkDate:   day,
			CheckIn:    day.Add(8 * time.Hour),
			Status:     status,
		})
	}
}

func TestPayrollHandler_Compute_Identity(t *testing.T) {
	env := newTestEnv(t)
	addWorkdays(env, 20, 2)
	handler := NewPayrollHandler(env.payroll)

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/payroll?month=3&year=2026&identity_id=%d", env.identity.ID), nil)
	recorder := httptest.NewRecorder()
	handler.Compute(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var out []payroll.Breakdown
	parseJSONResponse(t, recorder, &out)
	if len(out) != 1 {
		t.Fatalf("expected 1 breakdown, got %d", len(out))
	}
	b := out[0]
	if b.Gross != 2_000_000 || b.Penalty != 100_000 || b.Net != 1_900_000 {
		t.Errorf("unexpected breakdown gross=%v penalty=%v net=%v", b.Gross, b.Penalty, b.Net)
	}
}

func TestPayrollHandler_Compute_All(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddIdentity(database.Identity{Name: "Minh", Active: true, BaseSalary: 5_200_000})
	handler := NewPayrollHandler(env.payroll)

	recorder := httptest.NewRecorder()
	handler.Compute(recorder, httptest.NewRequest("GET", "/api/v1/payroll?month=3&year=2026", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var out []payroll.Breakdown
	parseJSONResponse(t, recorder, &out)
	if len(out) != 2 {
		t.Errorf("expected 2 breakdowns, got %d", len(out))
	}
}

func TestPayrollHandler_Compute_Validation(t *testing.T) {
	env := newTestEnv(t)
	handler := NewPayrollHandler(env.payroll)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"month out of range", "?month=13&year=2026", http.StatusBadRequest},
		{"month not a number", "?month=march&year=2026", http.StatusBadRequest},
		{"missing year", "?month=3", http.StatusBadRequest},
		{"unknown identity", "?month=3&year=2026&identity_id=999", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Compute(recorder, httptest.NewRequest("GET", "/api/v1/payroll"+tc.query, nil))
			assertStatusCode(t, recorder, tc.wantStatus)
		})
	}
}

func TestPayrollHandler_Confirm(t *testing.T) {
	env := newTestEnv(t)
	addWorkdays(env, 20, 2)
	handler := NewPayrollHandler(env.payroll)

	b, err := env.payroll.Compute(t.Context(), env.identity.ID, 3, 2026)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	late := 1
	body := ConfirmPayrollRequest{
		Breakdown: *b,
		Overrides: payroll.Overrides{LateCount: &late, Notes: "one late excused"},
	}

	recorder := httptest.NewRecorder()
	handler.Confirm(recorder, requestWithActor(jsonRequest(t, "POST", "/api/v1/payroll/confirm", body), 9))

	assertStatusCode(t, recorder, http.StatusCreated)
	var rec PayrollResponse
	parseJSONResponse(t, recorder, &rec)
	if rec.LateCount != 1 || rec.Net != 1_950_000 {
		t.Errorf("expected override to apply, got late=%d net=%v", rec.LateCount, rec.Net)
	}
	if rec.ConfirmedBy != 9 {
		t.Errorf("expected confirmed_by 9, got %d", rec.ConfirmedBy)
	}

	again := httptest.NewRecorder()
	handler.Confirm(again, requestWithActor(jsonRequest(t, "POST", "/api/v1/payroll/confirm", body), 9))
	assertStatusCode(t, again, http.StatusConflict)
	assertJSONError(t, again, "conflict", "payroll_already_confirmed")
}

func TestPayrollHandler_Confirm_Validation(t *testing.T) {
	env := newTestEnv(t)
	handler := NewPayrollHandler(env.payroll)

	negative := -5
	tests := []struct {
		name       string
		body       ConfirmPayrollRequest
		wantStatus int
	}{
		{
			name:       "missing identity",
			body:       ConfirmPayrollRequest{Breakdown: payroll.Breakdown{Month: 3, Year: 2026}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "negative late count",
			body: ConfirmPayrollRequest{
				Breakdown: payroll.Breakdown{IdentityID: env.identity.ID, Month: 3, Year: 2026},
				Overrides: payroll.Overrides{LateCount: &negative},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown identity",
			body:       ConfirmPayrollRequest{Breakdown: payroll.Breakdown{IdentityID: 999, Month: 3, Year: 2026}},
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Confirm(recorder, requestWithActor(jsonRequest(t, "POST", "/api/v1/payroll/confirm", tc.body), 9))
			assertStatusCode(t, recorder, tc.wantStatus)
		})
	}
}

func TestPayrollHandler_History(t *testing.T) {
	env := newTestEnv(t)
	addWorkdays(env, 20, 0)
	handler := NewPayrollHandler(env.payroll)

	b, err := env.payroll.Compute(t.Context(), env.identity.ID, 3, 2026)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	body := ConfirmPayrollRequest{Breakdown: *b}
	confirm := httptest.NewRecorder()
	handler.Confirm(confirm, requestWithActor(jsonRequest(t, "POST", "/api/v1/payroll/confirm", body), 9))
	assertStatusCode(t, confirm, http.StatusCreated)

	recorder := httptest.NewRecorder()
	handler.History(recorder, httptest.NewRequest("GET", "/api/v1/payroll/history?year=2026&month=3", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var records []PayrollResponse
	parseJSONResponse(t, recorder, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Gross != 2_000_000 {
		t.Errorf("expected gross 2000000, got %v", records[0].Gross)
	}
}
