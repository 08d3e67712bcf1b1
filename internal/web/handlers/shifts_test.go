package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestShiftsHandler_List(t *testing.T) {
	env := newTestEnv(t)
	handler := NewShiftsHandler(env.store, env.attendance)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/shifts", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var shifts []ShiftResponse
	parseJSONResponse(t, recorder, &shifts)
	if len(shifts) != 1 {
		t.Fatalf("expected 1 shift, got %d", len(shifts))
	}
	if shifts[0].Start != "08:00:00" || shifts[0].End != "17:00:00" {
		t.Errorf("unexpected window %s-%s", shifts[0].Start, shifts[0].End)
	}
}

func TestShiftsHandler_Current(t *testing.T) {
	env := newTestEnv(t)
	handler := NewShiftsHandler(env.store, env.attendance)

	tests := []struct {
		name      string
		at        string
		wantShift bool
	}{
		{"early window", "2026-03-10T07:35:00+07:00", true},
		{"inside shift", "2026-03-10T12:00:00+07:00", true},
		{"at end", "2026-03-10T17:00:00+07:00", true},
		{"too early", "2026-03-10T07:29:00+07:00", false},
		{"after end", "2026-03-10T17:01:00+07:00", false},
		{"utc input", "2026-03-10T01:00:00Z", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Current(recorder, httptest.NewRequest("GET", "/api/v1/shifts/current?at="+tc.at, nil))
			assertStatusCode(t, recorder, http.StatusOK)

			var resp CurrentShiftResponse
			parseJSONResponse(t, recorder, &resp)
			if (resp.Shift != nil) != tc.wantShift {
				t.Errorf("expected shift=%v, got %+v", tc.wantShift, resp.Shift)
			}
		})
	}
}

func TestShiftsHandler_Current_DefaultsToNow(t *testing.T) {
	env := newTestEnv(t)
	handler := NewShiftsHandler(env.store, env.attendance)
	handler.now = func() time.Time { return time.Date(2026, 3, 10, 20, 0, 0, 0, testLoc) }

	recorder := httptest.NewRecorder()
	handler.Current(recorder, httptest.NewRequest("GET", "/api/v1/shifts/current", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp CurrentShiftResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Shift != nil {
		t.Errorf("expected no shift at 20:00, got %+v", resp.Shift)
	}
}

func TestShiftsHandler_Current_InvalidTime(t *testing.T) {
	env := newTestEnv(t)
	handler := NewShiftsHandler(env.store, env.attendance)

	recorder := httptest.NewRecorder()
	handler.Current(recorder, httptest.NewRequest("GET", "/api/v1/shifts/current?at=noon", nil))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}
