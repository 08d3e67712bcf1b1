package shift

import (
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func clock(t *testing.T, s string) database.Clock {
	t.Helper()
	c, err := database.ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return c
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, 3, 10, hh, mm, ss, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	shifts := []database.Shift{
		{ID: 1, Name: "Morning", Start: clock(t, "08:00"), End: clock(t, "12:00"), GracePeriodMinutes: 15},
		{ID: 2, Name: "Day", Start: clock(t, "08:00"), End: clock(t, "17:00"), GracePeriodMinutes: 5},
		{ID: 3, Name: "Evening", Start: clock(t, "18:00"), End: clock(t, "22:00")},
	}

	tests := []struct {
		name   string
		now    time.Time
		wantID int64 // 0 = none
	}{
		{name: "before early window", now: at(7, 29, 59), wantID: 0},
		{name: "early window start inclusive", now: at(7, 30, 0), wantID: 1},
		{name: "sub-second ignored at boundary", now: at(7, 30, 0).Add(500 * time.Millisecond), wantID: 1},
		{name: "declaration order wins on overlap", now: at(9, 0, 0), wantID: 1},
		{name: "end inclusive", now: at(12, 0, 0), wantID: 1},
		{name: "falls through to later shift", now: at(12, 0, 1), wantID: 2},
		{name: "gap between shifts", now: at(17, 20, 0), wantID: 0},
		{name: "evening early window", now: at(17, 30, 0), wantID: 3},
		{name: "after all shifts", now: at(23, 0, 0), wantID: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.now, shifts)
			var gotID int64
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.wantID {
				t.Errorf("Resolve(%s) = %d, want %d", tt.now.Format("15:04:05.000"), gotID, tt.wantID)
			}
		})
	}

	if got := Resolve(at(9, 0, 0), nil); got != nil {
		t.Errorf("Resolve() with no shifts = %+v, want nil", got)
	}
}

func TestClassify(t *testing.T) {
	s := &database.Shift{ID: 1, Start: clock(t, "08:00"), End: clock(t, "17:00"), GracePeriodMinutes: 15}

	tests := []struct {
		name    string
		checkIn time.Time
		want    database.AttendanceStatus
	}{
		{name: "early", checkIn: at(7, 45, 0), want: database.StatusOnTime},
		{name: "inside grace", checkIn: at(8, 10, 0), want: database.StatusOnTime},
		{name: "grace boundary inclusive", checkIn: at(8, 15, 0), want: database.StatusOnTime},
		{name: "sub-second after grace", checkIn: at(8, 15, 0).Add(500 * time.Millisecond), want: database.StatusLate},
		{name: "one second after grace", checkIn: at(8, 15, 1), want: database.StatusLate},
		{name: "late", checkIn: at(8, 16, 0), want: database.StatusLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.checkIn, s); got != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", tt.checkIn.Format("15:04:05"), got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	shifts := []database.Shift{{ID: 1, Start: clock(t, "08:00"), End: clock(t, "17:00"), GracePeriodMinutes: 15}}

	s, status := StatusFor(at(7, 29, 0), shifts)
	if s != nil || status != database.StatusOvertime {
		t.Errorf("StatusFor(07:29) = %v, %s, want nil, overtime", s, status)
	}

	s, status = StatusFor(at(7, 30, 0), shifts)
	if s == nil || s.ID != 1 || status != database.StatusOnTime {
		t.Errorf("StatusFor(07:30) = %v, %s, want shift 1, on_time", s, status)
	}

	_, status = StatusFor(at(8, 16, 0), shifts)
	if status != database.StatusLate {
		t.Errorf("StatusFor(08:16) = %s, want late", status)
	}
}
