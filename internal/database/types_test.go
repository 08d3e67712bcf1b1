package database

import (
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    Clock
		wantErr bool
	}{
		{"08:00", 8 * 3600, false},
		{"08:00:00", 8 * 3600, false},
		{"23:59:59", 86399, false},
		{"7:30", 0, true},
		{"24:00", 0, true},
		{"08:60", 0, true},
		{"08", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrInput) {
					t.Errorf("ParseClock(%q) error = %v, want input error", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestClockOnAndString(t *testing.T) {
	c := Clock(8*3600 + 15*60 + 30)
	if c.String() != "08:15:30" {
		t.Errorf("String() = %q", c.String())
	}
	day := time.Date(2026, 3, 2, 17, 45, 0, 0, time.UTC)
	want := time.Date(2026, 3, 2, 8, 15, 30, 0, time.UTC)
	if got := c.On(day); !got.Equal(want) {
		t.Errorf("On() = %v, want %v", got, want)
	}
	if ClockOf(want) != c {
		t.Errorf("ClockOf() = %d, want %d", ClockOf(want), c)
	}
}

func TestParseAttendanceStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    AttendanceStatus
		wantErr bool
	}{
		{"on_time", StatusOnTime, false},
		{"On-Time", StatusOnTime, false},
		{" LATE ", StatusLate, false},
		{"overtime", StatusOvertime, false},
		{"on leave", StatusOnLeave, false},
		{"absent", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAttendanceStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAttendanceStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAttendanceStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLeaveEnums(t *testing.T) {
	if s, err := ParseLeaveStatus("Approved"); err != nil || s != LeaveApproved {
		t.Errorf("ParseLeaveStatus(Approved) = %q, %v", s, err)
	}
	if _, err := ParseLeaveStatus("cancelled"); err == nil {
		t.Error("expected error for unknown leave status")
	}
	if lt, err := ParseLeaveType("SICK"); err != nil || lt != LeaveSick {
		t.Errorf("ParseLeaveType(SICK) = %q, %v", lt, err)
	}
	if _, err := ParseLeaveType("sabbatical"); err == nil {
		t.Error("expected error for unknown leave type")
	}
}

func TestCountsAsWorkday(t *testing.T) {
	want := map[AttendanceStatus]bool{
		StatusOnTime:   true,
		StatusLate:     true,
		StatusOnLeave:  true,
		StatusOvertime: false,
	}
	for status, expected := range want {
		if status.CountsAsWorkday() != expected {
			t.Errorf("%s.CountsAsWorkday() = %v, want %v", status, !expected, expected)
		}
	}
}

func TestLeaveRequestDays(t *testing.T) {
	l := LeaveRequest{
		StartDate: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	days := l.Days(time.UTC)
	want := []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if DayKey(d) != want[i] {
			t.Errorf("day %d = %s, want %s", i, DayKey(d), want[i])
		}
	}
}

func TestLastAction(t *testing.T) {
	in := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	r := AttendanceRecord{CheckIn: in}
	if !r.LastAction().Equal(in) {
		t.Errorf("LastAction() without checkout = %v", r.LastAction())
	}
	out := in.Add(8 * time.Hour)
	r.CheckOut = &out
	if !r.LastAction().Equal(out) {
		t.Errorf("LastAction() with checkout = %v", r.LastAction())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		fn    func(string) string
		input string
		want  string
	}{
		{NormalizeName, "Nguyễn Văn  An", "nguyen van an"},
		{NormalizeName, "Trần-Thị Đào", "tran thi dao"},
		{NormalizeToken, "On-Time", "on_time"},
		{NormalizeToken, "  on leave ", "on_leave"},
		{RemoveDiacritics, "Jiří", "Jiri"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := tt.fn(tt.input); got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
