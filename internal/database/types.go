package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
)

// Identity is an enrolled employee.
type Identity struct {
	ID         int64
	Name       string
	Embedding  []float32 // normalized reference vector, nil until enrolled
	ShiftID    *int64
	BaseSalary float64
	Active     bool
	UpdatedAt  time.Time
}

// Enrolled reports whether the identity has a reference vector.
func (i *Identity) Enrolled() bool {
	return len(i.Embedding) > 0
}

// Clock is a time of day in seconds since midnight.
type Clock int

// ClockOf returns the time-of-day component of t at second precision.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, apperror.Input("invalid time of day %q, want HH:MM[:SS]", s)
	}
	limits := []int{23, 59, 59}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] || len(p) != 2 {
			return 0, apperror.Input("invalid time of day %q, want HH:MM[:SS]", s)
		}
		v[i] = n
	}
	return Clock(v[0]*3600 + v[1]*60 + v[2]), nil
}

// String formats the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// On returns the instant of this time of day on the calendar date of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(c)/3600, int(c)%3600/60, int(c)%60, 0, day.Location())
}

// Shift is a work interval. Shifts are referenced, never owned, by identities and records.
type Shift struct {
	ID                 int64
	Name               string
	Start              Clock
	End                Clock
	GracePeriodMinutes int
}

// AttendanceStatus is the closed set of attendance outcomes.
type AttendanceStatus string

const (
	StatusOnTime   AttendanceStatus = "on_time"
	StatusLate     AttendanceStatus = "late"
	StatusOvertime AttendanceStatus = "overtime"
	StatusOnLeave  AttendanceStatus = "on_leave"
)

// AttendanceStatuses lists every status in display order.
var AttendanceStatuses = []AttendanceStatus{StatusOnTime, StatusLate, StatusOvertime, StatusOnLeave}

// ParseAttendanceStatus parses a status string, rejecting unknown values.
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	v := AttendanceStatus(NormalizeToken(s))
	for _, known := range AttendanceStatuses {
		if v == known {
			return v, nil
		}
	}
	return "", apperror.Input("unknown attendance status %q", s)
}

// CountsAsWorkday reports whether a day with this status is paid as worked.
// A late arrival still counts as worked, overtime-only days do not.
func (s AttendanceStatus) CountsAsWorkday() bool {
	return s == StatusOnTime || s == StatusLate || s == StatusOnLeave
}

// AttendanceRecord is the single per-day attendance row of an identity.
type AttendanceRecord struct {
	ID         int64
	IdentityID int64
	ShiftID    *int64
	WorkDate   time.Time // calendar day, midnight in the attendance location
	CheckIn    time.Time
	CheckOut   *time.Time
	Status     AttendanceStatus
}

// LastAction returns the check-out time if present, otherwise the check-in time.
func (r *AttendanceRecord) LastAction() time.Time {
	if r.CheckOut != nil {
		return *r.CheckOut
	}
	return r.CheckIn
}

// LeaveStatus is the state of a leave request. Approved and rejected are terminal.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// ParseLeaveStatus parses a leave status, rejecting unknown values.
func ParseLeaveStatus(s string) (LeaveStatus, error) {
	switch v := LeaveStatus(NormalizeToken(s)); v {
	case LeavePending, LeaveApproved, LeaveRejected:
		return v, nil
	}
	return "", apperror.Input("unknown leave status %q", s)
}

// LeaveType is the kind of leave requested.
type LeaveType string

const (
	LeaveAnnual LeaveType = "annual"
	LeaveSick   LeaveType = "sick"
	LeaveUnpaid LeaveType = "unpaid"
	LeaveOther  LeaveType = "other"
)

// ParseLeaveType parses a leave type, rejecting unknown values.
func ParseLeaveType(s string) (LeaveType, error) {
	switch v := LeaveType(NormalizeToken(s)); v {
	case LeaveAnnual, LeaveSick, LeaveUnpaid, LeaveOther:
		return v, nil
	}
	return "", apperror.Input("unknown leave type %q", s)
}

// LeaveRequest is an employee's request for days off.
type LeaveRequest struct {
	ID           int64
	IdentityID   int64
	Type         LeaveType
	StartDate    time.Time
	EndDate      time.Time
	Reason       string
	Status       LeaveStatus
	AdminComment string
	DecidedBy    *int64
	CreatedAt    time.Time
	DecidedAt    *time.Time
}

// Days returns every calendar day in [StartDate, EndDate], each at midnight in loc.
func (l *LeaveRequest) Days(loc *time.Location) []time.Time {
	start := DayOf(l.StartDate, loc)
	end := DayOf(l.EndDate, loc)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// LeaveFilter narrows leave listings. Zero values mean "any".
type LeaveFilter struct {
	IdentityID int64
	Status     LeaveStatus
}

// PayrollRecord is a confirmed, immutable salary computation for one period.
type PayrollRecord struct {
	ID             int64
	IdentityID     int64
	Month          int
	Year           int
	BaseSalary     float64
	Workdays       int
	LateCount      int
	PenaltyPerLate float64
	Bonus          float64
	Gross          float64
	Penalty        float64
	Net            float64
	ConfirmedBy    int64
	Notes          string
	CreatedAt      time.Time
}

// PayrollFilter narrows payroll history. Zero values mean "any".
type PayrollFilter struct {
	IdentityID int64
	Month      int
	Year       int
}

// DayOf truncates t to midnight of its calendar date in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayKey formats a calendar day as YYYY-MM-DD.
func DayKey(day time.Time) string {
	return day.Format("2006-01-02")
}
