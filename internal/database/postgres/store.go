package postgres

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Store is the PostgreSQL implementation of database.Store.
type Store struct {
	*IdentityRepository
	*ShiftRepository
	*AttendanceRepository
	*LeaveRepository
	*PayrollRepository
}

var _ database.Store = (*Store)(nil)

// NewStore creates a store whose DATE columns are interpreted as calendar days in loc.
func NewStore(pool *Pool, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		IdentityRepository:   NewIdentityRepository(pool),
		ShiftRepository:      NewShiftRepository(pool),
		AttendanceRepository: NewAttendanceRepository(pool, loc),
		LeaveRepository:      NewLeaveRepository(pool, loc),
		PayrollRepository:    NewPayrollRepository(pool),
	}
}

// dayParam formats a calendar day for a DATE parameter. The string form keeps
// the session time zone out of the conversion.
func dayParam(day time.Time) string {
	return database.DayKey(day)
}

// dayIn re-anchors a scanned DATE value to midnight in loc.
func dayIn(d time.Time, loc *time.Location) time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}
