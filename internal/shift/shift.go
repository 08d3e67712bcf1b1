// Package shift resolves which work shift a timestamp belongs to and
// classifies check-in punctuality against it.
package shift

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// EarlyWindow is how long before a shift's start a check-in already counts for it.
const EarlyWindow = 30 * time.Minute

// Resolve returns the first shift, in the given order, whose window
// [start-EarlyWindow, end] contains the time of day of now. Nil if none does.
// Comparison is at second precision.
func Resolve(now time.Time, shifts []database.Shift) *database.Shift {
	tod := database.ClockOf(now)
	early := database.Clock(EarlyWindow / time.Second)
	for i := range shifts {
		s := &shifts[i]
		if tod >= s.Start-early && tod <= s.End {
			return s
		}
	}
	return nil
}

// Classify reports whether a check-in is on time or late for s. Late means
// strictly after the shift start on the check-in's own date plus the grace
// period, compared at full precision.
func Classify(checkIn time.Time, s *database.Shift) database.AttendanceStatus {
	deadline := s.Start.On(checkIn).Add(time.Duration(s.GracePeriodMinutes) * time.Minute)
	if checkIn.After(deadline) {
		return database.StatusLate
	}
	return database.StatusOnTime
}

// StatusFor resolves the shift for checkIn and classifies it. Outside every
// shift the status is overtime and the shift is nil.
func StatusFor(checkIn time.Time, shifts []database.Shift) (*database.Shift, database.AttendanceStatus) {
	s := Resolve(checkIn, shifts)
	if s == nil {
		return nil, database.StatusOvertime
	}
	return s, Classify(checkIn, s)
}
