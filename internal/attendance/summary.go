package attendance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Summary aggregates attendance over [From, To).
type Summary struct {
	From     time.Time                         `json:"from"`
	To       time.Time                         `json:"to"`
	Total    int                               `json:"total"`
	ByStatus map[database.AttendanceStatus]int `json:"by_status"`
	Present  int                               `json:"present"`
	Active   int                               `json:"active_identities"`
	LateRate float64                           `json:"late_rate"`
}

// Summary counts the records of every identity with a work date in [from, to).
// Present is the number of distinct identities with a record that is not on
// leave; LateRate is late records as a percentage of all records.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*Summary, error) {
	from, to, err := s.period(from, to)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListAttendance(ctx, 0, from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	active, err := s.store.ListIdentities(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	sum := &Summary{
		From: from,
		To:   to,
		ByStatus: map[database.AttendanceStatus]int{
			database.StatusOnTime:   0,
			database.StatusLate:     0,
			database.StatusOvertime: 0,
			database.StatusOnLeave:  0,
		},
		Active: len(active),
	}
	present := make(map[int64]struct{})
	for _, rec := range records {
		sum.Total++
		sum.ByStatus[rec.Status]++
		if rec.Status != database.StatusOnLeave {
			present[rec.IdentityID] = struct{}{}
		}
	}
	sum.Present = len(present)
	if sum.Total > 0 {
		sum.LateRate = round2(float64(sum.ByStatus[database.StatusLate]) / float64(sum.Total) * 100)
	}
	return sum, nil
}

// History lists the records of one identity with a work date in [from, to).
func (s *Service) History(ctx context.Context, identityID int64, from, to time.Time) ([]database.AttendanceRecord, error) {
	from, to, err := s.period(from, to)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListAttendance(ctx, identityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

func (s *Service) period(from, to time.Time) (time.Time, time.Time, error) {
	from = database.DayOf(from, s.opts.Location)
	to = database.DayOf(to, s.opts.Location)
	if to.Before(from) {
		return from, to, apperror.Input("period end %s is before start %s", database.DayKey(to), database.DayKey(from))
	}
	return from, to, nil
}

// WorkHours returns the hours between check-in and check-out rounded to two
// decimals, zero while the record is still open.
func WorkHours(rec *database.AttendanceRecord) float64 {
	if rec == nil || rec.CheckOut == nil {
		return 0
	}
	return round2(rec.CheckOut.Sub(rec.CheckIn).Hours())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
