// Package leave handles leave requests and folds approved leave into the
// attendance history.
package leave

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/daylock"
)

// MaxLeaveDays caps the length of a single request.
const MaxLeaveDays = 366

// Store is the storage leave reconciliation needs.
type Store interface {
	database.LeaveStore
	GetIdentity(ctx context.Context, id int64) (*database.Identity, error)
}

// Request is a leave submission.
type Request struct {
	IdentityID int64
	Type       string
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
}

// Service submits and decides leave requests.
type Service struct {
	store Store
	locks *daylock.Locker
	loc   *time.Location
	now   func() time.Time
}

// NewService creates a leave service. locks must be the same Locker the
// attendance service uses so approvals and scans of one day serialize.
func NewService(store Store, locks *daylock.Locker, loc *time.Location) *Service {
	if locks == nil {
		locks = daylock.New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, locks: locks, loc: loc, now: time.Now}
}

// Submit validates and stores a pending request.
func (s *Service) Submit(ctx context.Context, req Request) (*database.LeaveRequest, error) {
	typ, err := database.ParseLeaveType(req.Type)
	if err != nil {
		return nil, err
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, apperror.Input("start and end date are required")
	}
	start := database.DayOf(req.StartDate, s.loc)
	end := database.DayOf(req.EndDate, s.loc)
	if end.Before(start) {
		return nil, apperror.Input("end date %s is before start date %s", database.DayKey(end), database.DayKey(start))
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxLeaveDays {
		return nil, apperror.Input("leave of %d days exceeds the maximum of %d", days, MaxLeaveDays)
	}

	identity, err := s.store.GetIdentity(ctx, req.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity == nil || !identity.Active {
		return nil, apperror.NotFound("identity %d not found", req.IdentityID)
	}

	leave := &database.LeaveRequest{
		IdentityID: req.IdentityID,
		Type:       typ,
		StartDate:  start,
		EndDate:    end,
		Reason:     req.Reason,
		Status:     database.LeavePending,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateLeave(ctx, leave); err != nil {
		return nil, fmt.Errorf("create leave: %w", err)
	}
	return leave, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (*database.LeaveRequest, error) {
	leave, err := s.store.GetLeave(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get leave: %w", err)
	}
	if leave == nil {
		return nil, apperror.NotFound("leave request %d not found", id)
	}
	return leave, nil
}

// List returns requests matching filter, newest first.
func (s *Service) List(ctx context.Context, filter database.LeaveFilter) ([]database.LeaveRequest, error) {
	leaves, err := s.store.ListLeaves(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return leaves, nil
}

// Approve marks a pending request approved and every day of its range
// on_leave, creating records for days without one. Either all of it is
// stored or none of it.
func (s *Service) Approve(ctx context.Context, id, adminID int64) (*database.LeaveRequest, error) {
	leave, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.Status != database.LeavePending {
		return nil, processed(leave)
	}

	days := leave.Days(s.loc)
	unlock := s.locks.LockRange(leave.IdentityID, days)
	defer unlock()

	decidedAt := s.now()
	var approved *database.LeaveRequest
	err = s.store.InLeaveTx(ctx, func(tx database.LeaveTx) error {
		current, err := tx.GetLeaveForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock leave: %w", err)
		}
		if current == nil {
			return apperror.NotFound("leave request %d not found", id)
		}
		if current.Status != database.LeavePending {
			return processed(current)
		}

		admin := adminID
		if err := tx.UpdateLeaveDecision(ctx, id, database.LeaveApproved, &admin, current.AdminComment, decidedAt); err != nil {
			return fmt.Errorf("approve leave: %w", err)
		}

		for _, day := range days {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := tx.GetAttendanceForDay(ctx, current.IdentityID, day)
			if err != nil {
				return fmt.Errorf("get attendance for %s: %w", database.DayKey(day), err)
			}
			if rec != nil {
				if err := tx.MarkOnLeave(ctx, rec.ID); err != nil {
					return fmt.Errorf("mark %s on leave: %w", database.DayKey(day), err)
				}
				continue
			}
			rec = &database.AttendanceRecord{
				IdentityID: current.IdentityID,
				WorkDate:   day,
				CheckIn:    day,
				Status:     database.StatusOnLeave,
			}
			if err := tx.CreateAttendance(ctx, rec); err != nil {
				return fmt.Errorf("create leave day %s: %w", database.DayKey(day), err)
			}
		}

		current.Status = database.LeaveApproved
		current.DecidedBy = &admin
		current.DecidedAt = &decidedAt
		approved = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("leave: request %d approved by %d, %d days marked on leave for identity %d",
		id, adminID, len(days), approved.IdentityID)
	return approved, nil
}

// Reject marks a pending request rejected. Attendance is not touched.
func (s *Service) Reject(ctx context.Context, id, adminID int64, comment string) (*database.LeaveRequest, error) {
	decidedAt := s.now()
	var rejected *database.LeaveRequest
	err := s.store.InLeaveTx(ctx, func(tx database.LeaveTx) error {
		current, err := tx.GetLeaveForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock leave: %w", err)
		}
		if current == nil {
			return apperror.NotFound("leave request %d not found", id)
		}
		if current.Status != database.LeavePending {
			return processed(current)
		}

		admin := adminID
		if err := tx.UpdateLeaveDecision(ctx, id, database.LeaveRejected, &admin, comment, decidedAt); err != nil {
			return fmt.Errorf("reject leave: %w", err)
		}
		current.Status = database.LeaveRejected
		current.AdminComment = comment
		current.DecidedBy = &admin
		current.DecidedAt = &decidedAt
		rejected = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("leave: request %d rejected by %d", id, adminID)
	return rejected, nil
}

func processed(leave *database.LeaveRequest) error {
	return apperror.Conflict(apperror.ReasonLeaveProcessed, "leave request %d is already %s", leave.ID, leave.Status)
}
