package leave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/daylock"
)

var testLoc = time.FixedZone("ICT", 7*3600)

func day(d int) time.Time {
	return time.Date(2026, 4, d, 0, 0, 0, 0, testLoc)
}

func setup(t *testing.T) (*Service, *mock.Store, database.Identity, database.Identity) {
	t.Helper()
	store := mock.NewStore(testLoc)
	lan := store.AddIdentity(database.Identity{Name: "Lan", Active: true})
	minh := store.AddIdentity(database.Identity{Name: "Minh", Active: true})
	return NewService(store, daylock.New(), testLoc), store, lan, minh
}

func submit(t *testing.T, svc *Service, identityID int64, from, to int) *database.LeaveRequest {
	t.Helper()
	leave, err := svc.Submit(context.Background(), Request{
		IdentityID: identityID,
		Type:       "annual",
		StartDate:  day(from),
		EndDate:    day(to),
		Reason:     "family trip",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return leave
}

func recordsOf(store *mock.Store, identityID int64) []database.AttendanceRecord {
	var out []database.AttendanceRecord
	for _, rec := range store.AllAttendance() {
		if rec.IdentityID == identityID {
			out = append(out, rec)
		}
	}
	return out
}

func TestApprove_CreatesOneRecordPerDay(t *testing.T) {
	svc, store, lan, minh := setup(t)
	ctx := context.Background()

	// Lan checked in on the 2nd before the leave was approved; Minh worked the same days.
	out := day(2).Add(17 * time.Hour)
	store.AddAttendance(database.AttendanceRecord{IdentityID: lan.ID, WorkDate: day(2), CheckIn: day(2).Add(8 * time.Hour), CheckOut: &out, Status: database.StatusLate})
	store.AddAttendance(database.AttendanceRecord{IdentityID: minh.ID, WorkDate: day(2), CheckIn: day(2).Add(8 * time.Hour), Status: database.StatusOnTime})

	leave := submit(t, svc, lan.ID, 1, 3)
	approved, err := svc.Approve(ctx, leave.ID, 42)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != database.LeaveApproved || approved.DecidedBy == nil || *approved.DecidedBy != 42 {
		t.Errorf("approved = %+v", approved)
	}

	records := recordsOf(store, lan.ID)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for _, rec := range records {
		if rec.Status != database.StatusOnLeave {
			t.Errorf("%s: status = %s, want on_leave", database.DayKey(rec.WorkDate), rec.Status)
		}
		if rec.CheckOut != nil {
			t.Errorf("%s: check-out should be cleared", database.DayKey(rec.WorkDate))
		}
		if rec.ShiftID != nil {
			t.Errorf("%s: leave day should carry no shift", database.DayKey(rec.WorkDate))
		}
	}

	others := recordsOf(store, minh.ID)
	if len(others) != 1 || others[0].Status != database.StatusOnTime {
		t.Errorf("other identity changed: %+v", others)
	}

	stored, _ := svc.Get(ctx, leave.ID)
	if stored.Status != database.LeaveApproved {
		t.Errorf("stored status = %s, want approved", stored.Status)
	}
}

func TestApprove_FailureRollsBack(t *testing.T) {
	svc, store, lan, _ := setup(t)
	ctx := context.Background()
	store.AddAttendance(database.AttendanceRecord{IdentityID: lan.ID, WorkDate: day(1), CheckIn: day(1).Add(8 * time.Hour), Status: database.StatusOnTime})
	leave := submit(t, svc, lan.ID, 1, 3)

	// Writes: decision, day 1, day 2. Fail on day 2.
	store.TxFailOnWrite = 3
	_, err := svc.Approve(ctx, leave.ID, 1)
	if !errors.Is(err, mock.ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	stored, _ := svc.Get(ctx, leave.ID)
	if stored.Status != database.LeavePending {
		t.Errorf("status = %s, want pending after rollback", stored.Status)
	}
	records := recordsOf(store, lan.ID)
	if len(records) != 1 || records[0].Status != database.StatusOnTime {
		t.Errorf("attendance changed despite rollback: %+v", records)
	}

	// The request can still be approved once storage recovers.
	store.TxFailOnWrite = 0
	if _, err := svc.Approve(ctx, leave.ID, 1); err != nil {
		t.Fatalf("Approve after recovery: %v", err)
	}
	if n := len(recordsOf(store, lan.ID)); n != 3 {
		t.Errorf("records = %d, want 3", n)
	}
}

func TestApprove_AlreadyProcessed(t *testing.T) {
	svc, store, lan, _ := setup(t)
	ctx := context.Background()
	leave := submit(t, svc, lan.ID, 5, 6)

	if _, err := svc.Approve(ctx, leave.ID, 1); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	writes := len(store.AllAttendance())

	_, err := svc.Approve(ctx, leave.ID, 1)
	if !errors.Is(err, &apperror.Error{Code: apperror.CodeConflict, Reason: apperror.ReasonLeaveProcessed}) {
		t.Errorf("second approve: expected leave_already_processed, got %v", err)
	}
	if _, err := svc.Reject(ctx, leave.ID, 1, "too late"); apperror.CodeOf(err) != apperror.CodeConflict {
		t.Errorf("reject after approve: expected conflict, got %v", err)
	}
	if len(store.AllAttendance()) != writes {
		t.Error("repeated decisions must not write attendance")
	}
}

func TestApprove_NotFound(t *testing.T) {
	svc, _, _, _ := setup(t)
	if _, err := svc.Approve(context.Background(), 999, 1); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
	if _, err := svc.Reject(context.Background(), 999, 1, ""); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestApprove_Concurrent(t *testing.T) {
	svc, store, lan, _ := setup(t)
	leave := submit(t, svc, lan.ID, 10, 12)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Approve(context.Background(), leave.ID, int64(i+1))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.CodeOf(err) != apperror.CodeConflict:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("successful approvals = %d, want 1", succeeded)
	}
	if n := len(recordsOf(store, lan.ID)); n != 3 {
		t.Errorf("records = %d, want 3", n)
	}
}

func TestReject(t *testing.T) {
	svc, store, lan, _ := setup(t)
	ctx := context.Background()
	leave := submit(t, svc, lan.ID, 7, 8)

	rejected, err := svc.Reject(ctx, leave.ID, 3, "busy week")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != database.LeaveRejected || rejected.AdminComment != "busy week" {
		t.Errorf("rejected = %+v", rejected)
	}
	if len(store.AllAttendance()) != 0 {
		t.Error("rejection must not touch attendance")
	}
	if _, err := svc.Approve(ctx, leave.ID, 3); apperror.CodeOf(err) != apperror.CodeConflict {
		t.Errorf("approve after reject: expected conflict, got %v", err)
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc, _, lan, _ := setup(t)

	tests := []struct {
		name     string
		req      Request
		wantCode apperror.Code
	}{
		{"unknown type", Request{IdentityID: lan.ID, Type: "vacation", StartDate: day(1), EndDate: day(2)}, apperror.CodeInput},
		{"reversed range", Request{IdentityID: lan.ID, Type: "sick", StartDate: day(3), EndDate: day(2)}, apperror.CodeInput},
		{"missing date", Request{IdentityID: lan.ID, Type: "sick", StartDate: day(3)}, apperror.CodeInput},
		{"too long", Request{IdentityID: lan.ID, Type: "unpaid", StartDate: day(1), EndDate: day(1).AddDate(2, 0, 0)}, apperror.CodeInput},
		{"unknown identity", Request{IdentityID: 999, Type: "sick", StartDate: day(1), EndDate: day(1)}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.req)
			if got := apperror.CodeOf(err); got != tt.wantCode {
				t.Errorf("code = %s, want %s (%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestList(t *testing.T) {
	svc, _, lan, minh := setup(t)
	ctx := context.Background()
	first := submit(t, svc, lan.ID, 1, 1)
	submit(t, svc, lan.ID, 3, 4)
	submit(t, svc, minh.ID, 1, 2)
	if _, err := svc.Approve(ctx, first.ID, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	pending, err := svc.List(ctx, database.LeaveFilter{IdentityID: lan.ID, Status: database.LeavePending})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].StartDate.Day() != 3 {
		t.Errorf("pending = %+v", pending)
	}
	all, _ := svc.List(ctx, database.LeaveFilter{})
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}
