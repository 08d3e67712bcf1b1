package handlers

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// RecordResponse is an attendance record on the wire.
type RecordResponse struct {
	ID         int64                     `json:"id"`
	IdentityID int64                     `json:"identity_id"`
	ShiftID    *int64                    `json:"shift_id,omitempty"`
	WorkDate   string                    `json:"work_date"`
	CheckIn    time.Time                 `json:"check_in"`
	CheckOut   *time.Time                `json:"check_out,omitempty"`
	Status     database.AttendanceStatus `json:"status"`
	WorkHours  float64                   `json:"work_hours"`
}

func newRecordResponse(rec *database.AttendanceRecord) *RecordResponse {
	if rec == nil {
		return nil
	}
	return &RecordResponse{
		ID:         rec.ID,
		IdentityID: rec.IdentityID,
		ShiftID:    rec.ShiftID,
		WorkDate:   database.DayKey(rec.WorkDate),
		CheckIn:    rec.CheckIn,
		CheckOut:   rec.CheckOut,
		Status:     rec.Status,
		WorkHours:  attendance.WorkHours(rec),
	}
}

func newRecordResponses(records []database.AttendanceRecord) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for i := range records {
		out = append(out, *newRecordResponse(&records[i]))
	}
	return out
}

// IdentityResponse is an identity on the wire. The reference vector is never exposed.
type IdentityResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	ShiftID    *int64    `json:"shift_id,omitempty"`
	BaseSalary float64   `json:"base_salary"`
	Active     bool      `json:"active"`
	Enrolled   bool      `json:"enrolled"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newIdentityResponse(identity *database.Identity) IdentityResponse {
	return IdentityResponse{
		ID:         identity.ID,
		Name:       identity.Name,
		ShiftID:    identity.ShiftID,
		BaseSalary: identity.BaseSalary,
		Active:     identity.Active,
		Enrolled:   identity.Enrolled(),
		UpdatedAt:  identity.UpdatedAt,
	}
}

// ShiftResponse is a shift on the wire.
type ShiftResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Start              string `json:"start"`
	End                string `json:"end"`
	GracePeriodMinutes int    `json:"grace_period_minutes"`
}

func newShiftResponse(s *database.Shift) *ShiftResponse {
	if s == nil {
		return nil
	}
	return &ShiftResponse{
		ID:                 s.ID,
		Name:               s.Name,
		Start:              s.Start.String(),
		End:                s.End.String(),
		GracePeriodMinutes: s.GracePeriodMinutes,
	}
}

// LeaveResponse is a leave request on the wire.
type LeaveResponse struct {
	ID           int64                `json:"id"`
	IdentityID   int64                `json:"identity_id"`
	Type         database.LeaveType   `json:"type"`
	StartDate    string               `json:"start_date"`
	EndDate      string               `json:"end_date"`
	Reason       string               `json:"reason,omitempty"`
	Status       database.LeaveStatus `json:"status"`
	AdminComment string               `json:"admin_comment,omitempty"`
	DecidedBy    *int64               `json:"decided_by,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	DecidedAt    *time.Time           `json:"decided_at,omitempty"`
}

func newLeaveResponse(l *database.LeaveRequest) LeaveResponse {
	return LeaveResponse{
		ID:           l.ID,
		IdentityID:   l.IdentityID,
		Type:         l.Type,
		StartDate:    database.DayKey(l.StartDate),
		EndDate:      database.DayKey(l.EndDate),
		Reason:       l.Reason,
		Status:       l.Status,
		AdminComment: l.AdminComment,
		DecidedBy:    l.DecidedBy,
		CreatedAt:    l.CreatedAt,
		DecidedAt:    l.DecidedAt,
	}
}

// PayrollResponse is a confirmed payroll record on the wire.
type PayrollResponse struct {
	ID             int64     `json:"id"`
	IdentityID     int64     `json:"identity_id"`
	Month          int       `json:"month"`
	Year           int       `json:"year"`
	BaseSalary     float64   `json:"base_salary"`
	Workdays       int       `json:"workdays"`
	LateCount      int       `json:"late_count"`
	PenaltyPerLate float64   `json:"penalty_per_late"`
	Bonus          float64   `json:"bonus"`
	Gross          float64   `json:"gross"`
	Penalty        float64   `json:"penalty"`
	Net            float64   `json:"net"`
	ConfirmedBy    int64     `json:"confirmed_by"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newPayrollResponse(p *database.PayrollRecord) PayrollResponse {
	return PayrollResponse{
		ID:             p.ID,
		IdentityID:     p.IdentityID,
		Month:          p.Month,
		Year:           p.Year,
		BaseSalary:     p.BaseSalary,
		Workdays:       p.Workdays,
		LateCount:      p.LateCount,
		PenaltyPerLate: p.PenaltyPerLate,
		Bonus:          p.Bonus,
		Gross:          p.Gross,
		Penalty:        p.Penalty,
		Net:            p.Net,
		ConfirmedBy:    p.ConfirmedBy,
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
	}
}
