package database

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned by writers when a uniqueness constraint rejects a
// row: a second attendance record for the same (identity, day) or a second
// payroll record for the same (identity, month, year).
var ErrDuplicate = errors.New("duplicate row")

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// GetIdentity retrieves an identity by ID, returns nil if not found
	GetIdentity(ctx context.Context, id int64) (*Identity, error)
	// ListIdentities returns identities ordered by ID. activeOnly filters out soft-deleted ones.
	ListIdentities(ctx context.Context, activeOnly bool) ([]Identity, error)
	// NearestIdentities returns up to limit active, enrolled identities ordered
	// by ascending cosine distance to probe. The order is a hint only; callers
	// re-rank exactly.
	NearestIdentities(ctx context.Context, probe []float32, limit int) ([]Identity, error)
}

// IdentityWriter provides write access to identities
type IdentityWriter interface {
	IdentityReader

	// CreateIdentity stores a new identity and sets its ID.
	CreateIdentity(ctx context.Context, identity *Identity) error
	// SaveEmbedding replaces the reference vector of an identity (enrollment or re-enrollment).
	SaveEmbedding(ctx context.Context, id int64, embedding []float32) error
	// SetActive soft-deletes or restores an identity.
	SetActive(ctx context.Context, id int64, active bool) error
	// DeleteIdentity hard-deletes an identity and, by cascade, its attendance history.
	DeleteIdentity(ctx context.Context, id int64) error
}

// ShiftReader provides read-only access to shifts
type ShiftReader interface {
	// ListShifts returns all shifts in declaration (ID) order
	ListShifts(ctx context.Context) ([]Shift, error)
	// GetShift retrieves a shift by ID, returns nil if not found
	GetShift(ctx context.Context, id int64) (*Shift, error)
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// GetAttendanceForDay returns the record of identityID for the calendar day, nil if none
	GetAttendanceForDay(ctx context.Context, identityID int64, day time.Time) (*AttendanceRecord, error)
	// ListAttendance returns records with WorkDate in [from, to), ordered by WorkDate.
	// identityID 0 lists every identity.
	ListAttendance(ctx context.Context, identityID int64, from, to time.Time) ([]AttendanceRecord, error)
	// CountAttendanceByStatus counts records of identityID with WorkDate in [from, to) per status
	CountAttendanceByStatus(ctx context.Context, identityID int64, from, to time.Time) (map[AttendanceStatus]int, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// CreateAttendance inserts a record and sets its ID.
	// Returns ErrDuplicate if a record already exists for (IdentityID, WorkDate).
	CreateAttendance(ctx context.Context, record *AttendanceRecord) error
	// SetCheckout sets the check-out time of a record.
	SetCheckout(ctx context.Context, id int64, checkout time.Time) error
}

// LeaveTx is the view of storage available inside a leave reconciliation
// transaction. Every write through it commits or rolls back together.
type LeaveTx interface {
	// GetLeaveForUpdate loads a leave request and locks it until the transaction ends, nil if not found
	GetLeaveForUpdate(ctx context.Context, id int64) (*LeaveRequest, error)
	// UpdateLeaveDecision records a terminal status, deciding admin and comment
	UpdateLeaveDecision(ctx context.Context, id int64, status LeaveStatus, decidedBy *int64, comment string, decidedAt time.Time) error
	// GetAttendanceForDay returns the record for the day, nil if none
	GetAttendanceForDay(ctx context.Context, identityID int64, day time.Time) (*AttendanceRecord, error)
	// CreateAttendance inserts a record and sets its ID
	CreateAttendance(ctx context.Context, record *AttendanceRecord) error
	// MarkOnLeave sets a record's status to on_leave and clears its check-out
	MarkOnLeave(ctx context.Context, recordID int64) error
}

// LeaveStore provides access to leave requests
type LeaveStore interface {
	// GetLeave retrieves a leave request by ID, returns nil if not found
	GetLeave(ctx context.Context, id int64) (*LeaveRequest, error)
	// CreateLeave stores a new leave request and sets its ID
	CreateLeave(ctx context.Context, leave *LeaveRequest) error
	// ListLeaves returns leave requests matching the filter, newest first
	ListLeaves(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error)
	// InLeaveTx runs fn in a single transaction; fn's error rolls everything back
	InLeaveTx(ctx context.Context, fn func(tx LeaveTx) error) error
}

// PayrollStore provides access to confirmed payroll records
type PayrollStore interface {
	// GetPayroll returns the record for the period, nil if not confirmed yet
	GetPayroll(ctx context.Context, identityID int64, month, year int) (*PayrollRecord, error)
	// CreatePayroll inserts a record and sets its ID.
	// Returns ErrDuplicate if the period is already confirmed.
	CreatePayroll(ctx context.Context, record *PayrollRecord) error
	// ListPayrolls returns records matching the filter, newest period first
	ListPayrolls(ctx context.Context, filter PayrollFilter) ([]PayrollRecord, error)
}

// Store aggregates every repository the engine needs.
type Store interface {
	IdentityWriter
	ShiftReader
	AttendanceWriter
	LeaveStore
	PayrollStore
}
