package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// LeaveRepository stores leave requests and runs reconciliation transactions.
type LeaveRepository struct {
	pool *Pool
	loc  *time.Location
}

// NewLeaveRepository creates a new PostgreSQL leave repository.
func NewLeaveRepository(pool *Pool, loc *time.Location) *LeaveRepository {
	return &LeaveRepository{pool: pool, loc: loc}
}

const leaveColumns = `id, identity_id, leave_type, start_date, end_date, reason, status,
	admin_comment, decided_by, created_at, decided_at`

// GetLeave retrieves a leave request by ID.
func (r *LeaveRepository) GetLeave(ctx context.Context, id int64) (*database.LeaveRequest, error) {
	return getLeave(ctx, r.pool.DB(), r.loc, `SELECT `+leaveColumns+` FROM leave_requests WHERE id = $1`, id)
}

func getLeave(ctx context.Context, q queryer, loc *time.Location, query string, id int64) (*database.LeaveRequest, error) {
	leave, err := scanLeaveRow(q.QueryRowContext(ctx, query, id), loc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &leave, nil
}

// CreateLeave stores a new leave request.
func (r *LeaveRepository) CreateLeave(ctx context.Context, leave *database.LeaveRequest) error {
	if leave.Status == "" {
		leave.Status = database.LeavePending
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO leave_requests (identity_id, leave_type, start_date, end_date, reason, status)
		 VALUES ($1, $2, $3::date, $4::date, $5, $6)
		 RETURNING id, created_at`,
		leave.IdentityID, string(leave.Type), dayParam(leave.StartDate), dayParam(leave.EndDate),
		leave.Reason, string(leave.Status),
	).Scan(&leave.ID, &leave.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert leave request: %w", err)
	}
	return nil
}

// ListLeaves returns leave requests matching the filter, newest first.
func (r *LeaveRepository) ListLeaves(ctx context.Context, filter database.LeaveFilter) ([]database.LeaveRequest, error) {
	var where []string
	var args []any
	if filter.IdentityID != 0 {
		args = append(args, filter.IdentityID)
		where = append(where, fmt.Sprintf("identity_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + leaveColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leave requests: %w", err)
	}
	defer rows.Close()

	var leaves []database.LeaveRequest
	for rows.Next() {
		leave, err := scanLeaveRow(rows, r.loc)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leave)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leave requests: %w", err)
	}
	return leaves, nil
}

// InLeaveTx runs fn inside one transaction. Any error from fn rolls back every write.
func (r *LeaveRepository) InLeaveTx(ctx context.Context, fn func(tx database.LeaveTx) error) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&leaveTx{tx: tx, loc: r.loc}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leave transaction: %w", err)
	}
	return nil
}

// leaveTx implements database.LeaveTx on a *sql.Tx.
type leaveTx struct {
	tx  *sql.Tx
	loc *time.Location
}

func (t *leaveTx) GetLeaveForUpdate(ctx context.Context, id int64) (*database.LeaveRequest, error) {
	return getLeave(ctx, t.tx, t.loc, `SELECT `+leaveColumns+` FROM leave_requests WHERE id = $1 FOR UPDATE`, id)
}

func (t *leaveTx) UpdateLeaveDecision(
	ctx context.Context, id int64, status database.LeaveStatus, decidedBy *int64, comment string, decidedAt time.Time,
) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE leave_requests SET status = $2, decided_by = $3, admin_comment = $4, decided_at = $5 WHERE id = $1`,
		id, string(status), nullInt64(decidedBy), comment, decidedAt)
	if err != nil {
		return fmt.Errorf("update leave decision: %w", err)
	}
	return nil
}

func (t *leaveTx) GetAttendanceForDay(
	ctx context.Context, identityID int64, day time.Time,
) (*database.AttendanceRecord, error) {
	return getAttendanceForDay(ctx, t.tx, t.loc, identityID, day)
}

func (t *leaveTx) CreateAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	return createAttendance(ctx, t.tx, rec)
}

func (t *leaveTx) MarkOnLeave(ctx context.Context, recordID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE attendance SET status = $2, check_out = NULL WHERE id = $1`,
		recordID, string(database.StatusOnLeave))
	if err != nil {
		return fmt.Errorf("mark attendance on leave: %w", err)
	}
	return nil
}

func scanLeaveRow(scanner interface{ Scan(...any) error }, loc *time.Location) (database.LeaveRequest, error) {
	var leave database.LeaveRequest
	var leaveType, status string
	var decidedBy sql.NullInt64
	var decidedAt sql.NullTime
	if err := scanner.Scan(
		&leave.ID, &leave.IdentityID, &leaveType, &leave.StartDate, &leave.EndDate, &leave.Reason, &status,
		&leave.AdminComment, &decidedBy, &leave.CreatedAt, &decidedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leave, err
		}
		return leave, fmt.Errorf("scan leave request: %w", err)
	}
	leave.Type = database.LeaveType(leaveType)
	leave.Status = database.LeaveStatus(status)
	leave.StartDate = dayIn(leave.StartDate, loc)
	leave.EndDate = dayIn(leave.EndDate, loc)
	if decidedBy.Valid {
		id := decidedBy.Int64
		leave.DecidedBy = &id
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		leave.DecidedAt = &t
	}
	return leave, nil
}
