package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository stores the per-day attendance records.
type AttendanceRepository struct {
	pool *Pool
	loc  *time.Location
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool, loc *time.Location) *AttendanceRepository {
	return &AttendanceRepository{pool: pool, loc: loc}
}

const attendanceColumns = `id, identity_id, shift_id, work_date, check_in, check_out, status`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetAttendanceForDay returns the record for the calendar day, nil if none.
func (r *AttendanceRepository) GetAttendanceForDay(
	ctx context.Context, identityID int64, day time.Time,
) (*database.AttendanceRecord, error) {
	return getAttendanceForDay(ctx, r.pool.DB(), r.loc, identityID, day)
}

func getAttendanceForDay(
	ctx context.Context, q queryer, loc *time.Location, identityID int64, day time.Time,
) (*database.AttendanceRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE identity_id = $1 AND work_date = $2::date`,
		identityID, dayParam(day))
	rec, err := scanAttendanceRow(row, loc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAttendance returns records with work_date in [from, to).
func (r *AttendanceRepository) ListAttendance(
	ctx context.Context, identityID int64, from, to time.Time,
) ([]database.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance
		WHERE work_date >= $1::date AND work_date < $2::date`
	args := []any{dayParam(from), dayParam(to)}
	if identityID != 0 {
		query += ` AND identity_id = $3`
		args = append(args, identityID)
	}
	query += ` ORDER BY work_date, identity_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendanceRow(rows, r.loc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// CountAttendanceByStatus counts records per status for one identity in [from, to).
func (r *AttendanceRepository) CountAttendanceByStatus(
	ctx context.Context, identityID int64, from, to time.Time,
) (map[database.AttendanceStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM attendance
		 WHERE identity_id = $1 AND work_date >= $2::date AND work_date < $3::date
		 GROUP BY status`,
		identityID, dayParam(from), dayParam(to))
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	defer rows.Close()

	counts := make(map[database.AttendanceStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan attendance count: %w", err)
		}
		counts[database.AttendanceStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance counts: %w", err)
	}
	return counts, nil
}

// CreateAttendance inserts a record. A second record for the same
// (identity, day) is rejected by the unique constraint with ErrDuplicate.
func (r *AttendanceRepository) CreateAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	return createAttendance(ctx, r.pool.DB(), rec)
}

func createAttendance(ctx context.Context, q queryer, rec *database.AttendanceRecord) error {
	var checkOut sql.NullTime
	if rec.CheckOut != nil {
		checkOut = sql.NullTime{Time: *rec.CheckOut, Valid: true}
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO attendance (identity_id, shift_id, work_date, check_in, check_out, status)
		 VALUES ($1, $2, $3::date, $4, $5, $6) RETURNING id`,
		rec.IdentityID, nullInt64(rec.ShiftID), dayParam(rec.WorkDate), rec.CheckIn, checkOut, string(rec.Status),
	).Scan(&rec.ID)
	if isUniqueViolation(err) {
		return database.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// SetCheckout sets the check-out time of a record.
func (r *AttendanceRepository) SetCheckout(ctx context.Context, id int64, checkout time.Time) error {
	res, err := r.pool.Exec(ctx, `UPDATE attendance SET check_out = $2 WHERE id = $1`, id, checkout)
	if err != nil {
		return fmt.Errorf("update check-out: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attendance %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func scanAttendanceRow(scanner interface{ Scan(...any) error }, loc *time.Location) (database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var shiftID sql.NullInt64
	var checkOut sql.NullTime
	var status string
	if err := scanner.Scan(
		&rec.ID, &rec.IdentityID, &shiftID, &rec.WorkDate, &rec.CheckIn, &checkOut, &status,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan attendance: %w", err)
	}
	rec.WorkDate = dayIn(rec.WorkDate, loc)
	rec.CheckIn = rec.CheckIn.In(loc)
	rec.Status = database.AttendanceStatus(status)
	if shiftID.Valid {
		id := shiftID.Int64
		rec.ShiftID = &id
	}
	if checkOut.Valid {
		t := checkOut.Time.In(loc)
		rec.CheckOut = &t
	}
	return rec, nil
}
