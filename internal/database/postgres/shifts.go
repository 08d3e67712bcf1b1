package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ShiftRepository provides read access to shift definitions.
type ShiftRepository struct {
	pool *Pool
}

// NewShiftRepository creates a new PostgreSQL shift repository.
func NewShiftRepository(pool *Pool) *ShiftRepository {
	return &ShiftRepository{pool: pool}
}

const shiftColumns = `id, name, start_time::text, end_time::text, grace_period_minutes`

// ListShifts returns all shifts in ID order.
func (r *ShiftRepository) ListShifts(ctx context.Context) ([]database.Shift, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shiftColumns+` FROM shifts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []database.Shift
	for rows.Next() {
		s, err := scanShiftRow(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shifts: %w", err)
	}
	return shifts, nil
}

// GetShift retrieves a shift by ID.
func (r *ShiftRepository) GetShift(ctx context.Context, id int64) (*database.Shift, error) {
	s, err := scanShiftRow(r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateShift stores a new shift. Shift administration is outside the engine;
// this exists for provisioning and tests.
func (r *ShiftRepository) CreateShift(ctx context.Context, s *database.Shift) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO shifts (name, start_time, end_time, grace_period_minutes)
		 VALUES ($1, $2::time, $3::time, $4) RETURNING id`,
		s.Name, s.Start.String(), s.End.String(), s.GracePeriodMinutes,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("insert shift: %w", err)
	}
	return nil
}

func scanShiftRow(scanner interface{ Scan(...any) error }) (database.Shift, error) {
	var s database.Shift
	var start, end string
	if err := scanner.Scan(&s.ID, &s.Name, &start, &end, &s.GracePeriodMinutes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scan shift: %w", err)
	}
	var err error
	if s.Start, err = database.ParseClock(start); err != nil {
		return s, fmt.Errorf("shift %d start: %w", s.ID, err)
	}
	if s.End, err = database.ParseClock(end); err != nil {
		return s, fmt.Errorf("shift %d end: %w", s.ID, err)
	}
	return s, nil
}
