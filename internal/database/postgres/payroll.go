package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// PayrollRepository stores confirmed payroll records.
type PayrollRepository struct {
	pool *Pool
}

// NewPayrollRepository creates a new PostgreSQL payroll repository.
func NewPayrollRepository(pool *Pool) *PayrollRepository {
	return &PayrollRepository{pool: pool}
}

const payrollColumns = `id, identity_id, month, year, base_salary, workdays, late_count, penalty_per_late,
	bonus, gross, penalty, net, confirmed_by, notes, created_at`

// GetPayroll returns the confirmed record for the period, nil if none.
func (r *PayrollRepository) GetPayroll(ctx context.Context, identityID int64, month, year int) (*database.PayrollRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+payrollColumns+` FROM payrolls WHERE identity_id = $1 AND month = $2 AND year = $3`,
		identityID, month, year)
	rec, err := scanPayrollRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreatePayroll inserts a confirmed record, ErrDuplicate if the period is taken.
func (r *PayrollRepository) CreatePayroll(ctx context.Context, rec *database.PayrollRecord) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payrolls (identity_id, month, year, base_salary, workdays, late_count, penalty_per_late,
		                       bonus, gross, penalty, net, confirmed_by, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at`,
		rec.IdentityID, rec.Month, rec.Year, rec.BaseSalary, rec.Workdays, rec.LateCount, rec.PenaltyPerLate,
		rec.Bonus, rec.Gross, rec.Penalty, rec.Net, rec.ConfirmedBy, rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt)
	if isUniqueViolation(err) {
		return database.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert payroll: %w", err)
	}
	return nil
}

// ListPayrolls returns records matching the filter, newest period first.
func (r *PayrollRepository) ListPayrolls(ctx context.Context, filter database.PayrollFilter) ([]database.PayrollRecord, error) {
	var where []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if filter.IdentityID != 0 {
		add("identity_id", filter.IdentityID)
	}
	if filter.Month != 0 {
		add("month", filter.Month)
	}
	if filter.Year != 0 {
		add("year", filter.Year)
	}

	query := `SELECT ` + payrollColumns + ` FROM payrolls`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY year DESC, month DESC, identity_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payrolls: %w", err)
	}
	defer rows.Close()

	var records []database.PayrollRecord
	for rows.Next() {
		rec, err := scanPayrollRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payrolls: %w", err)
	}
	return records, nil
}

func scanPayrollRow(scanner interface{ Scan(...any) error }) (database.PayrollRecord, error) {
	var rec database.PayrollRecord
	err := scanner.Scan(
		&rec.ID, &rec.IdentityID, &rec.Month, &rec.Year, &rec.BaseSalary, &rec.Workdays, &rec.LateCount,
		&rec.PenaltyPerLate, &rec.Bonus, &rec.Gross, &rec.Penalty, &rec.Net, &rec.ConfirmedBy, &rec.Notes,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan payroll: %w", err)
	}
	return rec, nil
}
