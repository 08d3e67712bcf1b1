// Package payroll computes monthly salaries from attendance counts and stores
// confirmed results.
package payroll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"golang.org/x/sync/errgroup"
)

// Store is the storage the calculator needs.
type Store interface {
	database.PayrollStore
	GetIdentity(ctx context.Context, id int64) (*database.Identity, error)
	ListIdentities(ctx context.Context, activeOnly bool) ([]database.Identity, error)
	CountAttendanceByStatus(ctx context.Context, identityID int64, from, to time.Time) (map[database.AttendanceStatus]int, error)
}

// Breakdown is a computed, unconfirmed salary. Amounts are rounded to two decimals.
type Breakdown struct {
	IdentityID     int64   `json:"identity_id"`
	Name           string  `json:"name"`
	Month          int     `json:"month"`
	Year           int     `json:"year"`
	BaseSalary     float64 `json:"base_salary"`
	Workdays       int     `json:"workdays"`
	LateCount      int     `json:"late_count"`
	PenaltyPerLate float64 `json:"penalty_per_late"`
	Bonus          float64 `json:"bonus"`
	YearWorkdays   int     `json:"year_workdays"`
	Gross          float64 `json:"gross"`
	Penalty        float64 `json:"penalty"`
	Net            float64 `json:"net"`
}

// Overrides replace computed inputs before confirmation. Nil fields keep the
// breakdown's value.
type Overrides struct {
	BaseSalary     *float64 `json:"base_salary,omitempty"`
	Workdays       *int     `json:"workdays,omitempty"`
	LateCount      *int     `json:"late_count,omitempty"`
	PenaltyPerLate *float64 `json:"penalty_per_late,omitempty"`
	Bonus          *float64 `json:"bonus,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Calculator computes and confirms payroll.
type Calculator struct {
	store   Store
	policy  config.PayrollConfig
	loc     *time.Location
	workers int
}

// NewCalculator creates a calculator. Month and year boundaries are taken in loc.
func NewCalculator(store Store, policy config.PayrollConfig, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	if policy.StandardWorkdays <= 0 {
		policy.StandardWorkdays = config.DefaultPayroll().StandardWorkdays
	}
	return &Calculator{store: store, policy: policy, loc: loc, workers: constants.WorkerPoolSize}
}

// Policy returns the payroll constants in use.
func (c *Calculator) Policy() config.PayrollConfig {
	return c.policy
}

// Compute derives the salary of one identity for a month without storing it.
func (c *Calculator) Compute(ctx context.Context, identityID int64, month, year int) (*Breakdown, error) {
	if err := validPeriod(month, year); err != nil {
		return nil, err
	}
	identity, err := c.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity == nil {
		return nil, apperror.NotFound("identity %d not found", identityID)
	}
	return c.compute(ctx, identity, month, year)
}

func (c *Calculator) compute(ctx context.Context, identity *database.Identity, month, year int) (*Breakdown, error) {
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, c.loc)
	monthly, err := c.store.CountAttendanceByStatus(ctx, identity.ID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("count attendance for %d/%d: %w", month, year, err)
	}
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, c.loc)
	yearly, err := c.store.CountAttendanceByStatus(ctx, identity.ID, yearStart, yearStart.AddDate(1, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("count attendance for %d: %w", year, err)
	}

	yearWorkdays := workdays(yearly)
	bonus := 0.0
	if yearWorkdays > c.policy.BonusThresholdDays {
		bonus = c.policy.BonusAmount
	}

	in := inputs{
		baseSalary:     identity.BaseSalary,
		workdays:       workdays(monthly),
		lateCount:      monthly[database.StatusLate],
		penaltyPerLate: c.policy.PenaltyPerLate,
		bonus:          bonus,
	}
	out := c.calculate(in)

	return &Breakdown{
		IdentityID:     identity.ID,
		Name:           identity.Name,
		Month:          month,
		Year:           year,
		BaseSalary:     in.baseSalary,
		Workdays:       in.workdays,
		LateCount:      in.lateCount,
		PenaltyPerLate: in.penaltyPerLate,
		Bonus:          in.bonus,
		YearWorkdays:   yearWorkdays,
		Gross:          round2(out.gross),
		Penalty:        round2(out.penalty),
		Net:            round2(out.net),
	}, nil
}

// Confirm applies overrides to b, recomputes the outputs and stores the
// result. A period can be confirmed once; later attempts are conflicts and
// leave the stored record untouched.
func (c *Calculator) Confirm(ctx context.Context, b Breakdown, ov Overrides, confirmedBy int64) (*database.PayrollRecord, error) {
	if err := validPeriod(b.Month, b.Year); err != nil {
		return nil, err
	}
	in := inputs{
		baseSalary:     b.BaseSalary,
		workdays:       b.Workdays,
		lateCount:      b.LateCount,
		penaltyPerLate: b.PenaltyPerLate,
		bonus:          b.Bonus,
	}
	in.apply(ov)
	if err := in.validate(); err != nil {
		return nil, err
	}

	identity, err := c.store.GetIdentity(ctx, b.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity == nil {
		return nil, apperror.NotFound("identity %d not found", b.IdentityID)
	}

	existing, err := c.store.GetPayroll(ctx, b.IdentityID, b.Month, b.Year)
	if err != nil {
		return nil, fmt.Errorf("get payroll: %w", err)
	}
	if existing != nil {
		return nil, confirmed(b)
	}

	out := c.calculate(in)
	rec := &database.PayrollRecord{
		IdentityID:     b.IdentityID,
		Month:          b.Month,
		Year:           b.Year,
		BaseSalary:     in.baseSalary,
		Workdays:       in.workdays,
		LateCount:      in.lateCount,
		PenaltyPerLate: in.penaltyPerLate,
		Bonus:          in.bonus,
		Gross:          round2(out.gross),
		Penalty:        round2(out.penalty),
		Net:            round2(out.net),
		ConfirmedBy:    confirmedBy,
		Notes:          ov.Notes,
	}
	err = c.store.CreatePayroll(ctx, rec)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, confirmed(b)
	}
	if err != nil {
		return nil, fmt.Errorf("create payroll: %w", err)
	}

	log.Printf("payroll: %02d/%d confirmed for identity %d by %d, net %.2f", b.Month, b.Year, b.IdentityID, confirmedBy, rec.Net)
	return rec, nil
}

// ComputeAll computes the month for every active identity, ordered by ID.
// progress, if not nil, is called after each identity.
func (c *Calculator) ComputeAll(ctx context.Context, month, year int, progress func(done, total int)) ([]Breakdown, error) {
	if err := validPeriod(month, year); err != nil {
		return nil, err
	}
	identities, err := c.store.ListIdentities(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	results := make([]Breakdown, len(identities))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range identities {
		g.Go(func() error {
			b, err := c.compute(gctx, &identities[i], month, year)
			if err != nil {
				return fmt.Errorf("identity %d: %w", identities[i].ID, err)
			}
			results[i] = *b
			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(identities))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// History lists confirmed records, newest period first.
func (c *Calculator) History(ctx context.Context, filter database.PayrollFilter) ([]database.PayrollRecord, error) {
	if filter.Month < 0 || filter.Month > 12 {
		return nil, apperror.Input("invalid month %d", filter.Month)
	}
	records, err := c.store.ListPayrolls(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list payrolls: %w", err)
	}
	return records, nil
}

type inputs struct {
	baseSalary     float64
	workdays       int
	lateCount      int
	penaltyPerLate float64
	bonus          float64
}

func (in *inputs) apply(ov Overrides) {
	if ov.BaseSalary != nil {
		in.baseSalary = *ov.BaseSalary
	}
	if ov.Workdays != nil {
		in.workdays = *ov.Workdays
	}
	if ov.LateCount != nil {
		in.lateCount = *ov.LateCount
	}
	if ov.PenaltyPerLate != nil {
		in.penaltyPerLate = *ov.PenaltyPerLate
	}
	if ov.Bonus != nil {
		in.bonus = *ov.Bonus
	}
}

func (in *inputs) validate() error {
	switch {
	case in.baseSalary < 0 || math.IsNaN(in.baseSalary) || math.IsInf(in.baseSalary, 0):
		return apperror.Input("invalid base salary %v", in.baseSalary)
	case in.workdays < 0 || in.workdays > 31:
		return apperror.Input("invalid workdays %d", in.workdays)
	case in.lateCount < 0 || in.lateCount > 31:
		return apperror.Input("invalid late count %d", in.lateCount)
	case in.penaltyPerLate < 0 || math.IsNaN(in.penaltyPerLate) || math.IsInf(in.penaltyPerLate, 0):
		return apperror.Input("invalid penalty per late %v", in.penaltyPerLate)
	case in.bonus < 0 || math.IsNaN(in.bonus) || math.IsInf(in.bonus, 0):
		return apperror.Input("invalid bonus %v", in.bonus)
	}
	return nil
}

type outputs struct {
	gross   float64
	penalty float64
	net     float64
}

// calculate works on unrounded values; callers round once at the end.
func (c *Calculator) calculate(in inputs) outputs {
	gross := in.baseSalary / float64(c.policy.StandardWorkdays) * float64(in.workdays)
	penalty := float64(in.lateCount) * in.penaltyPerLate
	return outputs{gross: gross, penalty: penalty, net: gross - penalty + in.bonus}
}

func workdays(counts map[database.AttendanceStatus]int) int {
	n := 0
	for status, count := range counts {
		if status.CountsAsWorkday() {
			n += count
		}
	}
	return n
}

func validPeriod(month, year int) error {
	if month < 1 || month > 12 {
		return apperror.Input("invalid month %d, want 1-12", month)
	}
	if year < 1970 || year > 9999 {
		return apperror.Input("invalid year %d", year)
	}
	return nil
}

func confirmed(b Breakdown) error {
	return apperror.Conflict(apperror.ReasonPayrollConfirmed,
		"payroll %02d/%d of identity %d is already confirmed", b.Month, b.Year, b.IdentityID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
