// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ErrInjected is the default error returned by TxFailOnWrite.
var ErrInjected = errors.New("injected failure")

type tables struct {
	identities map[int64]database.Identity
	shifts     map[int64]database.Shift
	attendance map[int64]database.AttendanceRecord
	leaves     map[int64]database.LeaveRequest
	payrolls   map[int64]database.PayrollRecord
	nextID     int64
}

func (t *tables) clone() *tables {
	c := &tables{
		identities: make(map[int64]database.Identity, len(t.identities)),
		shifts:     make(map[int64]database.Shift, len(t.shifts)),
		attendance: make(map[int64]database.AttendanceRecord, len(t.attendance)),
		leaves:     make(map[int64]database.LeaveRequest, len(t.leaves)),
		payrolls:   make(map[int64]database.PayrollRecord, len(t.payrolls)),
		nextID:     t.nextID,
	}
	for k, v := range t.identities {
		c.identities[k] = v
	}
	for k, v := range t.shifts {
		c.shifts[k] = v
	}
	for k, v := range t.attendance {
		c.attendance[k] = v
	}
	for k, v := range t.leaves {
		c.leaves[k] = v
	}
	for k, v := range t.payrolls {
		c.payrolls[k] = v
	}
	return c
}

func (t *tables) id() int64 {
	t.nextID++
	return t.nextID
}

// Store is a mock implementation of database.Store
type Store struct {
	mu   sync.RWMutex
	data *tables
	loc  *time.Location

	attendanceWrites int

	// Error injection
	GetIdentityError      error
	ListIdentitiesError   error
	NearestError          error
	CreateIdentityError   error
	SaveEmbeddingError    error
	ListShiftsError       error
	GetAttendanceError    error
	ListAttendanceError   error
	CreateAttendanceError error
	SetCheckoutError      error
	GetLeaveError         error
	CreateLeaveError      error
	GetPayrollError       error
	CreatePayrollError    error
	ListPayrollsError     error

	// TxFailOnWrite makes the Nth write (1-based) inside InLeaveTx fail with
	// TxError, or ErrInjected when TxError is nil. Zero disables it.
	TxFailOnWrite int
	TxError       error

	// OnCreateAttendance, if set, runs before every CreateAttendance outside a transaction.
	OnCreateAttendance func()
}

var _ database.Store = (*Store)(nil)

// NewStore creates an empty mock store. Calendar days are compared in loc.
func NewStore(loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		loc: loc,
		data: &tables{
			identities: make(map[int64]database.Identity),
			shifts:     make(map[int64]database.Shift),
			attendance: make(map[int64]database.AttendanceRecord),
			leaves:     make(map[int64]database.LeaveRequest),
			payrolls:   make(map[int64]database.PayrollRecord),
		},
	}
}

// AddIdentity adds an identity and returns it with its assigned ID
func (m *Store) AddIdentity(identity database.Identity) database.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity.ID = m.data.id()
	identity.UpdatedAt = time.Now()
	m.data.identities[identity.ID] = identity
	return identity
}

// AddShift adds a shift and returns it with its assigned ID
func (m *Store) AddShift(s database.Shift) database.Shift {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.data.id()
	m.data.shifts[s.ID] = s
	return s
}

// AddAttendance adds an attendance record directly, bypassing uniqueness checks
func (m *Store) AddAttendance(rec database.AttendanceRecord) database.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.data.id()
	rec.WorkDate = database.DayOf(rec.WorkDate, m.loc)
	m.data.attendance[rec.ID] = rec
	return rec
}

// AttendanceWrites returns how many attendance creates and check-out updates succeeded
func (m *Store) AttendanceWrites() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attendanceWrites
}

// AllAttendance returns every attendance record ordered by ID
func (m *Store) AllAttendance() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.AttendanceRecord, 0, len(m.data.attendance))
	for _, rec := range m.data.attendance {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetIdentity retrieves an identity by ID
func (m *Store) GetIdentity(ctx context.Context, id int64) (*database.Identity, error) {
	if m.GetIdentityError != nil {
		return nil, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.data.identities[id]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

// ListIdentities returns identities ordered by ID
func (m *Store) ListIdentities(ctx context.Context, activeOnly bool) ([]database.Identity, error) {
	if m.ListIdentitiesError != nil {
		return nil, m.ListIdentitiesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Identity
	for _, identity := range m.data.identities {
		if activeOnly && !identity.Active {
			continue
		}
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NearestIdentities returns active, enrolled identities ordered by cosine distance
func (m *Store) NearestIdentities(ctx context.Context, probe []float32, limit int) ([]database.Identity, error) {
	if m.NearestError != nil {
		return nil, m.NearestError
	}
	identities, err := m.ListIdentities(ctx, true)
	if err != nil {
		return nil, err
	}
	var out []database.Identity
	for _, identity := range identities {
		if identity.Enrolled() {
			out = append(out, identity)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return database.CosineDistance(probe, out[i].Embedding) < database.CosineDistance(probe, out[j].Embedding)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateIdentity stores a new identity
func (m *Store) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	if m.CreateIdentityError != nil {
		return m.CreateIdentityError
	}
	*identity = m.AddIdentity(*identity)
	return nil
}

// SaveEmbedding replaces the reference vector of an identity
func (m *Store) SaveEmbedding(ctx context.Context, id int64, embedding []float32) error {
	if m.SaveEmbeddingError != nil {
		return m.SaveEmbeddingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.data.identities[id]
	if !ok {
		return fmt.Errorf("identity %d not found", id)
	}
	identity.Embedding = append([]float32(nil), embedding...)
	identity.UpdatedAt = time.Now()
	m.data.identities[id] = identity
	return nil
}

// SetActive soft-deletes or restores an identity
func (m *Store) SetActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.data.identities[id]
	if !ok {
		return fmt.Errorf("identity %d not found", id)
	}
	identity.Active = active
	m.data.identities[id] = identity
	return nil
}

// DeleteIdentity removes an identity and cascades to its attendance history
func (m *Store) DeleteIdentity(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.identities, id)
	for recID, rec := range m.data.attendance {
		if rec.IdentityID == id {
			delete(m.data.attendance, recID)
		}
	}
	return nil
}

// ListShifts returns all shifts in ID order
func (m *Store) ListShifts(ctx context.Context) ([]database.Shift, error) {
	if m.ListShiftsError != nil {
		return nil, m.ListShiftsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Shift, 0, len(m.data.shifts))
	for _, s := range m.data.shifts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetShift retrieves a shift by ID
func (m *Store) GetShift(ctx context.Context, id int64) (*database.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data.shifts[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func findAttendance(t *tables, loc *time.Location, identityID int64, day time.Time) *database.AttendanceRecord {
	day = database.DayOf(day, loc)
	for _, rec := range t.attendance {
		if rec.IdentityID == identityID && rec.WorkDate.Equal(day) {
			return &rec
		}
	}
	return nil
}

func insertAttendance(t *tables, loc *time.Location, rec *database.AttendanceRecord) error {
	if findAttendance(t, loc, rec.IdentityID, rec.WorkDate) != nil {
		return database.ErrDuplicate
	}
	rec.ID = t.id()
	rec.WorkDate = database.DayOf(rec.WorkDate, loc)
	t.attendance[rec.ID] = *rec
	return nil
}

// GetAttendanceForDay returns the record for the calendar day, nil if none
func (m *Store) GetAttendanceForDay(
	ctx context.Context, identityID int64, day time.Time,
) (*database.AttendanceRecord, error) {
	if m.GetAttendanceError != nil {
		return nil, m.GetAttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findAttendance(m.data, m.loc, identityID, day), nil
}

// ListAttendance returns records with WorkDate in [from, to)
func (m *Store) ListAttendance(
	ctx context.Context, identityID int64, from, to time.Time,
) ([]database.AttendanceRecord, error) {
	if m.ListAttendanceError != nil {
		return nil, m.ListAttendanceError
	}
	from = database.DayOf(from, m.loc)
	to = database.DayOf(to, m.loc)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.AttendanceRecord
	for _, rec := range m.data.attendance {
		if identityID != 0 && rec.IdentityID != identityID {
			continue
		}
		if rec.WorkDate.Before(from) || !rec.WorkDate.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkDate.Equal(out[j].WorkDate) {
			return out[i].WorkDate.Before(out[j].WorkDate)
		}
		return out[i].IdentityID < out[j].IdentityID
	})
	return out, nil
}

// CountAttendanceByStatus counts records per status
func (m *Store) CountAttendanceByStatus(
	ctx context.Context, identityID int64, from, to time.Time,
) (map[database.AttendanceStatus]int, error) {
	records, err := m.ListAttendance(ctx, identityID, from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[database.AttendanceStatus]int)
	for _, rec := range records {
		counts[rec.Status]++
	}
	return counts, nil
}

// CreateAttendance inserts a record, ErrDuplicate if the day is taken
func (m *Store) CreateAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	if m.CreateAttendanceError != nil {
		return m.CreateAttendanceError
	}
	if m.OnCreateAttendance != nil {
		m.OnCreateAttendance()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := insertAttendance(m.data, m.loc, rec); err != nil {
		return err
	}
	m.attendanceWrites++
	return nil
}

// SetCheckout sets the check-out time of a record
func (m *Store) SetCheckout(ctx context.Context, id int64, checkout time.Time) error {
	if m.SetCheckoutError != nil {
		return m.SetCheckoutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data.attendance[id]
	if !ok {
		return fmt.Errorf("attendance %d not found", id)
	}
	rec.CheckOut = &checkout
	m.data.attendance[id] = rec
	m.attendanceWrites++
	return nil
}

// GetLeave retrieves a leave request by ID
func (m *Store) GetLeave(ctx context.Context, id int64) (*database.LeaveRequest, error) {
	if m.GetLeaveError != nil {
		return nil, m.GetLeaveError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	leave, ok := m.data.leaves[id]
	if !ok {
		return nil, nil
	}
	return &leave, nil
}

// CreateLeave stores a new leave request
func (m *Store) CreateLeave(ctx context.Context, leave *database.LeaveRequest) error {
	if m.CreateLeaveError != nil {
		return m.CreateLeaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	leave.ID = m.data.id()
	if leave.Status == "" {
		leave.Status = database.LeavePending
	}
	if leave.CreatedAt.IsZero() {
		leave.CreatedAt = time.Now()
	}
	m.data.leaves[leave.ID] = *leave
	return nil
}

// ListLeaves returns leave requests matching the filter, newest first
func (m *Store) ListLeaves(ctx context.Context, filter database.LeaveFilter) ([]database.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.LeaveRequest
	for _, leave := range m.data.leaves {
		if filter.IdentityID != 0 && leave.IdentityID != filter.IdentityID {
			continue
		}
		if filter.Status != "" && leave.Status != filter.Status {
			continue
		}
		out = append(out, leave)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// InLeaveTx runs fn against a staged copy of the data while holding the store
// lock. The copy replaces the live data only if fn succeeds. fn must only use tx.
func (m *Store) InLeaveTx(ctx context.Context, fn func(tx database.LeaveTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &leaveTx{store: m, data: m.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

type leaveTx struct {
	store  *Store
	data   *tables
	writes int
}

func (t *leaveTx) write() error {
	t.writes++
	if t.store.TxFailOnWrite > 0 && t.writes == t.store.TxFailOnWrite {
		if t.store.TxError != nil {
			return t.store.TxError
		}
		return ErrInjected
	}
	return nil
}

func (t *leaveTx) GetLeaveForUpdate(ctx context.Context, id int64) (*database.LeaveRequest, error) {
	if t.store.GetLeaveError != nil {
		return nil, t.store.GetLeaveError
	}
	leave, ok := t.data.leaves[id]
	if !ok {
		return nil, nil
	}
	return &leave, nil
}

func (t *leaveTx) UpdateLeaveDecision(
	ctx context.Context, id int64, status database.LeaveStatus, decidedBy *int64, comment string, decidedAt time.Time,
) error {
	if err := t.write(); err != nil {
		return err
	}
	leave, ok := t.data.leaves[id]
	if !ok {
		return fmt.Errorf("leave %d not found", id)
	}
	leave.Status = status
	leave.DecidedBy = decidedBy
	leave.AdminComment = comment
	leave.DecidedAt = &decidedAt
	t.data.leaves[id] = leave
	return nil
}

func (t *leaveTx) GetAttendanceForDay(
	ctx context.Context, identityID int64, day time.Time,
) (*database.AttendanceRecord, error) {
	return findAttendance(t.data, t.store.loc, identityID, day), nil
}

func (t *leaveTx) CreateAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	if err := t.write(); err != nil {
		return err
	}
	return insertAttendance(t.data, t.store.loc, rec)
}

func (t *leaveTx) MarkOnLeave(ctx context.Context, recordID int64) error {
	if err := t.write(); err != nil {
		return err
	}
	rec, ok := t.data.attendance[recordID]
	if !ok {
		return fmt.Errorf("attendance %d not found", recordID)
	}
	rec.Status = database.StatusOnLeave
	rec.CheckOut = nil
	t.data.attendance[recordID] = rec
	return nil
}

// GetPayroll returns the confirmed record for the period, nil if none
func (m *Store) GetPayroll(ctx context.Context, identityID int64, month, year int) (*database.PayrollRecord, error) {
	if m.GetPayrollError != nil {
		return nil, m.GetPayrollError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.data.payrolls {
		if rec.IdentityID == identityID && rec.Month == month && rec.Year == year {
			return &rec, nil
		}
	}
	return nil, nil
}

// CreatePayroll inserts a record, ErrDuplicate if the period is confirmed
func (m *Store) CreatePayroll(ctx context.Context, rec *database.PayrollRecord) error {
	if m.CreatePayrollError != nil {
		return m.CreatePayrollError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.payrolls {
		if existing.IdentityID == rec.IdentityID && existing.Month == rec.Month && existing.Year == rec.Year {
			return database.ErrDuplicate
		}
	}
	rec.ID = m.data.id()
	rec.CreatedAt = time.Now()
	m.data.payrolls[rec.ID] = *rec
	return nil
}

// ListPayrolls returns records matching the filter, newest period first
func (m *Store) ListPayrolls(ctx context.Context, filter database.PayrollFilter) ([]database.PayrollRecord, error) {
	if m.ListPayrollsError != nil {
		return nil, m.ListPayrollsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.PayrollRecord
	for _, rec := range m.data.payrolls {
		if filter.IdentityID != 0 && rec.IdentityID != filter.IdentityID {
			continue
		}
		if filter.Month != 0 && rec.Month != filter.Month {
			continue
		}
		if filter.Year != 0 && rec.Year != filter.Year {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].IdentityID < out[j].IdentityID
	})
	return out, nil
}
