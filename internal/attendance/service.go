package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/daylock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/shift"
)

// Store is the storage the attendance service needs.
type Store interface {
	database.IdentityReader
	database.ShiftReader
	database.AttendanceWriter
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Threshold          float64
	Cooldown           time.Duration
	Location           *time.Location
	AfterCheckout      AfterCheckoutPolicy
	RecognitionTimeout time.Duration
	CandidateLimit     int
	Now                func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Threshold <= 0 {
		o.Threshold = facematch.DefaultThreshold
	}
	if o.Cooldown <= 0 {
		o.Cooldown = constants.DefaultCooldown
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.AfterCheckout == "" {
		o.AfterCheckout = AfterCheckoutIgnore
	}
	if o.RecognitionTimeout <= 0 {
		o.RecognitionTimeout = constants.DefaultRecognitionTimeout
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = constants.DefaultCandidateLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service runs the per-day attendance state machine.
type Service struct {
	store     Store
	extractor recognition.Extractor
	locks     *daylock.Locker
	opts      Options
}

// NewService creates an attendance service. locks is shared with every other
// writer of attendance records in the process.
func NewService(store Store, extractor recognition.Extractor, locks *daylock.Locker, opts Options) *Service {
	opts.applyDefaults()
	if locks == nil {
		locks = daylock.New()
	}
	return &Service{store: store, extractor: extractor, locks: locks, opts: opts}
}

// Location returns the location calendar days are computed in.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// MatchFace identifies the person in an image. Spoofed captures, missing
// faces and unknown faces are errors; nothing is written.
func (s *Service) MatchFace(ctx context.Context, image []byte) (*database.Identity, float64, error) {
	if _, err := recognition.ValidateImage(image); err != nil {
		return nil, 1, err
	}

	ectx, cancel := context.WithTimeout(ctx, s.opts.RecognitionTimeout)
	emb, err := s.extractor.Extract(ectx, image)
	deadline := errors.Is(ectx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		var appErr *apperror.Error
		if deadline && !errors.As(err, &appErr) {
			return nil, 1, apperror.Wrap(apperror.CodeTransient, apperror.ReasonTimeout, err)
		}
		return nil, 1, err
	}
	if !emb.Live {
		return nil, 1, fmt.Errorf("%w: liveness check failed", recognition.ErrSpoofDetected)
	}

	candidates, err := s.store.NearestIdentities(ctx, emb.Vector, s.opts.CandidateLimit)
	if err != nil {
		return nil, 1, fmt.Errorf("load match candidates: %w", err)
	}
	identity, dist := facematch.Match(emb.Vector, candidates, s.opts.Threshold)
	if identity == nil {
		return nil, dist, apperror.New(apperror.CodeRecognition, apperror.ReasonNoMatch,
			"no identity within threshold (nearest distance %.4f)", dist)
	}
	return identity, dist, nil
}

// Scan recognizes the face in image and applies the resulting transition at
// the time the scan arrived.
func (s *Service) Scan(ctx context.Context, image []byte) (*Result, error) {
	now := s.opts.Now()
	identity, dist, err := s.MatchFace(ctx, image)
	if err != nil {
		return nil, err
	}
	res, err := s.Transition(ctx, identity.ID, now)
	if err != nil {
		return nil, err
	}
	res.Identity = identity
	res.Distance = dist
	return res, nil
}

// ResolveShift returns the shift whose window contains now, nil if none.
func (s *Service) ResolveShift(ctx context.Context, now time.Time) (*database.Shift, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shift.Resolve(now.In(s.opts.Location), shifts), nil
}

// Transition applies one scan of identityID at now to that day's record.
func (s *Service) Transition(ctx context.Context, identityID int64, now time.Time) (*Result, error) {
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity == nil || !identity.Active {
		return nil, apperror.NotFound("identity %d not found", identityID)
	}

	now = now.In(s.opts.Location)
	day := database.DayOf(now, s.opts.Location)

	unlock := s.locks.Lock(identityID, day)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := s.store.GetAttendanceForDay(ctx, identityID, day)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	if rec == nil {
		return s.checkIn(ctx, identityID, day, now)
	}
	return s.decide(ctx, rec, now)
}

func (s *Service) checkIn(ctx context.Context, identityID int64, day, now time.Time) (*Result, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	sh, status := shift.StatusFor(now, shifts)

	rec := &database.AttendanceRecord{
		IdentityID: identityID,
		WorkDate:   day,
		CheckIn:    now,
		Status:     status,
	}
	if sh != nil {
		id := sh.ID
		rec.ShiftID = &id
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = s.store.CreateAttendance(ctx, rec)
	if errors.Is(err, database.ErrDuplicate) {
		// Another process won the race for this day.
		existing, getErr := s.store.GetAttendanceForDay(ctx, identityID, day)
		if getErr != nil {
			return nil, fmt.Errorf("get attendance after duplicate: %w", getErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("attendance for identity %d on %s vanished after duplicate", identityID, database.DayKey(day))
		}
		return &Result{Action: ActionDuplicate, Status: existing.Status, Reason: ReasonCooldown, Record: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create attendance: %w", err)
	}

	log.Printf("attendance: identity %d checked in at %s (%s)", identityID, now.Format(time.RFC3339), status)
	return &Result{Action: ActionCheckIn, Status: status, Record: rec}, nil
}

func (s *Service) decide(ctx context.Context, rec *database.AttendanceRecord, now time.Time) (*Result, error) {
	if rec.Status == database.StatusOnLeave {
		return &Result{Action: ActionRejected, Status: rec.Status, Reason: ReasonOnLeave, Record: rec}, nil
	}
	if now.Sub(rec.LastAction()) < s.opts.Cooldown {
		return &Result{Action: ActionDuplicate, Status: rec.Status, Reason: ReasonCooldown, Record: rec}, nil
	}

	if rec.CheckOut != nil {
		if s.opts.AfterCheckout == AfterCheckoutReject {
			return &Result{Action: ActionRejected, Status: rec.Status, Reason: ReasonDayComplete, Record: rec}, nil
		}
		return &Result{Action: ActionDuplicate, Status: rec.Status, Reason: ReasonDayComplete, Record: rec}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.SetCheckout(ctx, rec.ID, now); err != nil {
		return nil, fmt.Errorf("set check-out: %w", err)
	}
	out := now
	rec.CheckOut = &out

	log.Printf("attendance: identity %d checked out at %s", rec.IdentityID, now.Format(time.RFC3339))
	return &Result{Action: ActionCheckOut, Status: rec.Status, Record: rec}, nil
}
