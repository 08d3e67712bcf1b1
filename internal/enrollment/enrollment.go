// Package enrollment builds an identity's reference vector from captures
// taken at three head poses.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"golang.org/x/sync/errgroup"
)

// Steps are the poses every session must capture, in the order they are asked for.
var Steps = []facematch.Pose{facematch.PoseCenter, facematch.PoseLeft, facematch.PoseRight}

// Store is the storage enrollment needs.
type Store interface {
	database.IdentityWriter
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Threshold          float64
	SessionTTL         time.Duration
	RecognitionTimeout time.Duration
	CandidateLimit     int
	MaxSessions        int
}

// Progress describes an open session.
type Progress struct {
	SessionID  string           `json:"session_id"`
	IdentityID int64            `json:"identity_id"`
	Completed  []facematch.Pose `json:"completed"`
	Remaining  []facematch.Pose `json:"remaining"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// Done reports whether every step has been captured.
func (p *Progress) Done() bool {
	return len(p.Remaining) == 0
}

// Capture is the outcome of an accepted capture.
type Capture struct {
	Progress
	Pose   facematch.Pose   `json:"pose"`
	Angles facematch.Angles `json:"angles"`
}

type session struct {
	id         string
	identityID int64
	vectors    map[facematch.Pose][]float32
	expiresAt  time.Time
}

func (s *session) progress() *Progress {
	p := &Progress{SessionID: s.id, IdentityID: s.identityID, ExpiresAt: s.expiresAt}
	for _, step := range Steps {
		if _, ok := s.vectors[step]; ok {
			p.Completed = append(p.Completed, step)
		} else {
			p.Remaining = append(p.Remaining, step)
		}
	}
	return p
}

// Service runs enrollment sessions. Sessions live in a TTL cache; a
// session's deadline is fixed at Start and is not extended by access.
type Service struct {
	store     Store
	extractor recognition.Extractor
	detector  recognition.LandmarkDetector
	opts      Options

	classify func(facematch.Landmarks) (facematch.Pose, facematch.Angles)

	// mu guards session vectors and the capacity check in Start.
	mu       sync.Mutex
	sessions *ttlcache.Cache[string, *session]
}

// NewService creates an enrollment service.
func NewService(store Store, extractor recognition.Extractor, detector recognition.LandmarkDetector, opts Options) *Service {
	if opts.Threshold <= 0 {
		opts.Threshold = facematch.DefaultThreshold
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = constants.DefaultEnrollmentSessionTTL
	}
	if opts.RecognitionTimeout <= 0 {
		opts.RecognitionTimeout = constants.DefaultRecognitionTimeout
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = constants.DefaultCandidateLimit
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = constants.MaxEnrollmentSessions
	}
	return &Service{
		store:     store,
		extractor: extractor,
		detector:  detector,
		opts:      opts,
		classify:  facematch.ClassifyPose,
		sessions: ttlcache.New(
			ttlcache.WithTTL[string, *session](opts.SessionTTL),
			ttlcache.WithCapacity[string, *session](uint64(opts.MaxSessions)),
			ttlcache.WithDisableTouchOnHit[string, *session](),
		),
	}
}

// Start opens a session for an active identity.
func (s *Service) Start(ctx context.Context, identityID int64) (*Progress, error) {
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity == nil || !identity.Active {
		return nil, apperror.NotFound("identity %d not found", identityID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The cache would evict the oldest session at capacity; refuse instead.
	s.sessions.DeleteExpired()
	if n := s.sessions.Len(); n >= s.opts.MaxSessions {
		return nil, apperror.New(apperror.CodeTransient, apperror.ReasonUnavailable,
			"too many open enrollment sessions (%d)", n)
	}

	sess := &session{
		id:         uuid.NewString(),
		identityID: identityID,
		vectors:    make(map[facematch.Pose][]float32, len(Steps)),
	}
	item := s.sessions.Set(sess.id, sess, ttlcache.DefaultTTL)
	sess.expiresAt = item.ExpiresAt()
	log.Printf("enrollment: session %s started for identity %d", sess.id, identityID)
	return sess.progress(), nil
}

// Status returns the progress of an open session.
func (s *Service) Status(sessionID string) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.getLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.progress(), nil
}

// Capture accepts image as the given step. The detected pose must equal the
// step and the face must pass the liveness check. Capturing a step again
// replaces the earlier vector.
func (s *Service) Capture(ctx context.Context, sessionID string, step facematch.Pose, image []byte) (*Capture, error) {
	if !slices.Contains(Steps, step) {
		return nil, apperror.Input("unknown enrollment step %q", step)
	}
	if _, err := s.Status(sessionID); err != nil {
		return nil, err
	}
	if _, err := recognition.ValidateImage(image); err != nil {
		return nil, err
	}

	emb, lm, err := s.analyze(ctx, image)
	if err != nil {
		return nil, err
	}
	if !emb.Live {
		return nil, fmt.Errorf("%w: liveness check failed", recognition.ErrSpoofDetected)
	}
	pose, angles := s.classify(lm)
	if pose != step {
		return nil, apperror.New(apperror.CodeInput, apperror.ReasonPoseMismatch,
			"expected %s pose, detected %s (yaw %.1f)", step, pose, angles.Yaw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.getLocked(sessionID)
	if err != nil {
		return nil, err
	}
	sess.vectors[step] = emb.Vector
	return &Capture{Progress: *sess.progress(), Pose: pose, Angles: angles}, nil
}

// analyze runs embedding extraction and landmark detection concurrently
// under the recognition timeout.
func (s *Service) analyze(ctx context.Context, image []byte) (recognition.Embedding, facematch.Landmarks, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RecognitionTimeout)
	defer cancel()

	var (
		emb recognition.Embedding
		lm  facematch.Landmarks
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		emb, err = s.extractor.Extract(gctx, image)
		return err
	})
	g.Go(func() error {
		var err error
		lm, err = s.detector.Detect(gctx, image)
		return err
	})
	err := g.Wait()
	if err == nil {
		return emb, lm, nil
	}

	var appErr *apperror.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.As(err, &appErr) {
		return emb, lm, apperror.Wrap(apperror.CodeTransient, apperror.ReasonTimeout, err)
	}
	return emb, lm, err
}

// Finish averages the captured vectors and stores them as the identity's
// reference. A mean that matches a different active identity is refused.
func (s *Service) Finish(ctx context.Context, sessionID string) (*database.Identity, error) {
	s.mu.Lock()
	sess, err := s.getLocked(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	p := sess.progress()
	vectors := make([][]float32, 0, len(Steps))
	for _, step := range Steps {
		vectors = append(vectors, sess.vectors[step])
	}
	s.mu.Unlock()

	if !p.Done() {
		return nil, apperror.Input("enrollment incomplete, missing steps %v", p.Remaining)
	}
	mean := facematch.AverageEmbedding(vectors)
	if mean == nil {
		return nil, apperror.Input("captured embeddings have mismatched dimensions")
	}

	candidates, err := s.store.NearestIdentities(ctx, mean, s.opts.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("load match candidates: %w", err)
	}
	others := candidates[:0:0]
	for _, c := range candidates {
		if c.ID != p.IdentityID {
			others = append(others, c)
		}
	}
	if match, dist := facematch.Match(mean, others, s.opts.Threshold); match != nil {
		return nil, apperror.Conflict(apperror.ReasonDuplicateEnrolment,
			"face already enrolled as identity %d (distance %.4f)", match.ID, dist)
	}

	if err := s.store.SaveEmbedding(ctx, p.IdentityID, mean); err != nil {
		return nil, fmt.Errorf("save embedding: %w", err)
	}
	s.Cancel(sessionID)

	identity, err := s.store.GetIdentity(ctx, p.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity == nil {
		return nil, apperror.NotFound("identity %d not found", p.IdentityID)
	}
	log.Printf("enrollment: identity %d enrolled from %d captures", p.IdentityID, len(vectors))
	return identity, nil
}

// Cancel drops a session. Unknown IDs are ignored.
func (s *Service) Cancel(sessionID string) {
	s.sessions.Delete(sessionID)
}

// Open returns the number of unexpired sessions.
func (s *Service) Open() int {
	s.sessions.DeleteExpired()
	return s.sessions.Len()
}

func (s *Service) getLocked(sessionID string) (*session, error) {
	item := s.sessions.Get(sessionID)
	if item == nil || item.IsExpired() {
		return nil, apperror.NotFound("enrollment session %q not found or expired", sessionID)
	}
	return item.Value(), nil
}
