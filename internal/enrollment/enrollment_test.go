package enrollment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// fakeRecognizer serves both interfaces. The yaw it reports travels to the
// classifier through Landmarks.ImageWidth so tests can steer the pose.
type fakeRecognizer struct {
	vector     []float32
	live       bool
	yaw        int
	extractErr error
	detectErr  error
	calls      atomic.Int32
}

func (f *fakeRecognizer) Extract(ctx context.Context, image []byte) (recognition.Embedding, error) {
	f.calls.Add(1)
	if f.extractErr != nil {
		return recognition.Embedding{}, f.extractErr
	}
	return recognition.Embedding{Vector: f.vector, Live: f.live}, nil
}

func (f *fakeRecognizer) Detect(ctx context.Context, image []byte) (facematch.Landmarks, error) {
	f.calls.Add(1)
	if f.detectErr != nil {
		return facematch.Landmarks{}, f.detectErr
	}
	return facematch.Landmarks{ImageWidth: f.yaw}, nil
}

func yawClassifier(lm facematch.Landmarks) (facematch.Pose, facematch.Angles) {
	a := facematch.Angles{Yaw: float64(lm.ImageWidth)}
	switch {
	case a.Yaw > facematch.YawThresholdDegrees:
		return facematch.PoseRight, a
	case a.Yaw < -facematch.YawThresholdDegrees:
		return facematch.PoseLeft, a
	}
	return facematch.PoseCenter, a
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*5 + y)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, rec *fakeRecognizer, ttl time.Duration) (*Service, *mock.Store, database.Identity) {
	t.Helper()
	store := mock.NewStore(time.UTC)
	identity := store.AddIdentity(database.Identity{Name: "Lan", Active: true})
	svc := NewService(store, rec, rec, Options{SessionTTL: ttl})
	svc.classify = yawClassifier
	return svc, store, identity
}

func captureAll(t *testing.T, svc *Service, rec *fakeRecognizer, sessionID string, vectors map[facematch.Pose][]float32) {
	t.Helper()
	yaws := map[facematch.Pose]int{facematch.PoseCenter: 0, facematch.PoseLeft: -25, facematch.PoseRight: 25}
	for _, step := range Steps {
		rec.yaw = yaws[step]
		rec.vector = vectors[step]
		if _, err := svc.Capture(context.Background(), sessionID, step, testImage(t)); err != nil {
			t.Fatalf("capture %s: %v", step, err)
		}
	}
}

func TestEnrollment_FullFlow(t *testing.T) {
	rec := &fakeRecognizer{live: true}
	svc, store, identity := newTestService(t, rec, 0)
	ctx := context.Background()

	p, err := svc.Start(ctx, identity.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(p.Remaining) != 3 || p.Done() {
		t.Fatalf("new session should need 3 steps, got %+v", p)
	}

	captureAll(t, svc, rec, p.SessionID, map[facematch.Pose][]float32{
		facematch.PoseCenter: {1, 0, 0},
		facematch.PoseLeft:   {0, 1, 0},
		facematch.PoseRight:  {0, 0, 1},
	})

	status, err := svc.Status(p.SessionID)
	if err != nil || !status.Done() {
		t.Fatalf("status after captures = %+v, %v", status, err)
	}

	got, err := svc.Finish(ctx, p.SessionID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	want := float32(1 / math.Sqrt(3))
	for i, v := range got.Embedding {
		if math.Abs(float64(v-want)) > 1e-6 {
			t.Errorf("embedding[%d] = %f, want %f", i, v, want)
		}
	}
	stored, _ := store.GetIdentity(ctx, identity.ID)
	if !stored.Enrolled() {
		t.Error("identity should be enrolled after Finish")
	}
	if svc.Open() != 0 {
		t.Errorf("session should be closed after Finish, open = %d", svc.Open())
	}
}

func TestCapture_PoseMismatch(t *testing.T) {
	rec := &fakeRecognizer{live: true, vector: []float32{1, 0}, yaw: 20}
	svc, _, identity := newTestService(t, rec, 0)
	p, err := svc.Start(context.Background(), identity.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = svc.Capture(context.Background(), p.SessionID, facematch.PoseLeft, testImage(t))
	if apperror.CodeOf(err) != apperror.CodeInput || apperror.ReasonOf(err) != apperror.ReasonPoseMismatch {
		t.Fatalf("expected input_error/pose_mismatch, got %v", err)
	}
	status, _ := svc.Status(p.SessionID)
	if len(status.Completed) != 0 {
		t.Errorf("rejected capture must not be recorded, completed = %v", status.Completed)
	}
}

func TestCapture_Failures(t *testing.T) {
	tests := []struct {
		name     string
		rec      *fakeRecognizer
		step     facematch.Pose
		wantCode apperror.Code
	}{
		{"spoof verdict", &fakeRecognizer{live: false, vector: []float32{1}}, facematch.PoseCenter, apperror.CodeSpoof},
		{"no face", &fakeRecognizer{extractErr: recognition.ErrNoFace}, facematch.PoseCenter, apperror.CodeRecognition},
		{"detector down", &fakeRecognizer{live: true, detectErr: apperror.New(apperror.CodeTransient, apperror.ReasonUnavailable, "down")}, facematch.PoseCenter, apperror.CodeTransient},
		{"unknown step", &fakeRecognizer{live: true}, facematch.PoseUnknown, apperror.CodeInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, identity := newTestService(t, tt.rec, 0)
			p, err := svc.Start(context.Background(), identity.ID)
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			_, err = svc.Capture(context.Background(), p.SessionID, tt.step, testImage(t))
			if got := apperror.CodeOf(err); got != tt.wantCode {
				t.Errorf("code = %s, want %s (%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestCapture_InvalidImageNotSent(t *testing.T) {
	rec := &fakeRecognizer{live: true}
	svc, _, identity := newTestService(t, rec, 0)
	p, _ := svc.Start(context.Background(), identity.ID)

	_, err := svc.Capture(context.Background(), p.SessionID, facematch.PoseCenter, []byte{0x00, 0x01})
	if apperror.CodeOf(err) != apperror.CodeInput {
		t.Errorf("expected input_error, got %v", err)
	}
	if rec.calls.Load() != 0 {
		t.Errorf("recognizer called %d times", rec.calls.Load())
	}
}

func TestFinish_Incomplete(t *testing.T) {
	rec := &fakeRecognizer{live: true, vector: []float32{1, 0}}
	svc, store, identity := newTestService(t, rec, 0)
	p, _ := svc.Start(context.Background(), identity.ID)
	if _, err := svc.Capture(context.Background(), p.SessionID, facematch.PoseCenter, testImage(t)); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	_, err := svc.Finish(context.Background(), p.SessionID)
	if apperror.CodeOf(err) != apperror.CodeInput {
		t.Errorf("expected input_error, got %v", err)
	}
	stored, _ := store.GetIdentity(context.Background(), identity.ID)
	if stored.Enrolled() {
		t.Error("incomplete session must not enroll")
	}
}

func TestFinish_DuplicateEnrollment(t *testing.T) {
	rec := &fakeRecognizer{live: true}
	svc, store, identity := newTestService(t, rec, 0)
	other := store.AddIdentity(database.Identity{Name: "Minh", Active: true, Embedding: []float32{1, 0, 0}})
	ctx := context.Background()

	p, _ := svc.Start(ctx, identity.ID)
	captureAll(t, svc, rec, p.SessionID, map[facematch.Pose][]float32{
		facematch.PoseCenter: {1, 0, 0},
		facematch.PoseLeft:   {0.95, 0.05, 0},
		facematch.PoseRight:  {0.95, 0, 0.05},
	})

	_, err := svc.Finish(ctx, p.SessionID)
	if !errors.Is(err, &apperror.Error{Code: apperror.CodeConflict, Reason: apperror.ReasonDuplicateEnrolment}) {
		t.Fatalf("expected duplicate_enrollment conflict, got %v", err)
	}
	stored, _ := store.GetIdentity(ctx, identity.ID)
	if stored.Enrolled() {
		t.Error("refused enrollment must not be stored")
	}

	// Soft-deleted identities are not considered.
	if err := store.SetActive(ctx, other.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := svc.Finish(ctx, p.SessionID); err != nil {
		t.Errorf("Finish after deactivating the other identity: %v", err)
	}
}

func TestFinish_ReenrollSameIdentity(t *testing.T) {
	rec := &fakeRecognizer{live: true}
	svc, store, identity := newTestService(t, rec, 0)
	ctx := context.Background()
	if err := store.SaveEmbedding(ctx, identity.ID, []float32{1, 0, 0}); err != nil {
		t.Fatalf("SaveEmbedding: %v", err)
	}

	p, _ := svc.Start(ctx, identity.ID)
	captureAll(t, svc, rec, p.SessionID, map[facematch.Pose][]float32{
		facematch.PoseCenter: {1, 0, 0},
		facematch.PoseLeft:   {1, 0.1, 0},
		facematch.PoseRight:  {1, 0, 0.1},
	})
	if _, err := svc.Finish(ctx, p.SessionID); err != nil {
		t.Errorf("re-enrolling the same identity should succeed, got %v", err)
	}
}

func TestSession_Expiry(t *testing.T) {
	rec := &fakeRecognizer{live: true, vector: []float32{1}}
	svc, _, identity := newTestService(t, rec, 20*time.Millisecond)

	p, err := svc.Start(context.Background(), identity.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if want := time.Now().Add(20 * time.Millisecond); p.ExpiresAt.After(want) {
		t.Errorf("ExpiresAt = %v, want at most %v", p.ExpiresAt, want)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := svc.Status(p.SessionID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expired session: expected not_found, got %v", err)
	}
	if svc.Open() != 0 {
		t.Errorf("open = %d, want 0", svc.Open())
	}
}

func TestSession_AccessDoesNotExtend(t *testing.T) {
	svc, _, identity := newTestService(t, &fakeRecognizer{}, time.Minute)

	p, err := svc.Start(context.Background(), identity.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	again, err := svc.Status(p.SessionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !again.ExpiresAt.Equal(p.ExpiresAt) {
		t.Errorf("ExpiresAt moved from %v to %v after access", p.ExpiresAt, again.ExpiresAt)
	}
}

func TestStart_UnknownIdentity(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeRecognizer{}, 0)
	if _, err := svc.Start(context.Background(), 404); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestStart_SessionCap(t *testing.T) {
	store := mock.NewStore(time.UTC)
	identity := store.AddIdentity(database.Identity{Name: "Lan", Active: true})
	svc := NewService(store, nil, nil, Options{MaxSessions: 2})

	var first *Progress
	for i := range 2 {
		p, err := svc.Start(context.Background(), identity.ID)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		if i == 0 {
			first = p
		}
	}
	if _, err := svc.Start(context.Background(), identity.ID); !apperror.IsRetryable(err) {
		t.Errorf("expected transient error at the cap, got %v", err)
	}
	if _, err := svc.Status(first.SessionID); err != nil {
		t.Errorf("oldest session evicted at the cap: %v", err)
	}
	svc.Cancel(first.SessionID)
	if _, err := svc.Start(context.Background(), identity.ID); err != nil {
		t.Errorf("Start after Cancel freed a slot: %v", err)
	}
}
