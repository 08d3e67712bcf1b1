package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/daylock"
	"github.com/kozaktomas/face-attendance/internal/leave"
	"github.com/kozaktomas/face-attendance/internal/payroll"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

var testLoc = time.FixedZone("ICT", 7*3600)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Attendance: config.AttendanceConfig{
			MatchThreshold: 0.68,
			Cooldown:       time.Minute,
			Timezone:       "Asia/Ho_Chi_Minh",
			AfterCheckout:  "ignore",
		},
		Payroll: config.DefaultPayroll(),
	}
}

// stubExtractor returns a fixed embedding for every image
type stubExtractor struct {
	emb recognition.Embedding
	err error
}

func (s *stubExtractor) Extract(ctx context.Context, image []byte) (recognition.Embedding, error) {
	return s.emb, s.err
}

// testEnv wires the real services to an in-memory store
type testEnv struct {
	store      *mock.Store
	extractor  *stubExtractor
	attendance *attendance.Service
	leave      *leave.Service
	payroll    *payroll.Calculator
	identity   database.Identity
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := mock.NewStore(testLoc)
	start, _ := database.ParseClock("08:00")
	end, _ := database.ParseClock("17:00")
	store.AddShift(database.Shift{Name: "Morning", Start: start, End: end, GracePeriodMinutes: 15})
	identity := store.AddIdentity(database.Identity{Name: "Lan", Active: true, Embedding: []float32{1, 0, 0}, BaseSalary: 2_600_000})

	env := &testEnv{
		store:     store,
		extractor: &stubExtractor{emb: recognition.Embedding{Vector: []float32{1, 0, 0}, Live: true}},
		identity:  identity,
		now:       time.Date(2026, 3, 10, 8, 5, 0, 0, testLoc),
	}
	locks := daylock.New()
	env.attendance = attendance.NewService(store, env.extractor, locks, attendance.Options{
		Location: testLoc,
		Now:      func() time.Time { return env.now },
	})
	env.leave = leave.NewService(store, locks, testLoc)
	env.payroll = payroll.NewCalculator(store, config.DefaultPayroll(), testLoc)
	return env
}

// testPNG encodes a small gradient image
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithActor marks a request as made by an administrator
func requestWithActor(r *http.Request, actorID int64) *http.Request {
	return r.WithContext(middleware.SetActorInContext(r.Context(), actorID))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected code and reason
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedCode, expectedReason string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["code"] != expectedCode {
		t.Errorf("expected code '%s', got '%s'", expectedCode, result["code"])
	}
	if result["reason"] != expectedReason {
		t.Errorf("expected reason '%s', got '%s'", expectedReason, result["reason"])
	}
}
