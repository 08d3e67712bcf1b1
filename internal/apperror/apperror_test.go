package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"plain error", errors.New("boom"), CodeInternal},
		{"direct", Input("bad date %q", "x"), CodeInput},
		{"wrapped", fmt.Errorf("scan: %w", Conflict(ReasonLeaveProcessed, "leave 3")), CodeConflict},
		{"wrap helper", Wrap(CodeTransient, ReasonTimeout, context.DeadlineExceeded), CodeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMatchesByCodeAndReason(t *testing.T) {
	err := fmt.Errorf("confirm: %w", Conflict(ReasonPayrollConfirmed, "identity 1 2026-01"))

	if !errors.Is(err, ErrConflict) {
		t.Error("expected errors.Is(err, ErrConflict)")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("did not expect errors.Is(err, ErrNotFound)")
	}
	if !errors.Is(err, &Error{Code: CodeConflict, Reason: ReasonPayrollConfirmed}) {
		t.Error("expected match on code and reason")
	}
	if errors.Is(err, &Error{Code: CodeConflict, Reason: ReasonLeaveProcessed}) {
		t.Error("did not expect match on different reason")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(CodeTransient, ReasonTimeout, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected wrapped cause to be reachable")
	}
	if !IsRetryable(err) {
		t.Error("expected transient error to be retryable")
	}
	if IsRetryable(Input("x")) {
		t.Error("input error must not be retryable")
	}
	if Wrap(CodeInput, "", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestSpoofDistinctFromRecognition(t *testing.T) {
	spoof := New(CodeSpoof, "", "liveness failed")
	if errors.Is(spoof, ErrRecognition) {
		t.Error("spoof must never be reported as a recognition failure")
	}
	if ReasonOf(New(CodeRecognition, ReasonNoMatch, "")) != ReasonNoMatch {
		t.Error("expected reason no_match")
	}
}
