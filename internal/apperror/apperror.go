// Package apperror defines the stable error taxonomy shared by the attendance
// engine. Every domain failure carries a Code that callers (HTTP handlers, CLI)
// can switch on without parsing messages.
package apperror

import (
	"errors"
	"fmt"
)

// Code is a stable, enumerable error category.
type Code string

const (
	// CodeInput marks malformed input (bad image, bad date, unknown enum value).
	CodeInput Code = "input_error"
	// CodeRecognition marks "no face detected" or "no identity matched".
	CodeRecognition Code = "recognition_failure"
	// CodeSpoof marks a failed liveness check. Always reported apart from CodeRecognition.
	CodeSpoof Code = "spoof_detected"
	// CodeDuplicate marks a cooldown hit. Reported as a successful no-op, never as a failure.
	CodeDuplicate Code = "duplicate_operation"
	// CodeConflict marks an already processed leave, an already confirmed payroll or a duplicate enrollment.
	CodeConflict Code = "conflict"
	// CodeNotFound marks an unknown identity, shift or leave id.
	CodeNotFound Code = "not_found"
	// CodeTransient marks an unavailable or timed out recognition service. Safe to retry.
	CodeTransient Code = "transient_external"
	// CodeInternal marks anything else (storage failures, bugs).
	CodeInternal Code = "internal"
)

// Reasons attached to errors. They refine a Code and are part of the API.
const (
	ReasonNoFace             = "no_face"
	ReasonNoMatch            = "no_match"
	ReasonPoseMismatch       = "pose_mismatch"
	ReasonLeaveProcessed     = "leave_already_processed"
	ReasonPayrollConfirmed   = "payroll_already_confirmed"
	ReasonDuplicateEnrolment = "duplicate_enrollment"
	ReasonTimeout            = "timeout"
	ReasonUnavailable        = "unavailable"
)

// Error is a classified error.
type Error struct {
	Code   Code
	Reason string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code. A target with a
// reason additionally requires the reason to match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels usable with errors.Is.
var (
	ErrInput       = &Error{Code: CodeInput}
	ErrRecognition = &Error{Code: CodeRecognition}
	ErrSpoof       = &Error{Code: CodeSpoof}
	ErrConflict    = &Error{Code: CodeConflict}
	ErrNotFound    = &Error{Code: CodeNotFound}
	ErrTransient   = &Error{Code: CodeTransient}
)

// New creates a classified error with a formatted message.
func New(code Code, reason, format string, args ...any) *Error {
	return &Error{Code: code, Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(code Code, reason string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Reason: reason, Err: err}
}

// Input is shorthand for an input error without a reason.
func Input(format string, args ...any) *Error {
	return New(CodeInput, "", format, args...)
}

// NotFound is shorthand for a not-found error.
func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, "", format, args...)
}

// Conflict is shorthand for a conflict error with a reason.
func Conflict(reason, format string, args ...any) *Error {
	return New(CodeConflict, reason, format, args...)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsRetryable reports whether the failure is transient and safe to retry.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeTransient
}
