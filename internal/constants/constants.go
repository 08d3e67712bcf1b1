// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching constants
const (
	// DefaultCandidateLimit is the number of nearest identities fetched from the
	// index or pgvector before the exact match decision
	DefaultCandidateLimit = 50

	// DefaultRecognitionTimeout bounds one call to the inference server
	DefaultRecognitionTimeout = 5 * time.Second
)

// Attendance constants
const (
	// DefaultCooldown is the minimum time between two state changes of one
	// identity's daily record; scans inside it are duplicates
	DefaultCooldown = 60 * time.Second
)

// Enrollment constants
const (
	// DefaultEnrollmentSessionTTL is how long an unfinished enrollment session lives
	DefaultEnrollmentSessionTTL = 10 * time.Minute

	// MaxEnrollmentSessions caps concurrently open enrollment sessions
	MaxEnrollmentSessions = 256
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for batch payroll
	WorkerPoolSize = 8
)
