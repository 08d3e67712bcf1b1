package constants

// Handler constants
const (
	// MaxUploadSize is the maximum request body size in bytes (12MB); images
	// themselves are capped lower by the recognition package
	MaxUploadSize = 12 << 20

	// DefaultHistoryDays is the period listed when a history request names no range
	DefaultHistoryDays = 30
)
