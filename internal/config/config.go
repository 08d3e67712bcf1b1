package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed payroll.yaml
var payrollYAML []byte

type Config struct {
	Database    DatabaseConfig
	Recognition RecognitionConfig
	Attendance  AttendanceConfig
	Enrollment  EnrollmentConfig
	Payroll     PayrollConfig
	Web         WebConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the identity HNSW index (optional, rebuilt on startup if empty)
	DisableHNSW   bool   // Use pgvector nearest-neighbour queries instead of the in-memory index
}

type RecognitionConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // deadline for a single extract/detect call (default 5s)
}

type AttendanceConfig struct {
	MatchThreshold float64       // maximum cosine distance for an identity match (exclusive)
	Cooldown       time.Duration // duplicate scan suppression window
	Timezone       string        // IANA zone used for calendar days, empty means local
	AfterCheckout  string        // "ignore" or "reject", behaviour for scans after checkout
}

type EnrollmentConfig struct {
	SessionTTL time.Duration
}

type PayrollConfig struct {
	StandardWorkdays   int     `yaml:"standard_workdays"`
	PenaltyPerLate     float64 `yaml:"penalty_per_late"`
	BonusThresholdDays int     `yaml:"bonus_threshold_days"`
	BonusAmount        float64 `yaml:"bonus_amount"`
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

// Location resolves the configured timezone. An empty zone means time.Local.
func (c *AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a positive Go duration ("5s", "1m"), falling back to defaultVal.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated list, skipping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DefaultPayroll returns the embedded payroll policy.
func DefaultPayroll() PayrollConfig {
	var p PayrollConfig
	if err := yaml.Unmarshal(payrollYAML, &p); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded payroll.yaml: " + err.Error())
	}
	return p
}

func Load() *Config {
	payroll := DefaultPayroll()
	payroll.PenaltyPerLate = envFloat("PAYROLL_PENALTY_PER_LATE", payroll.PenaltyPerLate)

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
			DisableHNSW:   os.Getenv("HNSW_DISABLED") == "true",
		},
		Recognition: RecognitionConfig{
			URL:     os.Getenv("RECOGNITION_URL"),
			Timeout: envDuration("RECOGNITION_TIMEOUT", constants.DefaultRecognitionTimeout),
		},
		Attendance: AttendanceConfig{
			MatchThreshold: envFloat("MATCH_THRESHOLD", 0.68),
			Cooldown:       envDuration("ATTENDANCE_COOLDOWN", constants.DefaultCooldown),
			Timezone:       os.Getenv("ATTENDANCE_TIMEZONE"),
			AfterCheckout:  envString("ATTENDANCE_AFTER_CHECKOUT", "ignore"),
		},
		Enrollment: EnrollmentConfig{
			SessionTTL: envDuration("ENROLLMENT_SESSION_TTL", constants.DefaultEnrollmentSessionTTL),
		},
		Payroll: payroll,
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}
