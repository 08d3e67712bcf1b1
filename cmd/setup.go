package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/daylock"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/leave"
	"github.com/kozaktomas/face-attendance/internal/payroll"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web"
)

// openStore connects to PostgreSQL, applies migrations and returns the
// registered store along with the configured attendance timezone.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, *time.Location, error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid ATTENDANCE_TIMEZONE %q: %w", cfg.Attendance.Timezone, err)
	}
	if err := postgres.Initialize(&cfg.Database, loc); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	store, err := database.GetStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store, loc, nil
}

// closeStore releases the global connection pool.
func closeStore() {
	if pool := postgres.GetGlobalPool(); pool != nil {
		if err := pool.Close(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}
}

// buildServices wires the engine components to one store. The attendance
// and leave services share a day lock so scans never interleave with leave
// approval for the same identity and day.
func buildServices(cfg *config.Config, store database.Store, loc *time.Location) (web.Services, error) {
	policy, err := attendance.ParseAfterCheckoutPolicy(cfg.Attendance.AfterCheckout)
	if err != nil {
		return web.Services{}, fmt.Errorf("invalid ATTENDANCE_AFTER_CHECKOUT: %w", err)
	}

	client := recognition.NewClient(cfg.Recognition.URL, cfg.Recognition.Timeout)
	locks := daylock.New()

	return web.Services{
		Attendance: attendance.NewService(store, client, locks, attendance.Options{
			Threshold:          cfg.Attendance.MatchThreshold,
			Cooldown:           cfg.Attendance.Cooldown,
			Location:           loc,
			AfterCheckout:      policy,
			RecognitionTimeout: cfg.Recognition.Timeout,
		}),
		Enrollment: enrollment.NewService(store, client, client, enrollment.Options{
			Threshold:          cfg.Attendance.MatchThreshold,
			SessionTTL:         cfg.Enrollment.SessionTTL,
			RecognitionTimeout: cfg.Recognition.Timeout,
		}),
		Leave:   leave.NewService(store, locks, loc),
		Payroll: payroll.NewCalculator(store, cfg.Payroll, loc),
		Store:   store,
	}, nil
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// parseDate parses a YYYY-MM-DD flag value in loc.
func parseDate(name, raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, raw)
	}
	return t, nil
}
