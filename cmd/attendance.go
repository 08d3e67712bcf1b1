package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance reports",
}

var attendanceSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize attendance for a date range",
	Long: `Count attendance records per status for the inclusive date range and
report the late rate and number of employees present.

Example:
  face-attendance attendance summary --from 2026-03-01 --to 2026-03-31`,
	RunE: runAttendanceSummary,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceSummaryCmd)

	today := time.Now().Format("2006-01-02")
	attendanceSummaryCmd.Flags().String("from", today, "First day (YYYY-MM-DD)")
	attendanceSummaryCmd.Flags().String("to", today, "Last day, inclusive (YYYY-MM-DD)")
	attendanceSummaryCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAttendanceSummary(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	store, loc, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	from, err := parseDate("from", mustGetString(cmd, "from"), loc)
	if err != nil {
		return err
	}
	to, err := parseDate("to", mustGetString(cmd, "to"), loc)
	if err != nil {
		return err
	}

	// Summary never calls the extractor.
	svc := attendance.NewService(store, nil, nil, attendance.Options{Location: loc})
	sum, err := svc.Summary(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(sum)
	}

	fmt.Printf("Attendance %s to %s\n\n", database.DayKey(from), database.DayKey(to))
	statuses := make([]string, 0, len(sum.ByStatus))
	for status := range sum.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tRECORDS")
	for _, status := range statuses {
		fmt.Fprintf(w, "%s\t%d\n", status, sum.ByStatus[database.AttendanceStatus(status)])
	}
	w.Flush()

	fmt.Printf("\n  Records:   %d\n", sum.Total)
	fmt.Printf("  Present:   %d of %d active\n", sum.Present, sum.Active)
	fmt.Printf("  Late rate: %.2f%%\n", sum.LateRate)
	return nil
}
