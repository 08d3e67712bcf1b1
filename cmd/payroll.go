package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/payroll"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var payrollCmd = &cobra.Command{
	Use:   "payroll",
	Short: "Compute, confirm and list monthly payroll",
}

var payrollComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute unconfirmed payroll for a month",
	Long: `Compute payroll breakdowns from attendance. Nothing is stored.

Examples:
  # One employee
  face-attendance payroll compute --month 3 --year 2026 --identity 12

  # Every active employee
  face-attendance payroll compute --month 3 --year 2026 --all`,
	RunE: runPayrollCompute,
}

var payrollConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm and store payroll for one employee",
	Long: `Recompute the month for one employee, apply any overrides and store the
result. A month can be confirmed once per employee.

Example:
  face-attendance payroll confirm --month 3 --year 2026 --identity 12 --actor 1 --late 1 --notes "one late excused"`,
	RunE: runPayrollConfirm,
}

var payrollHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List confirmed payroll",
	RunE:  runPayrollHistory,
}

func init() {
	rootCmd.AddCommand(payrollCmd)
	payrollCmd.AddCommand(payrollComputeCmd, payrollConfirmCmd, payrollHistoryCmd)

	now := time.Now()
	for _, c := range []*cobra.Command{payrollComputeCmd, payrollConfirmCmd} {
		c.Flags().Int("month", int(now.Month()), "Month (1-12)")
		c.Flags().Int("year", now.Year(), "Year")
		c.Flags().Int64("identity", 0, "Identity ID")
		c.Flags().Bool("json", false, "Output as JSON")
	}
	payrollComputeCmd.Flags().Bool("all", false, "Compute for every active identity")

	payrollConfirmCmd.Flags().Int64("actor", 0, "ID of the confirming administrator")
	payrollConfirmCmd.Flags().Float64("base-salary", 0, "Override base salary")
	payrollConfirmCmd.Flags().Int("workdays", 0, "Override workdays")
	payrollConfirmCmd.Flags().Int("late", 0, "Override late count")
	payrollConfirmCmd.Flags().Float64("penalty", 0, "Override penalty per late")
	payrollConfirmCmd.Flags().Float64("bonus", 0, "Override bonus")
	payrollConfirmCmd.Flags().String("notes", "", "Notes stored with the record")

	payrollHistoryCmd.Flags().Int("month", 0, "Filter by month")
	payrollHistoryCmd.Flags().Int("year", 0, "Filter by year")
	payrollHistoryCmd.Flags().Int64("identity", 0, "Filter by identity ID")
	payrollHistoryCmd.Flags().Bool("json", false, "Output as JSON")
}

func openCalculator(ctx context.Context) (*payroll.Calculator, error) {
	cfg := config.Load()
	store, loc, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return payroll.NewCalculator(store, cfg.Payroll, loc), nil
}

func runPayrollCompute(cmd *cobra.Command, args []string) error {
	month := mustGetInt(cmd, "month")
	year := mustGetInt(cmd, "year")
	identityID := mustGetInt64(cmd, "identity")
	all := mustGetBool(cmd, "all")
	jsonOutput := mustGetBool(cmd, "json")

	if identityID == 0 && !all {
		return errors.New("either --identity or --all is required")
	}

	ctx := context.Background()
	calc, err := openCalculator(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var breakdowns []payroll.Breakdown
	if identityID > 0 {
		b, err := calc.Compute(ctx, identityID, month, year)
		if err != nil {
			return err
		}
		breakdowns = []payroll.Breakdown{*b}
	} else {
		var bar *progressbar.ProgressBar
		progress := func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Computing payroll"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetItsString("employees"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionFullWidth(),
				)
			}
			bar.Set(done)
		}
		if jsonOutput {
			progress = nil
		}
		breakdowns, err = calc.ComputeAll(ctx, month, year, progress)
		if bar != nil {
			fmt.Println()
		}
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return outputJSON(breakdowns)
	}
	if len(breakdowns) == 0 {
		fmt.Println("No active employees.")
		return nil
	}
	printBreakdowns(breakdowns)
	return nil
}

func printBreakdowns(breakdowns []payroll.Breakdown) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tNAME\tPERIOD\tWORKDAYS\tLATE\tGROSS\tPENALTY\tBONUS\tNET\t")
	var total float64
	for _, b := range breakdowns {
		fmt.Fprintf(w, "%d\t%s\t%02d/%d\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			b.IdentityID, b.Name, b.Month, b.Year, b.Workdays, b.LateCount, b.Gross, b.Penalty, b.Bonus, b.Net)
		total += b.Net
	}
	w.Flush()
	fmt.Printf("\nTotal net: %.2f (%d employees)\n", total, len(breakdowns))
}

func runPayrollConfirm(cmd *cobra.Command, args []string) error {
	month := mustGetInt(cmd, "month")
	year := mustGetInt(cmd, "year")
	identityID := mustGetInt64(cmd, "identity")
	actor := mustGetInt64(cmd, "actor")
	jsonOutput := mustGetBool(cmd, "json")

	if identityID <= 0 {
		return errors.New("--identity is required")
	}
	if actor <= 0 {
		return errors.New("--actor is required")
	}

	overrides := payroll.Overrides{
		BaseSalary:     optionalFloat64(cmd, "base-salary"),
		Workdays:       optionalInt(cmd, "workdays"),
		LateCount:      optionalInt(cmd, "late"),
		PenaltyPerLate: optionalFloat64(cmd, "penalty"),
		Bonus:          optionalFloat64(cmd, "bonus"),
		Notes:          mustGetString(cmd, "notes"),
	}

	ctx := context.Background()
	calc, err := openCalculator(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	b, err := calc.Compute(ctx, identityID, month, year)
	if err != nil {
		return err
	}
	rec, err := calc.Confirm(ctx, *b, overrides, actor)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(rec)
	}
	fmt.Printf("Confirmed payroll %02d/%d for %s (#%d)\n", rec.Month, rec.Year, b.Name, rec.IdentityID)
	printPayrollRecords([]database.PayrollRecord{*rec})
	return nil
}

func runPayrollHistory(cmd *cobra.Command, args []string) error {
	filter := database.PayrollFilter{
		IdentityID: mustGetInt64(cmd, "identity"),
		Month:      mustGetInt(cmd, "month"),
		Year:       mustGetInt(cmd, "year"),
	}
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	calc, err := openCalculator(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := calc.History(ctx, filter)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No confirmed payroll found.")
		return nil
	}
	printPayrollRecords(records)
	return nil
}

func printPayrollRecords(records []database.PayrollRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tPERIOD\tWORKDAYS\tLATE\tNET\tBY\tCONFIRMED\tNOTES")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%02d/%d\t%d\t%d\t%.2f\t%d\t%s\t%s\n",
			r.IdentityID, r.Month, r.Year, r.Workdays, r.LateCount, r.Net, r.ConfirmedBy,
			r.CreatedAt.Format("2006-01-02 15:04"), r.Notes)
	}
	w.Flush()
}
