package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/leave"
	"github.com/spf13/cobra"
)

var leaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "List and decide leave requests",
	Long:  `List leave requests. Use subcommands to approve or reject them.`,
	RunE:  runLeaveList,
}

var leaveApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a pending leave request",
	Long: `Approve a pending leave request and mark every covered day on leave.
The whole request is applied atomically.

Example:
  face-attendance leave approve 17 --actor 1`,
	Args: cobra.ExactArgs(1),
	RunE: runLeaveApprove,
}

var leaveRejectCmd = &cobra.Command{
	Use:   "reject [id]",
	Short: "Reject a pending leave request",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeaveReject,
}

func init() {
	rootCmd.AddCommand(leaveCmd)
	leaveCmd.AddCommand(leaveApproveCmd, leaveRejectCmd)

	leaveCmd.Flags().String("status", "pending", "Filter by status: pending, approved, rejected (empty for all)")
	leaveCmd.Flags().Int64("identity", 0, "Filter by identity ID")

	for _, c := range []*cobra.Command{leaveApproveCmd, leaveRejectCmd} {
		c.Flags().Int64("actor", 0, "ID of the deciding administrator")
	}
	leaveRejectCmd.Flags().String("comment", "", "Reason for the rejection")
}

func openLeaveService(ctx context.Context) (*leave.Service, error) {
	cfg := config.Load()
	store, loc, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return leave.NewService(store, nil, loc), nil
}

func leaveArgs(cmd *cobra.Command, args []string) (int64, int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, fmt.Errorf("invalid leave ID %q", args[0])
	}
	actor := mustGetInt64(cmd, "actor")
	if actor <= 0 {
		return 0, 0, errors.New("--actor is required")
	}
	return id, actor, nil
}

func runLeaveList(cmd *cobra.Command, args []string) error {
	filter := database.LeaveFilter{IdentityID: mustGetInt64(cmd, "identity")}
	if raw := mustGetString(cmd, "status"); raw != "" {
		status, err := database.ParseLeaveStatus(raw)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	ctx := context.Background()
	svc, err := openLeaveService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	leaves, err := svc.List(ctx, filter)
	if err != nil {
		return err
	}
	if len(leaves) == 0 {
		fmt.Println("No leave requests found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIDENTITY\tTYPE\tFROM\tTO\tSTATUS\tREASON")
	fmt.Fprintln(w, "--\t--------\t----\t----\t--\t------\t------")
	for _, l := range leaves {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.IdentityID, l.Type, database.DayKey(l.StartDate), database.DayKey(l.EndDate), l.Status, l.Reason)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d requests\n", len(leaves))
	return nil
}

func runLeaveApprove(cmd *cobra.Command, args []string) error {
	id, actor, err := leaveArgs(cmd, args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := openLeaveService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	l, err := svc.Approve(ctx, id, actor)
	if err != nil {
		return err
	}
	fmt.Printf("Approved leave %d for identity %d (%s to %s)\n",
		l.ID, l.IdentityID, database.DayKey(l.StartDate), database.DayKey(l.EndDate))
	return nil
}

func runLeaveReject(cmd *cobra.Command, args []string) error {
	id, actor, err := leaveArgs(cmd, args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := openLeaveService(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	l, err := svc.Reject(ctx, id, actor, mustGetString(cmd, "comment"))
	if err != nil {
		return err
	}
	fmt.Printf("Rejected leave %d for identity %d\n", l.ID, l.IdentityID)
	return nil
}
