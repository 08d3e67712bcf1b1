package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the in-memory identity index",
	Long: `Rebuild the HNSW identity index from the reference vectors in PostgreSQL
and save it to HNSW_INDEX_PATH when set.

Use this after editing identities directly in the database.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	reindexCmd.Flags().Bool("json", false, "Output as JSON instead of progress output")
}

// ReindexResult represents the result of an index rebuild
type ReindexResult struct {
	Success       bool  `json:"success"`
	IdentityCount int   `json:"identity_count"`
	Saved         bool  `json:"saved"`
	DurationMs    int64 `json:"duration_ms"`
}

func runReindex(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()
	cfg := config.Load()
	startTime := time.Now()

	if _, _, err := openStore(ctx, cfg); err != nil {
		return err
	}
	defer closeStore()

	rebuilder := database.GetIndexRebuilder()
	if rebuilder == nil || !rebuilder.IsIndexEnabled() {
		return errors.New("identity index is disabled (HNSW_DISABLED=true or index build failed)")
	}

	stop := func() {}
	if !jsonOutput {
		stop = spinner("Rebuilding identity index")
	}
	err := rebuilder.RebuildIndex(ctx)
	stop()
	if err != nil {
		return fmt.Errorf("failed to rebuild identity index: %w", err)
	}

	result := ReindexResult{Success: true, IdentityCount: rebuilder.IndexCount(), Saved: true}
	if err := rebuilder.SaveIndex(); err != nil {
		fmt.Printf("Warning: failed to save identity index to disk: %v\n", err)
		result.Saved = false
	}
	duration := time.Since(startTime)
	result.DurationMs = duration.Milliseconds()

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\nReindex complete!")
	fmt.Printf("  Identities: %d\n", result.IdentityCount)
	fmt.Printf("  Saved:      %t\n", result.Saved)
	fmt.Printf("  Duration:   %s\n", formatDuration(duration))
	return nil
}

// spinner shows an indeterminate progress bar until the returned stop is called.
func spinner(description string) func() {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		bar.Finish()
		fmt.Println()
	}
}
