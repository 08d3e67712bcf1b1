package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the attendance HTTP API.

Kiosks post scans to /api/v1/attendance/scan. Administrative routes expect
the X-Actor-ID header from the authenticating proxy in front of the server.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// saveIndex persists the identity index during shutdown.
func saveIndex() {
	rebuilder := database.GetIndexRebuilder()
	if rebuilder == nil {
		return
	}
	if err := rebuilder.SaveIndex(); err != nil {
		fmt.Printf("Warning: failed to save identity index: %v\n", err)
	} else {
		fmt.Println("Identity index saved to disk")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	store, loc, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if rebuilder := database.GetIndexRebuilder(); rebuilder != nil {
		fmt.Printf("Identity index ready with %d identities\n", rebuilder.IndexCount())
	} else {
		fmt.Printf("Identity matching will use pgvector queries\n")
	}

	services, err := buildServices(cfg, store, loc)
	if err != nil {
		return err
	}
	server := web.NewServer(cfg, services)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveIndex()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d (timezone %s)\n", cfg.Web.Host, cfg.Web.Port, loc)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
