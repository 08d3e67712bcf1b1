package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance and payroll engine",
	Long: `Face Attendance turns face scans into check-in and check-out records,
reconciles approved leave with attendance and computes monthly payroll.

Recognition is delegated to an inference server (RECOGNITION_URL); all
state lives in PostgreSQL (DATABASE_URL).`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
