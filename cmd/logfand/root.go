package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "logfand",
	Short: "logfand - log fan-in listener",
	Long: `logfand collects log records from producer processes over a unix socket
and writes them to console, files and an in-memory ring from a single
goroutine, so output from many processes never interleaves mid-line.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load environment variables from .env file if it exists
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found or error loading it", "error", err)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(versionCmd)
}
