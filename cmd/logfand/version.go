package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("logfand %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Go version: %s\n", runtime.Version())
	},
}
