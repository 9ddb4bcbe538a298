// Package main provides the ftbuilder command line: offline conflict checks,
// view projections, SQLite seeding and archive inspection for schedule files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ftbuilder",
		Short:         "Inspect and prepare fixture schedules",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newCheckCmd(),
		newProjectCmd(),
		newSeedCmd(),
		newExportCmd(),
		newArchiveCmd(),
	)
	return rootCmd
}
