// Command magpie runs the link-in-bio ingestion pipeline: enqueue jobs,
// run the worker loop, apply database migrations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	magpie "github.com/codeGROOVE-dev/magpie"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "magpie",
		Short:        "Link-in-bio ingestion pipeline",
		Long:         "magpie scrapes link-in-bio pages and reconciles their outbound links into creator profiles.",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "path to .env config file")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")

	root.AddCommand(
		newWorkerCmd(),
		newEnqueueCmd(),
		newMigrateCmd(),
		newPlatformsCmd(),
	)
	return root
}

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported platforms",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range magpie.Platforms() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
