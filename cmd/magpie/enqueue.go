package main

import (
	"fmt"

	"github.com/spf13/cobra"

	magpie "github.com/codeGROOVE-dev/magpie"
)

func newEnqueueCmd() *cobra.Command {
	var (
		profileID string
		priority  int
	)

	cmd := &cobra.Command{
		Use:   "enqueue <url>",
		Short: "Enqueue an ingestion job for a source URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			pipe := magpie.New(db, magpie.WithLogger(logger), magpie.WithDedupWindow(cfg.DedupWindow))

			enq, err := pipe.Enqueue(cmd.Context(), magpie.Request{
				ProfileID: profileID,
				URL:       args[0],
				Priority:  priority,
			})
			if err != nil {
				return err
			}
			if enq.JobID == "" {
				return fmt.Errorf("no supported platform matched %q", args[0])
			}

			out := cmd.OutOrStdout()
			if enq.Reused {
				fmt.Fprintf(out, "reusing existing job %s (%s)\n", enq.JobID, enq.Platform)
			} else {
				fmt.Fprintf(out, "enqueued job %s (%s)\n", enq.JobID, enq.Platform)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profileID, "profile", "", "profile ID to ingest into (required)")
	cmd.Flags().IntVar(&priority, "priority", 0, "job priority, higher runs first")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}
