package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	magpie "github.com/codeGROOVE-dev/magpie"
	"github.com/codeGROOVE-dev/magpie/pkg/fetch"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the ingestion worker loop",
		Long: `Run the worker: on a fixed schedule, claim due jobs from the queue and
execute them until interrupted.`,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
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

	opts := []magpie.Option{
		magpie.WithLogger(logger),
		magpie.WithTimeout(cfg.FetchTimeout),
		magpie.WithBackoff(cfg.BackoffBase, cfg.BackoffMax),
		magpie.WithMaxAttempts(cfg.MaxAttempts),
		magpie.WithDedupWindow(cfg.DedupWindow),
	}
	if cfg.CacheDir != "" {
		cache, cacheErr := fetch.NewCacheWithPath(cfg.CacheTTL, cfg.CacheDir)
		if cacheErr != nil {
			return fmt.Errorf("failed to open cache: %w", cacheErr)
		}
		opts = append(opts, magpie.WithCache(cache))
	}
	pipe := magpie.New(db, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	_, err = c.AddFunc(cfg.PollInterval, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		sum, procErr := pipe.ProcessDue(runCtx, cfg.BatchLimit)
		if procErr != nil {
			logger.Error("batch failed", "error", procErr)
			return
		}
		if sum.Processed > 0 {
			logger.Info("batch done",
				"processed", sum.Processed, "succeeded", sum.Succeeded, "failed", sum.Failed)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", cfg.PollInterval, err)
	}

	logger.Info("worker started", "poll_interval", cfg.PollInterval, "batch_limit", cfg.BatchLimit)
	c.Start()

	<-ctx.Done()
	logger.Info("shutting down")
	<-c.Stop().Done()
	return nil
}
