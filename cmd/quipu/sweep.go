package main

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resolve expired pending confirmations via the timeout path",
		Long: `Find pending confirmations whose window has passed and resolve each via
the timeout path. Runs once by default; with --schedule it keeps running on
the given cron expression until interrupted.`,
		RunE: runSweep,
	}

	cmd.Flags().String("schedule", "", `cron expression for recurring sweeps (e.g. "*/5 * * * *")`)

	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	schedule, _ := cmd.Flags().GetString("schedule")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p := newResolutionPipeline(store)
	ctx := cmd.Context()

	sweepOnce := func() {
		stats, sweepErr := p.SweepExpired(ctx)
		if sweepErr != nil {
			slog.Error("Sweep failed", "error", sweepErr)
			return
		}
		fmt.Printf("Sweep: %d processed, %d skipped, %d errored\n",
			stats.Processed, stats.Skipped, stats.Errored)
	}

	if schedule == "" {
		sweepOnce()
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, sweepOnce); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	slog.Info("Starting scheduled sweeper", "schedule", schedule)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
