package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultInterval = 30 * time.Second

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start a new dashboard run on every tick",
		Long: `Watch starts a run immediately and then once per interval. A new run
supersedes the previous one even if it is still in flight; answers that belong
to a superseded run are never rendered.

Examples:
  # Refresh every 10 seconds until interrupted
  dashctl watch --interval 10s

  # Three runs, one second apart
  dashctl watch --interval 1s --count 3`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	cmd.Flags().DurationP("interval", "i", defaultInterval, "Time between runs")
	cmd.Flags().IntP("count", "n", 0, "Stop after this many runs (0 runs until interrupted)")

	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return err
	}
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}
	if interval <= 0 {
		return errors.New("--interval must be positive")
	}
	if count < 0 {
		return errors.New("--count must not be negative")
	}

	shutdown, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer shutdown(context.WithoutCancel(cmd.Context()))

	seq, md, err := newSequencer(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var g errgroup.Group
	started := 0
loop:
	for {
		started++
		g.Go(func() error {
			seq.Run(ctx)
			return nil
		})
		if count > 0 && started >= count {
			break
		}

		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	_ = g.Wait()
	seq.Wait()

	if err := md.Err(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
