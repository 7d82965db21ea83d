package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/polyglot-dashboard/internal/sequencer"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the dashboard once",
		Long: `Run fetches one random person and follows the chain through their
country, exchange rates and news. The command exits non-zero when a stage fails.`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
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

	res := seq.Run(ctx)
	seq.Wait()

	if err := md.Err(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return resultErr(res)
}

func resultErr(res sequencer.Result) error {
	switch res.State {
	case sequencer.StateCompleted, sequencer.StateSuperseded:
		return nil
	default:
		return fmt.Errorf("run %d failed: %w", res.ID, res.Err)
	}
}
