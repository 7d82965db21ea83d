package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tjfontaine/polyglot-dashboard/internal/client"
	"github.com/tjfontaine/polyglot-dashboard/internal/present"
	"github.com/tjfontaine/polyglot-dashboard/internal/sequencer"
	"github.com/tjfontaine/polyglot-dashboard/internal/telemetry"
)

const (
	defaultServer  = "http://localhost:3000"
	defaultTimeout = 30 * time.Second
)

// version is set at build time via ldflags.
var version = ""

func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// NewRootCmd creates the root command for dashctl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Terminal client for the dashboard server",
		Long: `dashctl drives dashboard runs against a running dashboard server and
renders each stage as markdown: a random person, their country, the
country's exchange rates and its top headlines.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("server", "s", defaultServer, "Dashboard server base URL")
	cmd.PersistentFlags().DurationP("timeout", "t", defaultTimeout, "Timeout for each stage request")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("trace", false, "Print client spans to stderr")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewWatchCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setupTracing installs a tracer provider and the W3C propagator so every run
// is one trace that the server joins through the traceparent header. Spans are
// only exported with --trace. The returned function flushes them.
func setupTracing(cmd *cobra.Command) (func(context.Context) error, error) {
	export, err := cmd.Flags().GetBool("trace")
	if err != nil {
		return nil, err
	}
	if export {
		return telemetry.InitTracer(telemetry.TracerOptions{
			ServiceName: "dashctl",
			SampleRatio: 1,
			Writer:      cmd.ErrOrStderr(),
		}, setupLogger(io.Discard, false))
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(telemetry.Propagator())
	return tp.Shutdown, nil
}

// newSequencer wires client, presenter and logger from the persistent flags.
func newSequencer(cmd *cobra.Command) (*sequencer.Sequencer, *present.Markdown, error) {
	flags := cmd.Flags()
	server, err := flags.GetString("server")
	if err != nil {
		return nil, nil, err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return nil, nil, err
	}
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, nil, err
	}

	logger := setupLogger(cmd.ErrOrStderr(), verbose)

	opts := []present.MarkdownOption{}
	if verbose {
		opts = append(opts, present.WithProgress(cmd.ErrOrStderr()))
	}
	md := present.NewMarkdown(cmd.OutOrStdout(), opts...)

	api := client.NewClient(
		client.WithBaseURL(server),
		client.WithTimeout(timeout),
	)
	return sequencer.New(api, md, sequencer.WithLogger(logger)), md, nil
}
