package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowlive/pkg/flowlive/config"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
)

// errInvalid marks a validation run that found issues.
var errInvalid = errors.New("flow is not valid")

// exitCode maps command errors to process exit codes.
func exitCode(err error) int {
	if errors.Is(err, errInvalid) {
		return 2
	}
	return 1
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	verbose    bool
	telemetry  bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "flowlive",
		Short:         "Validate flow graphs and follow live chat runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "settings file (YAML or JSON)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&g.telemetry, "telemetry", false, "record OpenTelemetry metrics and spans")

	root.AddCommand(
		newValidateCmd(g),
		newWatchCmd(g),
		newHistoryCmd(g),
	)
	return root
}

// settings loads the config file, or returns defaults when none was given.
func (g *globals) settings() (config.Settings, error) {
	if g.configPath == "" {
		return config.DefaultSettings(), nil
	}
	return config.Load(g.configPath)
}

func (g *globals) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (g *globals) metrics() observability.MetricsRecorder {
	if !g.telemetry {
		return observability.NoopMetrics{}
	}
	return observability.NewMetricsRecorder()
}

func (g *globals) spans() observability.SpanManager {
	if !g.telemetry {
		return observability.NoopSpanManager{}
	}
	return observability.NewSpanManager()
}
