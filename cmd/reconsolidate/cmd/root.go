// Package cmd provides the CLI commands for reconsolidate.
package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openclaw/reconsolidate/internal/config"
	recerrors "github.com/openclaw/reconsolidate/internal/errors"
	"github.com/openclaw/reconsolidate/internal/logging"
	"github.com/openclaw/reconsolidate/internal/output"
	"github.com/openclaw/reconsolidate/pkg/version"
)

var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
	cfg            *config.Config
)

// NewRootCmd creates the root command for the reconsolidate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconsolidate",
		Short: "Access-driven memory reconsolidation engine",
		Long: `reconsolidate reshapes an embedding matrix so that frequently
accessed memory chunks survive lossy compression better than cold ones.

It logs retrieval access events, derives a decayed per-chunk energy score,
and periodically runs a weighted DCT round-trip over the embedding matrix
to bias low-pass reconstruction toward what's actually being used.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}

	cmd.SetVersionTemplate("reconsolidate version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.reconsolidate/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (defaults to ~/.reconsolidate/config.yaml)")

	cmd.AddCommand(newAccessCmd())
	cmd.AddCommand(newLogEventCmd())
	cmd.AddCommand(newLogSessionCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDumpCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newEngineCmd())
	cmd.AddCommand(newMirrorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging resolves configuration and wires slog before any subcommand
// body runs, mirroring the debug-logging hook pattern used throughout this
// corpus's CLI tools.
func setupLogging(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// printJSON writes v to out as pretty-printed JSON, matching the CLI
// surface's "pretty-printed for singletons" convention.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJSONLine writes v to out as a single compact JSON line, matching the
// "one object per line for list outputs" convention.
func printJSONLine(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(v)
}

// printErrorJSON writes {"error": ...} to stdout, the one shape every
// error-surfacing command must emit. Rendering goes through
// errors.FormatJSON so a *errors.ReconError's code/details surface too,
// instead of collapsing every error down to a bare message string.
func printErrorJSON(cmd *cobra.Command, err error) {
	_, _ = cmd.OutOrStdout().Write(recerrors.FormatJSON(err))
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
}

// statusWriter returns a Writer for brief human-readable progress lines on
// stderr, kept separate from the JSON result a command writes to stdout.
func statusWriter(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.ErrOrStderr())
}
