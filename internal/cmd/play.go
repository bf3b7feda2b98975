package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/pkg/engine"
	"github.com/3leaps/demolauncher/pkg/launcher"
)

var playCmd = &cobra.Command{
	Use:   "play <source> <path>",
	Short: "Download a demo and play it",
	Long: `Download a demo if it is not present, fetch the map package it was
recorded on and start the engine with it.

A missing map package is reported as a warning; the demo still starts.

Examples:
  demolauncher play "AQtion (S3)" 2024/cup/final.mvd2.gz
  demolauncher play Mirror tourney/match1.dm2 --output yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runPlay,
}

var playOutput string

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringVarP(&playOutput, "output", "o", formatTable, "Output format (table|yaml)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if playOutput != formatTable && playOutput != formatYAML {
		return exitError(apperrors.ExitInvalidArgument, "Invalid --output", fmt.Errorf("unsupported format %q", playOutput))
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	target, err := a.resolveRemote(ctx, args[0], args[1])
	if err != nil {
		return commandError("Failed to resolve demo", err)
	}

	stderr := cmd.ErrOrStderr()
	report, err := a.player.Play(ctx, target, progressPrinter(stderr, target.Name))
	if err != nil {
		return playError(err)
	}
	if report.Downloaded {
		endProgress(stderr)
	}
	return printReport(cmd, report)
}

// playError turns a Play failure into an exit error with a hint.
func playError(err error) error {
	observability.CLILogger.Error("Play failed", zap.Error(err))
	switch {
	case errors.Is(err, engine.ErrNotInstalled):
		return exitError(apperrors.ExitExternalServiceUnavailable, "Engine not installed (run: demolauncher engine install)", err)
	case errors.Is(err, engine.ErrAlreadyRunning):
		return exitError(apperrors.ExitFailure, "Engine is already running; close it first", err)
	default:
		return commandError("Failed to play demo", err)
	}
}

func printReport(cmd *cobra.Command, report *launcher.Report) error {
	out := cmd.OutOrStdout()
	if playOutput == formatYAML {
		return writeYAML(out, report)
	}
	if report.Downloaded {
		_, _ = fmt.Fprintf(out, "Downloaded %s (%s)\n", report.Target.Name, formatBytes(report.Bytes))
	} else {
		_, _ = fmt.Fprintf(out, "Demo already downloaded: %s\n", report.Target.LocalPath)
	}
	switch {
	case report.Warning != "":
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", report.Warning)
	case report.MapDownloaded:
		_, _ = fmt.Fprintf(out, "Downloaded map %s\n", report.Map)
	case report.Map != "":
		_, _ = fmt.Fprintf(out, "Map %s is installed\n", report.Map)
	}
	if report.Launch != nil {
		_, _ = fmt.Fprintf(out, "Started engine (pid %d)\n", report.Launch.PID)
	}
	return nil
}
