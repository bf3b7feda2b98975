package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/pkg/engine"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Manage the demo player engine",
	Long: `Install, remove or inspect the q2pro engine used to play demos.

Only an engine installed by demolauncher (marked with ` + engine.MarkerFile + `)
can be removed.`,
}

var engineInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and install the engine",
	Args:  cobra.NoArgs,
	RunE:  runEngineInstall,
}

var engineRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an engine installed by demolauncher",
	Args:  cobra.NoArgs,
	RunE:  runEngineRemove,
}

var engineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engine installation",
	Args:  cobra.NoArgs,
	RunE:  runEngineStatus,
}

var (
	engineZipURL string
	engineForce  bool
	engineOutput string
)

func init() {
	rootCmd.AddCommand(engineCmd)
	engineCmd.AddCommand(engineInstallCmd, engineRemoveCmd, engineStatusCmd)

	engineInstallCmd.Flags().StringVar(&engineZipURL, "zip-url", "", "Engine archive URL (overrides engine.zip_url)")
	engineInstallCmd.Flags().BoolVar(&engineForce, "force", false, "Reinstall over an existing engine")
	engineStatusCmd.Flags().StringVarP(&engineOutput, "output", "o", formatTable, "Output format (table|yaml)")
}

func runEngineInstall(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := currentConfig()
	if engineZipURL != "" {
		cfg.Engine.ZipURL = engineZipURL
	}
	eng := newEngine(cfg, newDownloader(cfg))

	if inst, err := eng.Locate(); err == nil && !engineForce {
		return exitError(apperrors.ExitInvalidArgument, "Engine already installed (use --force to reinstall)",
			fmt.Errorf("found %s", inst.Binary))
	}
	if engineRunning(ctx, eng) {
		return exitError(apperrors.ExitFailure, "Engine is running; close it first", engine.ErrAlreadyRunning)
	}

	stderr := cmd.ErrOrStderr()
	inst, err := eng.Install(ctx, progressPrinter(stderr, "engine"))
	endProgress(stderr)
	if err != nil {
		observability.CLILogger.Error("Engine install failed", zap.Error(err))
		if errors.Is(err, engine.ErrNoZipURL) {
			return exitError(apperrors.ExitInvalidArgument, "No engine archive configured (set engine.zip_url or --zip-url)", err)
		}
		return commandError("Failed to install engine", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\nDemos go to %s\n", inst.Binary, inst.DemoDir)
	return nil
}

func runEngineRemove(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := currentConfig()
	eng := newEngine(cfg, newDownloader(cfg))

	if engineRunning(ctx, eng) {
		return exitError(apperrors.ExitFailure, "Engine is running; close it first", engine.ErrAlreadyRunning)
	}
	if err := eng.Remove(); err != nil {
		switch {
		case errors.Is(err, engine.ErrNotInstalled):
			return exitError(apperrors.ExitFileNotFound, "No engine installed", err)
		case errors.Is(err, engine.ErrNotManaged):
			return exitError(apperrors.ExitInvalidArgument, "Engine was not installed by demolauncher; remove it manually", err)
		default:
			return exitError(apperrors.ExitFileWriteError, "Failed to remove engine", err)
		}
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.EngineDir())
	return nil
}

func runEngineStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := currentConfig()
	eng := newEngine(cfg, newDownloader(cfg))

	status, err := eng.Status(ctx)
	if err != nil {
		return commandError("Failed to read engine status", err)
	}

	out := cmd.OutOrStdout()
	if engineOutput == formatYAML {
		return writeYAML(out, status)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Directory\t%s\n", cfg.EngineDir())
	_, _ = fmt.Fprintf(w, "Installed\t%t\n", status.Installed)
	if status.Install != nil {
		_, _ = fmt.Fprintf(w, "Binary\t%s\n", status.Install.Binary)
		_, _ = fmt.Fprintf(w, "Demos\t%s\n", status.Install.DemoDir)
	}
	managed := "no"
	if status.Managed {
		managed = "yes, " + status.InstalledAt.Local().Format(time.RFC1123)
	}
	_, _ = fmt.Fprintf(w, "Managed\t%s\n", managed)
	_, _ = fmt.Fprintf(w, "Running\t%t\n", status.Running)
	return w.Flush()
}

// engineRunning reports whether the installed engine is running. A missing
// engine or an unreadable process table counts as not running.
func engineRunning(ctx context.Context, eng *engine.Manager) bool {
	running, err := eng.IsRunning(ctx)
	if err != nil && !errors.Is(err, engine.ErrNotInstalled) {
		observability.CLILogger.Debug("Process check failed", zap.Error(err))
	}
	return err == nil && running
}
