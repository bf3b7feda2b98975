// Package cmd implements the demolauncher command line.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/demolauncher/internal/config"
	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string

	appConfig   *config.Config
	appIdentity *config.AppIdentity

	versionInfo = struct {
		Version   string
		Commit    string
		BuildDate string
	}{
		Version:   "dev",
		Commit:    "unknown",
		BuildDate: "unknown",
	}
)

var rootCmd = &cobra.Command{
	Use:   "demolauncher",
	Short: "Browse, download and play recorded Quake II demos",
	Long: `demolauncher browses remote demo archives (HTML directory indexes and
public S3 buckets), downloads demos and plays them in a managed q2pro engine.

Examples:
  demolauncher sources
  demolauncher ls "AQtion (S3)" 2024/
  demolauncher shell
  demolauncher play "AQtion (S3)" 2024/cup/final.mvd2.gz`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: demolauncher.yaml next to the binary, in the working dir or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console|json)")
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo records build metadata for version output.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity, or nil before startup.
func GetAppIdentity() *config.AppIdentity {
	return appIdentity
}

func initApp(cmd *cobra.Command, _ []string) error {
	id, err := config.Identity()
	if err != nil {
		return exitError(apperrors.ExitFailure, "Invalid app identity", err)
	}
	appIdentity = id
	observability.InitCLILogger(id.BinaryName, verbose)

	config.SetConfigFile(cfgFile)
	cfg, err := config.Load(cmd.Context(), flagOverrides())
	if err != nil {
		return exitError(apperrors.ExitInvalidArgument, "Failed to load config", err)
	}
	if cfg.Update.CurrentVersion == "" {
		cfg.Update.CurrentVersion = versionInfo.Version
	}
	appConfig = cfg

	if err := observability.Init(id.BinaryName, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return exitError(apperrors.ExitInvalidArgument, "Invalid logging config", err)
	}

	observability.CLILogger.Debug("config loaded",
		zap.String("file", config.ConfigFileUsed()),
		zap.Int("sources", len(cfg.Sources)),
		zap.String("engine_dir", cfg.EngineDir()),
	)
	return nil
}

func flagOverrides() map[string]any {
	logging := map[string]any{}
	if logLevel != "" {
		logging["level"] = logLevel
	} else if verbose {
		logging["level"] = "debug"
	}
	if logFormat != "" {
		logging["format"] = logFormat
	}
	if len(logging) == 0 {
		return nil
	}
	return map[string]any{"logging": logging}
}

// ExitError carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// commandError wraps err with an exit code derived from its kind.
func commandError(message string, err error) error {
	return exitError(apperrors.ExitCode(err), message, err)
}

// ExitCode returns the process exit code for an error returned by Execute.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return apperrors.ExitCode(err)
}
