package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/pkg/selfupdate"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer demolauncher release",
	Long: `Query the configured release endpoint (update.api_url) and report whether
a newer version than the running one is published.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	out := cmd.OutOrStdout()

	if cfg.Update.APIURL == "" {
		_, _ = fmt.Fprintln(out, "Update check disabled (update.api_url is not set)")
		return nil
	}

	rel, err := selfupdate.Check(cmd.Context(), selfupdate.Config{
		APIURL:         cfg.Update.APIURL,
		CurrentVersion: cfg.Update.CurrentVersion,
		UserAgent:      cfg.HTTP.UserAgent,
		HTTPClient:     &http.Client{Timeout: cfg.HTTP.Timeout},
	})
	if errors.Is(err, selfupdate.ErrInvalidVersion) {
		return exitError(apperrors.ExitInvalidArgument, "Cannot compare versions", err)
	}
	if err != nil {
		observability.CLILogger.Warn("Update check failed", zap.Error(err))
		return exitError(apperrors.ExitExternalServiceUnavailable, "Failed to check for updates", err)
	}

	if rel.Newer {
		_, _ = fmt.Fprintf(out, "A new version is available: %s (running %s)\n%s\n", rel.Version, cfg.Update.CurrentVersion, rel.URL)
		return nil
	}
	_, _ = fmt.Fprintf(out, "demolauncher %s is up to date\n", cfg.Update.CurrentVersion)
	return nil
}
