package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/pkg/demo"
	"github.com/3leaps/demolauncher/pkg/download"
	"github.com/3leaps/demolauncher/pkg/output"
)

var getCmd = &cobra.Command{
	Use:   "get <source> <path>",
	Short: "Download a demo",
	Long: `Download one demo file into the download directory. A demo that is
already present locally is not downloaded again.

Examples:
  demolauncher get "AQtion (S3)" 2024/cup/final.mvd2.gz
  demolauncher get Mirror tourney/match1.dm2 --decompress
  demolauncher get Mirror tourney/match1.dm2 --output jsonl`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

var (
	getDecompress bool
	getNoProgress bool
	getOutput     string
)

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().BoolVar(&getDecompress, "decompress", false, "Expand a .gz demo next to the download")
	getCmd.Flags().BoolVar(&getNoProgress, "no-progress", false, "Do not print download progress")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", formatTable, "Output format (table|jsonl)")
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if getOutput != formatTable && getOutput != formatJSONL {
		return exitError(apperrors.ExitInvalidArgument, "Invalid --output", fmt.Errorf("unsupported format %q", getOutput))
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
	var jw *output.JSONLWriter
	if getOutput == formatJSONL {
		jw = output.NewJSONLWriter(cmd.OutOrStdout(), a.nav.SessionID(), a.nav.State().Source)
	}

	progress := progressPrinter(stderr, target.Name)
	if jw != nil {
		progress = func(p download.Progress) {
			_ = jw.WriteProgress(ctx, &output.ProgressRecord{
				Name:           target.Name,
				BytesComplete:  p.BytesComplete,
				BytesTotal:     p.Total,
				Percent:        p.Percent,
				BytesPerSecond: p.BytesPerSecond,
			})
		}
	}
	if getNoProgress {
		progress = nil
	}

	start := time.Now()
	downloaded, n, err := a.player.Fetch(ctx, target, progress)
	if progress != nil && jw == nil && (downloaded || err != nil) {
		endProgress(stderr)
	}
	if err != nil {
		observability.CLILogger.Error("Download failed", zap.String("url", target.URL), zap.Error(err))
		if jw != nil {
			_ = jw.WriteError(ctx, &output.ErrorRecord{Code: output.ErrCodeFetchFailed, Message: err.Error(), URL: target.URL})
		}
		return exitError(downloadExitCode(err), "Failed to download demo", err)
	}

	local := target.LocalPath
	if getDecompress {
		expanded, created, err := demo.Decompress(target.LocalPath)
		if err != nil {
			return exitError(apperrors.ExitFileWriteError, "Failed to decompress demo", err)
		}
		if created {
			observability.CLILogger.Info("Demo decompressed", zap.String("path", expanded))
		}
		local = expanded
	}

	if jw != nil {
		return jw.WriteDownload(ctx, &output.DownloadRecord{
			Name:      target.Name,
			URL:       target.URL,
			LocalPath: local,
			Bytes:     n,
			Skipped:   !downloaded,
			Duration:  time.Since(start),
		})
	}
	out := cmd.OutOrStdout()
	if downloaded {
		_, _ = fmt.Fprintf(out, "Downloaded %s (%s) to %s\n", target.Name, formatBytes(n), local)
	} else {
		_, _ = fmt.Fprintf(out, "Demo already downloaded: %s\n", local)
	}
	return nil
}

// downloadExitCode maps download failures: local filesystem errors are write
// errors, everything else failed on the remote side.
func downloadExitCode(err error) int {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, context.Canceled):
		return apperrors.ExitSignalInt
	case download.IsBadStatus(err):
		return apperrors.ExitExternalServiceUnavailable
	case errors.As(err, &pathErr):
		return apperrors.ExitFileWriteError
	default:
		return apperrors.ExitExternalServiceUnavailable
	}
}
