package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
)

var lsCmd = &cobra.Command{
	Use:   "ls [source] [path]",
	Short: "List a folder of a demo source",
	Long: `List the folders and demo files in one folder of a source.

Without arguments the root of the first configured source is listed. path is
relative to the source root and may not leave it.

Examples:
  demolauncher ls
  demolauncher ls "AQtion (S3)" 2024/cup
  demolauncher ls "AQtion (S3)" --filter '*.mvd2*' --desc
  demolauncher ls Mirror --output jsonl`,
	Args: cobra.MaximumNArgs(2),
	RunE: runLs,
}

var (
	lsOutput string
	lsFilter string
	lsDesc   bool
)

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().StringVarP(&lsOutput, "output", "o", formatTable, "Output format (table|jsonl|yaml)")
	lsCmd.Flags().StringVarP(&lsFilter, "filter", "f", "", "Keep entries whose name contains the text or matches the glob")
	lsCmd.Flags().BoolVar(&lsDesc, "desc", false, "Sort descending (folders stay first)")
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := validateFormat(lsOutput); err != nil {
		return exitError(apperrors.ExitInvalidArgument, "Invalid --output", err)
	}

	var source, path string
	if len(args) > 0 {
		source = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := a.open(ctx, source, path)
	if err != nil {
		observability.CLILogger.Error("Listing failed", zap.String("source", source), zap.String("path", path), zap.Error(err))
		return commandError("Failed to list folder", err)
	}
	elapsed := time.Since(start)

	if lsFilter != "" {
		result = result.Filter(lsFilter)
	}
	if lsDesc {
		result = result.Sorted(true)
	}
	return renderListing(ctx, cmd.OutOrStdout(), lsOutput, a.nav, result, lsFilter, elapsed)
}
