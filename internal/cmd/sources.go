package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
)

var sourcesOutput string

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured demo sources",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.Flags().StringVarP(&sourcesOutput, "output", "o", formatTable, "Output format (table|yaml)")
}

func runSources(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	sources, err := navigatorSources(cfg)
	if err != nil {
		return exitError(apperrors.ExitInvalidArgument, "Invalid source", err)
	}

	out := cmd.OutOrStdout()
	switch sourcesOutput {
	case formatYAML:
		return writeYAML(out, sources)
	case formatTable:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tPROTOCOL\tURL")
		for _, s := range sources {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Protocol, s.URL)
		}
		return w.Flush()
	default:
		return exitError(apperrors.ExitInvalidArgument, "Invalid --output", fmt.Errorf("unsupported format %q", sourcesOutput))
	}
}
