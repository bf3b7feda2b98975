package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/demolauncher/pkg/download"
	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/navigator"
	"github.com/3leaps/demolauncher/pkg/output"
)

const (
	formatTable = "table"
	formatJSONL = "jsonl"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSONL, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want table, jsonl or yaml)", format)
	}
}

// listingView is the YAML rendering of one listing.
type listingView struct {
	State   navigator.State `yaml:"state"`
	Folder  string          `yaml:"folder"`
	Filter  string          `yaml:"filter,omitempty"`
	Folders []string        `yaml:"folders"`
	Files   []fileView      `yaml:"files"`
	Summary string          `yaml:"summary"`
}

type fileView struct {
	Name           string `yaml:"name"`
	RealID         string `yaml:"real_id"`
	LocallyPresent bool   `yaml:"locally_present"`
}

// renderListing writes result in format. elapsed is reported in the JSONL
// summary record.
func renderListing(ctx context.Context, w io.Writer, format string, nav *navigator.Navigator, result *listing.Result, filter string, elapsed time.Duration) error {
	state := nav.State()
	switch format {
	case formatJSONL:
		jw := output.NewJSONLWriter(w, nav.SessionID(), state.Source)
		for _, e := range result.Entries {
			rec := &output.EntryRecord{
				Kind:           e.Kind.String(),
				Name:           e.DisplayName,
				RealID:         e.RealID,
				Folder:         result.Folder,
				LocallyPresent: e.LocallyPresent,
			}
			if !e.IsFolder() {
				if target, err := nav.ResolveFile(e); err == nil {
					rec.URL = target.URL
				}
			}
			if err := jw.WriteEntry(ctx, rec); err != nil {
				return err
			}
		}
		return jw.WriteSummary(ctx, &output.SummaryRecord{
			Folder:        result.Folder,
			Breadcrumb:    state.Breadcrumb,
			Folders:       result.FolderCount(),
			Files:         result.FileCount(),
			Filter:        filter,
			Duration:      elapsed,
			DurationHuman: elapsed.Round(time.Millisecond).String(),
		})

	case formatYAML:
		view := listingView{
			State:   state,
			Folder:  result.Folder,
			Filter:  filter,
			Folders: []string{},
			Files:   []fileView{},
			Summary: result.Summary(),
		}
		for _, e := range result.Folders() {
			view.Folders = append(view.Folders, e.Name)
		}
		for _, e := range result.Files() {
			view.Files = append(view.Files, fileView{Name: e.Name, RealID: e.RealID, LocallyPresent: e.LocallyPresent})
		}
		return writeYAML(w, view)

	default:
		writeTable(w, state, result)
		return nil
	}
}

func writeTable(w io.Writer, state navigator.State, result *listing.Result) {
	_, _ = fmt.Fprintf(w, "%s  %s\n\n", state.Breadcrumb, result.Folder)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tNAME\tLOCAL")
	for _, e := range result.Entries {
		local := ""
		if e.LocallyPresent {
			local = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Kind, e.DisplayName, local)
	}
	_ = tw.Flush()

	_, _ = fmt.Fprintf(w, "\n%s\n", result.Summary())
}

// progressPrinter renders download progress on one terminal line.
func progressPrinter(w io.Writer, name string) download.ProgressFunc {
	return func(p download.Progress) {
		if p.Total > 0 {
			_, _ = fmt.Fprintf(w, "\r%s %3d%% %s/%s %s/s   ", name, p.Percent,
				formatBytes(p.BytesComplete), formatBytes(p.Total), formatBytes(int64(p.BytesPerSecond)))
			return
		}
		_, _ = fmt.Fprintf(w, "\r%s %s %s/s   ", name, formatBytes(p.BytesComplete), formatBytes(int64(p.BytesPerSecond)))
	}
}

// endProgress terminates a progress line.
func endProgress(w io.Writer) {
	_, _ = fmt.Fprintln(w)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// writeYAML encodes v as YAML.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
