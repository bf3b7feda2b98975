package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/demolauncher/internal/config"
	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/pkg/engine"
)

var (
	doctorListSources   bool
	doctorTimeout time.Duration
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the configuration, download directory and
engine, and suggest fixes for common issues.

Examples:
  demolauncher doctor            # Local checks only
  demolauncher doctor --sources  # Also list the root of every source`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorListSources, "sources", false, "List the root of every source")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 15*time.Second, "Timeout per source listing")
}

// checkResult is the outcome of one diagnostic check.
type checkResult struct {
	Name   string
	Status checkStatus
	Detail string
	Hint   string
}

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

func (s checkStatus) icon() string {
	switch s {
	case checkOK:
		return "✅"
	case checkWarn:
		return "⚠️ "
	default:
		return "❌"
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	identity := GetAppIdentity()
	bannerName := "doctor"
	if identity != nil && identity.BinaryName != "" {
		bannerName = identity.BinaryName + " doctor"
	}
	log := observability.CLILogger
	log.Info("=== " + bannerName + " ===")
	log.Info("Running diagnostic checks...")

	results := doctorChecks(cmd.Context(), currentConfig(), doctorListSources)

	failed := 0
	for i, r := range results {
		line := fmt.Sprintf("[%d/%d] Checking %s... %s %s", i+1, len(results), r.Name, r.Status.icon(), r.Detail)
		switch r.Status {
		case checkOK:
			log.Info(line)
		case checkWarn:
			log.Warn(line)
		default:
			failed++
			log.Error(line)
		}
		if r.Hint != "" && r.Status != checkOK {
			log.Info("      " + r.Hint)
		}
	}

	if failed > 0 {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
		log.Info("=== End Diagnostics ===")
		return exitError(apperrors.ExitFailure, "Diagnostics failed", fmt.Errorf("%d of %d checks failed", failed, len(results)))
	}
	log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", bannerName))
	log.Info("=== End Diagnostics ===")
	return nil
}

// doctorChecks runs every check against cfg. Source listings only run when
// listSources is set.
func doctorChecks(ctx context.Context, cfg *config.Config, listSources bool) []checkResult {
	results := []checkResult{
		{
			Name:   "Go runtime",
			Status: checkOK,
			Detail: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		},
		checkConfigFile(),
		checkSources(cfg),
	}

	d := newDownloader(cfg)
	eng := newEngine(cfg, d)
	results = append(results, checkDownloadDir(downloadDir(cfg, eng)), checkEngine(ctx, eng))

	if listSources {
		results = append(results, listSourceRoots(ctx, cfg)...)
	}
	return results
}

func checkConfigFile() checkResult {
	r := checkResult{Name: "config file", Status: checkOK}
	if used := config.ConfigFileUsed(); used != "" {
		r.Detail = used
		return r
	}
	r.Detail = "none found, using built-in defaults"
	return r
}

func checkSources(cfg *config.Config) checkResult {
	r := checkResult{Name: "sources"}
	sources, err := navigatorSources(cfg)
	switch {
	case err != nil:
		r.Status, r.Detail = checkFail, err.Error()
	case len(sources) == 0:
		r.Status, r.Detail = checkFail, "no sources configured"
		r.Hint = "Add at least one entry under sources: in demolauncher.yaml"
	default:
		r.Status = checkOK
		r.Detail = fmt.Sprintf("%d configured", len(sources))
	}
	return r
}

// checkDownloadDir verifies dir exists (or can be created) and is writable.
func checkDownloadDir(dir string) checkResult {
	r := checkResult{Name: "download directory", Detail: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Status, r.Detail = checkFail, fmt.Sprintf("%s: %v", dir, err)
		return r
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		r.Status, r.Detail = checkFail, fmt.Sprintf("%s is not writable: %v", dir, err)
		r.Hint = "Set downloads.dir to a writable directory"
		return r
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	r.Status = checkOK
	return r
}

func checkEngine(ctx context.Context, eng *engine.Manager) checkResult {
	r := checkResult{Name: "engine"}
	st, err := eng.Status(ctx)
	if err != nil {
		r.Status, r.Detail = checkWarn, err.Error()
		return r
	}
	if !st.Installed {
		r.Status = checkWarn
		r.Detail = "not installed in " + eng.Config().Dir
		r.Hint = "Run 'demolauncher engine install' to download it"
		return r
	}
	r.Status = checkOK
	r.Detail = st.Install.Binary
	if st.Managed {
		r.Detail += " (installed by demolauncher)"
	}
	if st.Running {
		r.Status = checkWarn
		r.Detail += ", running"
		r.Hint = "Close the engine before playing another demo"
	}
	return r
}

// listSourceRoots lists the root of every source.
func listSourceRoots(ctx context.Context, cfg *config.Config) []checkResult {
	a, err := newApp(ctx)
	if err != nil {
		return []checkResult{{Name: "source listing", Status: checkFail, Detail: err.Error()}}
	}

	var out []checkResult
	for _, src := range a.nav.Sources() {
		r := checkResult{Name: "source " + src.Name}
		pctx, cancel := context.WithTimeout(ctx, doctorTimeoutOrDefault())
		start := time.Now()
		result, err := a.nav.SelectSource(pctx, src.Name)
		cancel()
		switch {
		case err == nil:
			r.Status = checkOK
			r.Detail = fmt.Sprintf("%s in %s", result.Summary(), time.Since(start).Round(time.Millisecond))
		case errors.Is(err, context.DeadlineExceeded):
			r.Status, r.Detail = checkFail, "timed out"
		default:
			r.Status, r.Detail = checkFail, err.Error()
			r.Hint = "Check the source URL and your network connection"
		}
		observability.CLILogger.Debug("source listed", zap.String("source", src.Name), zap.Error(err))
		out = append(out, r)
	}
	return out
}

func doctorTimeoutOrDefault() time.Duration {
	if doctorTimeout > 0 {
		return doctorTimeout
	}
	return 15 * time.Second
}
