// Package launcher runs the play flow for a selected demo: download it if
// needed, make sure its map package is installed and start the engine.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/3leaps/demolauncher/pkg/demo"
	"github.com/3leaps/demolauncher/pkg/download"
	"github.com/3leaps/demolauncher/pkg/engine"
	"github.com/3leaps/demolauncher/pkg/navigator"
)

// Report describes what Play did.
type Report struct {
	Target     navigator.DownloadTarget `json:"target" yaml:"target"`
	Downloaded bool                     `json:"downloaded" yaml:"downloaded"`
	Bytes      int64                    `json:"bytes,omitempty" yaml:"bytes,omitempty"`

	Map           string `json:"map,omitempty" yaml:"map,omitempty"`
	MapPackage    string `json:"map_package,omitempty" yaml:"map_package,omitempty"`
	MapDownloaded bool   `json:"map_downloaded,omitempty" yaml:"map_downloaded,omitempty"`

	// Warning is set when the map package could not be obtained. The demo is
	// still launched.
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	Launch *engine.LaunchInfo `json:"launch,omitempty" yaml:"launch,omitempty"`
}

// Player ties the engine and downloader together.
type Player struct {
	engine     *engine.Manager
	downloader *download.Downloader
	logger     *zap.Logger
}

// New returns a Player.
func New(eng *engine.Manager, d *download.Downloader, logger *zap.Logger) *Player {
	if d == nil {
		d = download.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{engine: eng, downloader: d, logger: logger}
}

// Fetch downloads target unless it is already present locally.
func (p *Player) Fetch(ctx context.Context, target navigator.DownloadTarget, progress download.ProgressFunc) (downloaded bool, n int64, err error) {
	if info, err := os.Stat(target.LocalPath); err == nil && info.Mode().IsRegular() {
		return false, info.Size(), nil
	}
	n, err = p.downloader.Fetch(ctx, target.URL, target.LocalPath, progress)
	if err != nil {
		return false, 0, err
	}
	return true, n, nil
}

// Play downloads target if it is missing, installs the map package the demo
// was recorded on and launches the engine. A map package that cannot be
// obtained is reported as a warning.
func (p *Player) Play(ctx context.Context, target navigator.DownloadTarget, progress download.ProgressFunc) (*Report, error) {
	if _, err := p.engine.Locate(); err != nil {
		return nil, err
	}
	running, err := p.engine.IsRunning(ctx)
	if err != nil {
		return nil, err
	}
	if running {
		return nil, engine.ErrAlreadyRunning
	}

	report := &Report{Target: target}
	report.Downloaded, report.Bytes, err = p.Fetch(ctx, target, progress)
	if err != nil {
		return nil, fmt.Errorf("download demo: %w", err)
	}

	if name, ok := demo.ExtractMapName(target.LocalPath); ok {
		report.Map = name
		pkg, downloaded, err := p.engine.EnsureMap(ctx, name)
		switch {
		case err == nil:
			report.MapPackage = pkg
			report.MapDownloaded = downloaded
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			report.Warning = fmt.Sprintf("demo may require map %q which could not be downloaded", name)
			p.logger.Warn("map package unavailable", zap.String("map", name), zap.Error(err))
		}
	}

	launch, err := p.engine.Launch(ctx, target.Name, demo.PlayCommand(target.Name))
	if err != nil {
		return nil, err
	}
	report.Launch = launch
	return report, nil
}
