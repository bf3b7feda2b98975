// Package engine installs, locates and launches the demo player engine.
//
// The engine lives in a single directory. When that directory was populated
// by Install it carries a marker file, and only a marked directory is ever
// removed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/mholt/archives"
	"go.uber.org/zap"

	"github.com/3leaps/demolauncher/pkg/download"
)

// MarkerFile marks an engine directory created by Install.
const MarkerFile = ".downloaded_by_demolauncher"

// DemosDir is the demo folder inside the mod directory.
const DemosDir = "demos"

var (
	// ErrNotInstalled indicates no engine binary was found.
	ErrNotInstalled = errors.New("engine not installed")

	// ErrNotManaged indicates the engine directory was not created by Install.
	ErrNotManaged = errors.New("engine directory was not installed by demolauncher")

	// ErrAlreadyRunning indicates the engine is already running.
	ErrAlreadyRunning = errors.New("engine is already running")

	// ErrMapUnavailable indicates a map package could not be obtained.
	ErrMapUnavailable = errors.New("map package unavailable")

	// ErrNoZipURL indicates Install was called without a release URL.
	ErrNoZipURL = errors.New("engine zip url is not configured")
)

var mapNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Config describes the engine installation.
type Config struct {
	// Dir is the directory the engine is installed into.
	Dir string

	// Binary is the executable name without extension. Defaults to "q2pro".
	Binary string

	// ZipURL is the engine release archive.
	ZipURL string

	// ModDir is the game mod directory holding demos and map packages.
	// Defaults to "action".
	ModDir string

	// PlayerName is passed to the engine as +name.
	PlayerName string

	// MapZipURLPattern locates map packages; "{map}" or "{0}" is replaced
	// with the map name.
	MapZipURLPattern string
}

// Installation is a located engine.
type Installation struct {
	// Binary is the engine executable.
	Binary string `json:"binary" yaml:"binary"`

	// Dir is the directory containing Binary.
	Dir string `json:"dir" yaml:"dir"`

	// ModDir is Dir/<mod>.
	ModDir string `json:"mod_dir" yaml:"mod_dir"`

	// DemoDir is ModDir/demos.
	DemoDir string `json:"demo_dir" yaml:"demo_dir"`
}

// Status summarizes the engine state.
type Status struct {
	Installed   bool          `json:"installed" yaml:"installed"`
	Managed     bool          `json:"managed" yaml:"managed"`
	Running     bool          `json:"running" yaml:"running"`
	InstalledAt time.Time     `json:"installed_at,omitempty" yaml:"installed_at,omitempty"`
	Install     *Installation `json:"install,omitempty" yaml:"install,omitempty"`
}

// LaunchInfo describes a started engine process.
type LaunchInfo struct {
	PID  int      `json:"pid" yaml:"pid"`
	Args []string `json:"args" yaml:"args"`
	Dir  string   `json:"dir" yaml:"dir"`
}

// ProcessLister returns the executable paths of running processes.
type ProcessLister func(ctx context.Context) ([]string, error)

// Starter starts a process and returns its pid.
type Starter func(binary string, args []string, dir string) (int, error)

// Manager manages one engine directory.
type Manager struct {
	cfg        Config
	downloader *download.Downloader
	processes  ProcessLister
	start      Starter
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDownloader sets the downloader used for releases and map packages.
func WithDownloader(d *download.Downloader) Option {
	return func(m *Manager) {
		if d != nil {
			m.downloader = d
		}
	}
}

// WithProcessLister replaces the process table source.
func WithProcessLister(l ProcessLister) Option {
	return func(m *Manager) {
		if l != nil {
			m.processes = l
		}
	}
}

// WithStarter replaces how the engine process is started.
func WithStarter(s Starter) Option {
	return func(m *Manager) {
		if s != nil {
			m.start = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New returns a Manager for cfg.
func New(cfg Config, opts ...Option) *Manager {
	if cfg.Binary == "" {
		cfg.Binary = "q2pro"
	}
	if cfg.ModDir == "" {
		cfg.ModDir = "action"
	}
	m := &Manager{
		cfg:        cfg,
		downloader: download.New(),
		processes:  runningExecutables,
		start:      startDetached,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the manager configuration with defaults applied.
func (m *Manager) Config() Config {
	return m.cfg
}

// Locate finds the engine binary under the engine directory.
func (m *Manager) Locate() (*Installation, error) {
	binary, err := Locate(m.cfg.Dir, m.cfg.Binary)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(binary)
	modDir := filepath.Join(dir, m.cfg.ModDir)
	return &Installation{
		Binary:  binary,
		Dir:     dir,
		ModDir:  modDir,
		DemoDir: filepath.Join(modDir, DemosDir),
	}, nil
}

// Locate walks dir for an executable named binary (or binary.exe),
// compared case-insensitively. The shallowest match in lexical walk order
// wins.
func Locate(dir, binary string) (string, error) {
	if dir == "" {
		return "", ErrNotInstalled
	}
	names := map[string]bool{
		strings.ToLower(binary):          true,
		strings.ToLower(binary) + ".exe": true,
	}

	var found string
	foundDepth := -1
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if d.IsDir() || !names[strings.ToLower(d.Name())] {
			return nil
		}
		depth := strings.Count(p, string(filepath.Separator))
		if foundDepth < 0 || depth < foundDepth {
			found, foundDepth = p, depth
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotInstalled
		}
		return "", fmt.Errorf("search engine dir: %w", err)
	}
	if found == "" {
		return "", ErrNotInstalled
	}
	return found, nil
}

// Managed reports whether the engine directory carries the install marker
// and when it was written.
func (m *Manager) Managed() (bool, time.Time) {
	if m.cfg.Dir == "" {
		return false, time.Time{}
	}
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, MarkerFile))
	if err != nil {
		return false, time.Time{}
	}
	at, _ := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	return true, at
}

// Status reports installation, marker and process state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	var st Status
	st.Managed, st.InstalledAt = m.Managed()

	inst, err := m.Locate()
	if err != nil {
		if errors.Is(err, ErrNotInstalled) {
			return st, nil
		}
		return st, err
	}
	st.Installed = true
	st.Install = inst

	running, err := m.isRunning(ctx, inst)
	if err != nil {
		return st, err
	}
	st.Running = running
	return st, nil
}

// Install downloads the engine release, replaces the engine directory with
// its contents and writes the install marker.
func (m *Manager) Install(ctx context.Context, progress download.ProgressFunc) (*Installation, error) {
	if m.cfg.ZipURL == "" {
		return nil, ErrNoZipURL
	}
	if m.cfg.Dir == "" {
		return nil, errors.New("engine dir is not configured")
	}

	zipPath := filepath.Join(filepath.Dir(filepath.Clean(m.cfg.Dir)), ".demolauncher_engine.zip")
	if _, err := m.downloader.Fetch(ctx, m.cfg.ZipURL, zipPath, progress); err != nil {
		return nil, fmt.Errorf("download engine: %w", err)
	}
	defer func() { _ = os.Remove(zipPath) }()

	if err := os.RemoveAll(m.cfg.Dir); err != nil {
		return nil, fmt.Errorf("clear engine dir: %w", err)
	}
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create engine dir: %w", err)
	}

	m.logger.Info("extracting engine", zap.String("dir", m.cfg.Dir))
	if err := extractZip(ctx, zipPath, m.cfg.Dir); err != nil {
		return nil, fmt.Errorf("extract engine: %w", err)
	}

	marker := filepath.Join(m.cfg.Dir, MarkerFile)
	stamp := m.now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(marker, []byte(stamp), 0o644); err != nil {
		return nil, fmt.Errorf("write install marker: %w", err)
	}

	inst, err := m.Locate()
	if err != nil {
		return nil, fmt.Errorf("%s not found after extracting release: %w", m.cfg.Binary, err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(inst.Binary, 0o755); err != nil {
			return nil, fmt.Errorf("make engine executable: %w", err)
		}
	}
	if err := os.MkdirAll(inst.DemoDir, 0o755); err != nil {
		return nil, fmt.Errorf("create demo dir: %w", err)
	}

	m.logger.Info("engine installed", zap.String("binary", inst.Binary))
	return inst, nil
}

// Remove deletes the engine directory. Only a directory created by Install
// is removed.
func (m *Manager) Remove() error {
	info, err := os.Stat(m.cfg.Dir)
	if err != nil || !info.IsDir() {
		return ErrNotInstalled
	}
	if managed, _ := m.Managed(); !managed {
		return ErrNotManaged
	}
	if err := os.RemoveAll(m.cfg.Dir); err != nil {
		return fmt.Errorf("remove engine dir: %w", err)
	}
	m.logger.Info("engine removed", zap.String("dir", m.cfg.Dir))
	return nil
}

// MapURL returns the package URL for a map, or "" when no pattern is set.
func (m *Manager) MapURL(name string) string {
	if m.cfg.MapZipURLPattern == "" {
		return ""
	}
	return strings.NewReplacer("{map}", name, "{0}", name).Replace(m.cfg.MapZipURLPattern)
}

// EnsureMap makes sure <mod dir>/<name>.pkz exists, downloading the map zip
// when it is missing. downloaded reports whether a download happened.
func (m *Manager) EnsureMap(ctx context.Context, name string) (path string, downloaded bool, err error) {
	name = strings.ToLower(name)
	if !mapNamePattern.MatchString(name) {
		return "", false, fmt.Errorf("%w: invalid map name %q", ErrMapUnavailable, name)
	}
	inst, err := m.Locate()
	if err != nil {
		return "", false, err
	}

	pkz := filepath.Join(inst.ModDir, name+".pkz")
	if info, err := os.Stat(pkz); err == nil && info.Mode().IsRegular() {
		return pkz, false, nil
	}

	url := m.MapURL(name)
	if url == "" {
		return "", false, fmt.Errorf("%w: no map url pattern configured", ErrMapUnavailable)
	}

	zipPath := filepath.Join(inst.ModDir, name+".zip")
	if _, err := m.downloader.Fetch(ctx, url, zipPath, nil); err != nil {
		if download.IsBadStatus(err) {
			return "", false, fmt.Errorf("%w: %s: %w", ErrMapUnavailable, name, err)
		}
		return "", false, err
	}
	_ = os.Remove(pkz)
	if err := os.Rename(zipPath, pkz); err != nil {
		return "", false, fmt.Errorf("rename map package: %w", err)
	}
	m.logger.Info("map package downloaded", zap.String("map", name), zap.String("path", pkz))
	return pkz, true, nil
}

// IsRunning reports whether an engine process started from the installed
// binary's directory is running.
func (m *Manager) IsRunning(ctx context.Context) (bool, error) {
	inst, err := m.Locate()
	if err != nil {
		return false, err
	}
	return m.isRunning(ctx, inst)
}

func (m *Manager) isRunning(ctx context.Context, inst *Installation) (bool, error) {
	exes, err := m.processes(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}
	want := filepath.Clean(inst.Dir)
	base := strings.ToLower(filepath.Base(inst.Binary))
	for _, exe := range exes {
		if exe == "" {
			continue
		}
		if strings.ToLower(filepath.Base(exe)) != base {
			continue
		}
		if strings.EqualFold(filepath.Clean(filepath.Dir(exe)), want) {
			return true, nil
		}
	}
	return false, nil
}

// Launch starts the engine playing demoFile, a file name relative to the
// mod demo directory.
func (m *Manager) Launch(ctx context.Context, demoFile, playCommand string) (*LaunchInfo, error) {
	inst, err := m.Locate()
	if err != nil {
		return nil, err
	}
	running, err := m.isRunning(ctx, inst)
	if err != nil {
		return nil, err
	}
	if running {
		return nil, ErrAlreadyRunning
	}

	args := []string{}
	if m.cfg.PlayerName != "" {
		args = append(args, "+name", m.cfg.PlayerName)
	}
	args = append(args, playCommand, demoFile)

	pid, err := m.start(inst.Binary, args, inst.Dir)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	m.logger.Info("engine launched", zap.Int("pid", pid), zap.Strings("args", args))
	return &LaunchInfo{PID: pid, Args: args, Dir: inst.Dir}, nil
}

func extractZip(ctx context.Context, zipPath, dest string) error {
	f, err := os.Open(zipPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return archives.Zip{}.Extract(ctx, f, func(ctx context.Context, info archives.FileInfo) error {
		target, err := download.ValidatePath(dest, filepath.Join(dest, filepath.FromSlash(info.NameInArchive)))
		if err != nil {
			return fmt.Errorf("%s: %w", info.NameInArchive, err)
		}
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if info.LinkTarget != "" || !info.Mode().IsRegular() {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		src, err := info.Open()
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		perm := info.Mode().Perm()
		if perm == 0 {
			perm = 0o644
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, src); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}
