// Package download fetches remote files to local paths with progress
// reporting. Downloads are written to "<dest>.part" and renamed into place
// only when complete, so a file at dest is always a whole file.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"go.uber.org/zap"
)

// PartSuffix marks an in-progress download.
const PartSuffix = ".part"

// ErrPathTraversal indicates a target path escapes its base directory.
var ErrPathTraversal = errors.New("path traversal attempt detected")

// Progress is a snapshot of a running download.
type Progress struct {
	BytesComplete  int64
	Total          int64
	Percent        int
	BytesPerSecond float64
}

// ProgressFunc receives progress snapshots. Total is -1 when unknown.
type ProgressFunc func(Progress)

// Downloader performs non-resumable downloads.
type Downloader struct {
	client   *grab.Client
	interval time.Duration
	logger   *zap.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		if c != nil {
			d.client.HTTPClient = c
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		if ua != "" {
			d.client.UserAgent = ua
		}
	}
}

// WithProgressInterval sets how often progress is reported.
func WithProgressInterval(interval time.Duration) Option {
	return func(d *Downloader) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:   grab.NewClient(),
		interval: 200 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	d.client.UserAgent = "demolauncher"
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads url to dest and returns the number of bytes written.
// Parent directories are created. On failure the partial file is removed and
// dest is left untouched.
func (d *Downloader) Fetch(ctx context.Context, url, dest string, progress ProgressFunc) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}

	part := dest + PartSuffix
	_ = os.Remove(part)

	req, err := grab.NewRequest(part, url)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	d.logger.Debug("download started", zap.String("url", url), zap.String("dest", dest))
	resp := d.client.Do(req)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	lastPercent := -1
	report := func(final bool) {
		if progress == nil {
			return
		}
		p := Progress{
			BytesComplete:  resp.BytesComplete(),
			Total:          resp.Size(),
			BytesPerSecond: resp.BytesPerSecond(),
		}
		if p.Total > 0 {
			p.Percent = int(resp.Progress() * 100)
		}
		if final && p.Total > 0 {
			p.Percent = 100
		}
		if p.Percent != lastPercent || final {
			progress(p)
			lastPercent = p.Percent
		}
	}

loop:
	for {
		select {
		case <-ticker.C:
			report(false)
		case <-resp.Done:
			break loop
		}
	}

	if err := resp.Err(); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("download %s failed: %w", url, err)
	}
	report(true)

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("finalize download: %w", err)
	}

	n := resp.BytesComplete()
	d.logger.Info("download complete",
		zap.String("dest", dest),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", resp.Duration()),
	)
	return n, nil
}

// IsBadStatus reports whether err came from a non-success HTTP status.
func IsBadStatus(err error) bool {
	return StatusCode(err) != 0
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var sc grab.StatusCodeError
	if errors.As(err, &sc) {
		return int(sc)
	}
	return 0
}

// ValidatePath ensures targetPath does not escape basePath and returns the
// absolute target.
func ValidatePath(basePath, targetPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve target path: %w", err)
	}

	if absTarget != absBase && !strings.HasPrefix(absTarget, absBase+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return absTarget, nil
}

// SafeJoin joins name onto dir and rejects results outside dir.
func SafeJoin(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return ValidatePath(dir, filepath.Join(dir, name))
}
