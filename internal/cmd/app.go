package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/demolauncher/internal/config"
	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/pkg/download"
	"github.com/3leaps/demolauncher/pkg/engine"
	"github.com/3leaps/demolauncher/pkg/launcher"
	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/listing/httpindex"
	s3lister "github.com/3leaps/demolauncher/pkg/listing/s3"
	"github.com/3leaps/demolauncher/pkg/navigator"
	"github.com/3leaps/demolauncher/pkg/urlpath"
)

// app bundles the components a command needs.
type app struct {
	cfg        *config.Config
	nav        *navigator.Navigator
	engine     *engine.Manager
	downloader *download.Downloader
	player     *launcher.Player
}

func currentConfig() *config.Config {
	if appConfig != nil {
		return appConfig
	}
	return &config.Config{}
}

func newDownloader(cfg *config.Config) *download.Downloader {
	return download.New(
		download.WithUserAgent(cfg.HTTP.UserAgent),
		download.WithLogger(observability.CLILogger.Named("download")),
	)
}

func newEngine(cfg *config.Config, d *download.Downloader) *engine.Manager {
	return engine.New(engine.Config{
		Dir:              cfg.EngineDir(),
		Binary:           cfg.Engine.Binary,
		ZipURL:           cfg.Engine.ZipURL,
		ModDir:           cfg.Engine.ModDir,
		PlayerName:       cfg.Engine.PlayerName,
		MapZipURLPattern: cfg.Maps.ZipURLPattern,
	},
		engine.WithDownloader(d),
		engine.WithLogger(observability.CLILogger.Named("engine")),
	)
}

// navigatorSources converts configured sources, detecting protocols from the
// URL where none is given.
func navigatorSources(cfg *config.Config) ([]navigator.Source, error) {
	out := make([]navigator.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		proto, err := listing.ParseProtocol(s.Protocol)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", s.Name, err)
		}
		if proto == "" {
			proto = listing.DetectProtocol(s.URL, cfg.S3.HostMarker)
		}
		out = append(out, navigator.Source{Name: s.Name, URL: s.URL, Protocol: proto})
	}
	return out, nil
}

// buildListers creates the HTTP lister and, when S3 sources exist, one S3
// lister per bucket behind a router. s3.bucket_root overrides the derived
// root for sources inside it.
func buildListers(ctx context.Context, cfg *config.Config, sources []navigator.Source) (map[listing.Protocol]listing.Lister, error) {
	logger := observability.CLILogger
	listers := map[listing.Protocol]listing.Lister{
		listing.ProtocolHTTP: httpindex.New(httpindex.Config{
			HTTPClient: &http.Client{Timeout: cfg.HTTP.Timeout},
			UserAgent:  cfg.HTTP.UserAgent,
			Denylist:   cfg.Listing.Denylist,
			Logger:     logger.Named("httpindex"),
		}),
	}

	buckets := s3lister.NewBuckets()
	for _, s := range sources {
		if s.Protocol != listing.ProtocolS3 {
			continue
		}
		root := bucketRootOf(s.URL, cfg.S3.HostMarker)
		if cfg.S3.BucketRoot != "" && urlpath.IsInsideRoot(urlpath.EnsureTrailingSlash(s.URL), cfg.S3.BucketRoot) {
			root = cfg.S3.BucketRoot
		}
		if buckets.Has(root) {
			continue
		}
		l, err := s3lister.New(ctx, s3lister.Config{
			BucketRoot:        root,
			Region:            cfg.S3.Region,
			PageSize:          cfg.S3.PageSize,
			RequestsPerSecond: cfg.S3.RequestsPerSecond,
			Logger:            logger.Named("s3"),
		})
		if err != nil {
			return nil, fmt.Errorf("s3 lister for source %q: %w", s.Name, err)
		}
		buckets.Add(l)
	}
	if buckets.Len() > 0 {
		listers[listing.ProtocolS3] = buckets
	}
	return listers, nil
}

// bucketRootOf derives the bucket URL from a source URL: the bare host for
// virtual-hosted AWS buckets, the host plus first path segment otherwise.
func bucketRootOf(rawURL, hostMarker string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	base := u.Scheme + "://" + u.Host + "/"
	host := strings.ToLower(u.Hostname())
	regional := strings.HasPrefix(host, "s3.") || strings.HasPrefix(host, "s3-")
	if listing.DetectProtocol(host, hostMarker) == listing.ProtocolS3 && !regional {
		return base
	}
	bucket, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if bucket == "" {
		return base
	}
	return base + bucket + "/"
}

// downloadDir picks where demos go: the configured directory, else the demo
// directory of an installed engine, else the default under the engine dir.
func downloadDir(cfg *config.Config, eng *engine.Manager) string {
	if cfg.Downloads.Dir != "" {
		return cfg.Downloads.Dir
	}
	if inst, err := eng.Locate(); err == nil {
		return inst.DemoDir
	}
	return cfg.DownloadDir()
}

func newApp(ctx context.Context) (*app, error) {
	cfg := currentConfig()
	if len(cfg.Sources) == 0 {
		return nil, exitError(apperrors.ExitInvalidArgument, "No sources configured", errors.New("add at least one entry under sources"))
	}

	d := newDownloader(cfg)
	eng := newEngine(cfg, d)

	sources, err := navigatorSources(cfg)
	if err != nil {
		return nil, exitError(apperrors.ExitInvalidArgument, "Invalid source", err)
	}
	listers, err := buildListers(ctx, cfg, sources)
	if err != nil {
		return nil, exitError(apperrors.ExitInvalidArgument, "Failed to configure listers", err)
	}

	nav, err := navigator.New(sources, listers,
		navigator.WithDownloadDir(downloadDir(cfg, eng)),
		navigator.WithS3HostMarker(cfg.S3.HostMarker),
		navigator.WithLogger(observability.CLILogger.Named("navigator")),
	)
	if err != nil {
		return nil, exitError(apperrors.ExitInvalidArgument, "Invalid source", err)
	}

	observability.CLILogger.Debug("session started",
		zap.String("session_id", nav.SessionID()),
		zap.String("download_dir", nav.DownloadDir()),
	)
	return &app{
		cfg:        cfg,
		nav:        nav,
		engine:     eng,
		downloader: d,
		player:     launcher.New(eng, d, observability.CLILogger.Named("launcher")),
	}, nil
}

// open selects source (the first configured source when empty) and browses
// path below its root.
func (a *app) open(ctx context.Context, source, path string) (*listing.Result, error) {
	if source == "" {
		source = a.nav.Sources()[0].Name
	}
	result, err := a.nav.SelectSource(ctx, source)
	if err != nil {
		return nil, err
	}
	if path == "" || path == "/" {
		return result, nil
	}
	target, err := joinUnderRoot(a.nav.State().Root, path)
	if err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	return a.nav.Browse(ctx, target)
}

// joinUnderRoot resolves a slash-separated folder path against root.
func joinUnderRoot(root, path string) (string, error) {
	rel := strings.TrimLeft(path, "/")
	if rel == "" {
		return root, nil
	}
	return urlpath.CombineURL(root, urlpath.EnsureTrailingSlash(rel))
}

// splitFilePath splits "a/b/demo.dm2" into the folder "a/b" and "demo.dm2".
func splitFilePath(path string) (dir, name string) {
	path = strings.Trim(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// resolveRemote opens the folder holding path in source and resolves the
// file it names.
func (a *app) resolveRemote(ctx context.Context, source, path string) (navigator.DownloadTarget, error) {
	dir, name := splitFilePath(path)
	if name == "" {
		return navigator.DownloadTarget{}, apperrors.NewBadRequest("a file path is required")
	}
	if _, err := a.open(ctx, source, dir); err != nil {
		return navigator.DownloadTarget{}, err
	}
	return a.nav.ResolveFileByName(name)
}
