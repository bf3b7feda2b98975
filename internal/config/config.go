package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/urlpath"
)

// Config is the resolved application configuration.
type Config struct {
	Sources   []SourceConfig  `mapstructure:"sources" yaml:"sources"`
	S3        S3Config        `mapstructure:"s3" yaml:"s3"`
	Listing   ListingConfig   `mapstructure:"listing" yaml:"listing"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Maps      MapsConfig      `mapstructure:"maps" yaml:"maps"`
	Downloads DownloadsConfig `mapstructure:"downloads" yaml:"downloads"`
	Update    UpdateConfig    `mapstructure:"update" yaml:"update"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// SourceConfig is one named demo source.
type SourceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`

	// Protocol is "http", "s3" or empty to detect from the URL.
	Protocol string `mapstructure:"protocol" yaml:"protocol,omitempty"`
}

// S3Config configures bucket listing.
type S3Config struct {
	BucketRoot        string  `mapstructure:"bucket_root" yaml:"bucket_root"`
	Region            string  `mapstructure:"region" yaml:"region"`
	HostMarker        string  `mapstructure:"host_marker" yaml:"host_marker"`
	PageSize          int     `mapstructure:"page_size" yaml:"page_size"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// ListingConfig configures HTML index scraping.
type ListingConfig struct {
	Denylist []string `mapstructure:"denylist" yaml:"denylist"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EngineConfig locates and manages the demo player engine.
type EngineConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Binary     string `mapstructure:"binary" yaml:"binary"`
	ZipURL     string `mapstructure:"zip_url" yaml:"zip_url"`
	ModDir     string `mapstructure:"mod_dir" yaml:"mod_dir"`
	PlayerName string `mapstructure:"player_name" yaml:"player_name"`
}

// MapsConfig configures map package downloads.
type MapsConfig struct {
	ZipURLPattern string `mapstructure:"zip_url_pattern" yaml:"zip_url_pattern"`
}

// DownloadsConfig configures where demos are stored.
type DownloadsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// UpdateConfig configures the release check.
type UpdateConfig struct {
	APIURL         string `mapstructure:"api_url" yaml:"api_url"`
	CurrentVersion string `mapstructure:"current_version" yaml:"current_version"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Validate checks the configuration for values that would fail later.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("sources[%d] %q: url is required", i, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, s.Name)
		}
		seen[s.Name] = true
		if _, err := listing.ParseProtocol(s.Protocol); err != nil {
			return fmt.Errorf("sources[%d] %q: %w", i, s.Name, err)
		}
	}
	if c.S3.PageSize < 0 {
		return fmt.Errorf("s3.page_size must not be negative")
	}
	if c.S3.RequestsPerSecond < 0 {
		return fmt.Errorf("s3.requests_per_second must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q: want console or json", c.Logging.Format)
	}
	return nil
}

// normalize fills derived values after decoding.
func (c *Config) normalize() {
	for i := range c.Sources {
		c.Sources[i].Name = strings.TrimSpace(c.Sources[i].Name)
		if u := strings.TrimSpace(c.Sources[i].URL); u != "" {
			c.Sources[i].URL = urlpath.EnsureTrailingSlash(u)
		}
	}
	if c.S3.BucketRoot != "" {
		c.S3.BucketRoot = urlpath.EnsureTrailingSlash(strings.TrimSpace(c.S3.BucketRoot))
	}
	if c.S3.HostMarker == "" {
		c.S3.HostMarker = listing.DefaultS3HostMarker
	}
	if c.Engine.Binary == "" {
		c.Engine.Binary = "q2pro"
	}
	if c.Engine.ModDir == "" {
		c.Engine.ModDir = "action"
	}
}

// EngineDir returns the engine directory, defaulting to "q2pro" next to the
// running executable.
func (c *Config) EngineDir() string {
	if c.Engine.Dir != "" {
		return c.Engine.Dir
	}
	return filepath.Join(executableDir(), "q2pro")
}

// DownloadDir returns the demo download directory, defaulting to
// <engine dir>/<mod dir>/demos.
func (c *Config) DownloadDir() string {
	if c.Downloads.Dir != "" {
		return c.Downloads.Dir
	}
	return filepath.Join(c.EngineDir(), c.Engine.ModDir, "demos")
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
