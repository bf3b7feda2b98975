// Package config loads demolauncher configuration.
//
// Layers, lowest precedence first:
//
//  1. embedded defaults.yaml
//  2. the first demolauncher.yaml found in the executable dir, the working
//     dir or $XDG_CONFIG_HOME/demolauncher (or an explicit --config path)
//  3. DEMOLAUNCHER_* environment variables (see getEnvSpecs)
//  4. runtime overrides passed to Load
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	configassets "github.com/3leaps/demolauncher/internal/assets/configs"
)

// AppIdentity names the binary and its config conventions.
type AppIdentity struct {
	BinaryName  string `yaml:"binary_name"`
	Vendor      string `yaml:"vendor"`
	ConfigName  string `yaml:"config_name"`
	EnvPrefix   string `yaml:"env_prefix"`
	Description string `yaml:"description"`
}

// EnvSpec maps one environment variable to a config key path.
type EnvSpec struct {
	Name string
	Path string
}

var (
	configMu    sync.RWMutex
	appConfig   *Config
	appIdentity *AppIdentity

	// configFile is an explicit config path set by the CLI (--config).
	configFile string

	// usedConfigFile is the file merged by the last Load, if any.
	usedConfigFile string
)

// SetConfigFile forces Load to read path instead of searching.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = path
}

// ConfigFileUsed returns the config file merged by the last Load, or "".
func ConfigFileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return usedConfigFile
}

// Identity returns the embedded app identity, loading it on first use.
func Identity() (*AppIdentity, error) {
	configMu.Lock()
	defer configMu.Unlock()
	return loadIdentity()
}

func loadIdentity() (*AppIdentity, error) {
	if appIdentity != nil {
		return appIdentity, nil
	}
	var id AppIdentity
	if err := yaml.Unmarshal(configassets.AppIdentity, &id); err != nil {
		return nil, fmt.Errorf("parse embedded app identity: %w", err)
	}
	if id.BinaryName == "" || id.EnvPrefix == "" {
		return nil, errors.New("embedded app identity is missing binary_name or env_prefix")
	}
	if id.ConfigName == "" {
		id.ConfigName = id.BinaryName
	}
	appIdentity = &id
	return appIdentity, nil
}

// Load resolves the configuration from all layers and stores it for
// GetConfig. Each override map uses the same nested shape as the YAML file.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.Lock()
	defer configMu.Unlock()

	if _, err := loadIdentity(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(configassets.DefaultConfig)); err != nil {
		return nil, fmt.Errorf("read embedded defaults: %w", err)
	}

	usedConfigFile = ""
	path, err := resolveConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		usedConfigFile = path
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the configuration from the last successful Load, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func resolveConfigFile() (string, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return configFile, nil
	}
	for _, dir := range getUserConfigPaths() {
		for _, ext := range []string{".yaml", ".yml"} {
			candidate := filepath.Join(dir, appIdentity.ConfigName+ext)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate, nil
			}
		}
	}
	return "", nil
}

// getUserConfigPaths lists directories searched for a config file, in
// order. It is empty until the app identity is loaded.
func getUserConfigPaths() []string {
	if appIdentity == nil {
		return []string{}
	}

	var paths []string
	add := func(p string) {
		if p == "" {
			return
		}
		for _, existing := range paths {
			if existing == p {
				return
			}
		}
		paths = append(paths, p)
	}

	add(executableDir())
	if wd, err := os.Getwd(); err == nil {
		add(wd)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, appIdentity.BinaryName))
	} else if dir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(dir, appIdentity.BinaryName))
	}
	return paths
}

// getEnvSpecs returns the environment variable table. It is empty until the
// app identity is loaded.
func getEnvSpecs() []EnvSpec {
	if appIdentity == nil {
		return []EnvSpec{}
	}
	p := appIdentity.EnvPrefix
	return []EnvSpec{
		{Name: p + "LOG_LEVEL", Path: "logging.level"},
		{Name: p + "LOG_FORMAT", Path: "logging.format"},
		{Name: p + "HOST", Path: "server.host"},
		{Name: p + "PORT", Path: "server.port"},
		{Name: p + "READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: p + "WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: p + "IDLE_TIMEOUT", Path: "server.idle_timeout"},
		{Name: p + "SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: p + "S3_BUCKET_ROOT", Path: "s3.bucket_root"},
		{Name: p + "S3_REGION", Path: "s3.region"},
		{Name: p + "S3_HOST_MARKER", Path: "s3.host_marker"},
		{Name: p + "S3_PAGE_SIZE", Path: "s3.page_size"},
		{Name: p + "S3_REQUESTS_PER_SECOND", Path: "s3.requests_per_second"},
		{Name: p + "HTTP_USER_AGENT", Path: "http.user_agent"},
		{Name: p + "HTTP_TIMEOUT", Path: "http.timeout"},
		{Name: p + "ENGINE_DIR", Path: "engine.dir"},
		{Name: p + "ENGINE_BINARY", Path: "engine.binary"},
		{Name: p + "ENGINE_ZIP_URL", Path: "engine.zip_url"},
		{Name: p + "MOD_DIR", Path: "engine.mod_dir"},
		{Name: p + "PLAYER_NAME", Path: "engine.player_name"},
		{Name: p + "MAP_ZIP_URL_PATTERN", Path: "maps.zip_url_pattern"},
		{Name: p + "DOWNLOAD_DIR", Path: "downloads.dir"},
		{Name: p + "UPDATE_API_URL", Path: "update.api_url"},
	}
}

// flatten turns nested override maps into dotted viper keys so each leaf
// overrides only itself.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
