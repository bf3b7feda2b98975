package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config discovery at empty temp directories and clears any
// explicit config file.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		SetConfigFile("")
	})
	SetConfigFile("")
	return dir
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)

		require.NotEmpty(t, cfg.Sources)
		assert.Equal(t, "s3", cfg.Sources[0].Protocol)
		assert.Equal(t, "https://aq2-demos.s3.amazonaws.com/", cfg.S3.BucketRoot)
		assert.Equal(t, "s3.amazonaws.com", cfg.S3.HostMarker)
		assert.Equal(t, []string{"browsehappy.com", "larsjung.de/h5ai"}, cfg.Listing.Denylist)
		assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
		assert.Equal(t, "q2pro", cfg.Engine.Binary)
		assert.Equal(t, "action", cfg.Engine.ModDir)
		assert.Equal(t, "AQtionDemoLauncher", cfg.Engine.PlayerName)
		assert.Empty(t, ConfigFileUsed())
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		assert.Equal(t, "console", cfg.Logging.Format, "sibling keys keep defaults")
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("DEMOLAUNCHER_PORT", "3000")
		t.Setenv("DEMOLAUNCHER_LOG_LEVEL", "warn")
		t.Setenv("DEMOLAUNCHER_DOWNLOAD_DIR", "/tmp/demos")
		t.Setenv("DEMOLAUNCHER_S3_REQUESTS_PER_SECOND", "2.5")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "/tmp/demos", cfg.DownloadDir())
		assert.Equal(t, 2.5, cfg.S3.RequestsPerSecond)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		t.Setenv("DEMOLAUNCHER_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{"server": map[string]any{"port": 5000}})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFileInWorkingDir", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "demolauncher.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - name: Mirror
    url: https://demos.example.com/aq
  - name: Bucket
    url: http://127.0.0.1:9000/demos/aq/
    protocol: s3
server:
  port: 7000
`), 0o644))

		cfg, err := Load(ctx)
		require.NoError(t, err)

		resolved, err := filepath.EvalSymlinks(path)
		require.NoError(t, err)
		used, err := filepath.EvalSymlinks(ConfigFileUsed())
		require.NoError(t, err)
		assert.Equal(t, resolved, used)

		require.Len(t, cfg.Sources, 2, "file list replaces default list")
		assert.Equal(t, "https://demos.example.com/aq/", cfg.Sources[0].URL)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "localhost", cfg.Server.Host)
	})

	t.Run("ExplicitConfigFile", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: json\n"), 0o644))
		SetConfigFile(path)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, path, ConfigFileUsed())
	})

	t.Run("MissingExplicitConfigFile", func(t *testing.T) {
		dir := isolate(t)
		SetConfigFile(filepath.Join(dir, "absent.yaml"))

		_, err := Load(ctx)
		assert.Error(t, err)
	})

	t.Run("InvalidConfigRejected", func(t *testing.T) {
		isolate(t)
		_, err := Load(ctx, map[string]any{"logging": map[string]any{"format": "xml"}})
		assert.ErrorContains(t, err, "logging.format")
	})

	t.Run("CanceledContext", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load(canceled)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetConfig(t *testing.T) {
	isolate(t)
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestConfigReload(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	cfg1, err := Load(ctx)
	require.NoError(t, err)
	initialPort := cfg1.Server.Port

	cfg2, err := Load(ctx, map[string]any{"server": map[string]any{"port": initialPort + 1000}})
	require.NoError(t, err)
	assert.Equal(t, initialPort+1000, cfg2.Server.Port)
	assert.Equal(t, cfg2.Server.Port, GetConfig().Server.Port)
}

func TestDurationParsing(t *testing.T) {
	isolate(t)
	t.Setenv("DEMOLAUNCHER_READ_TIMEOUT", "45s")
	t.Setenv("DEMOLAUNCHER_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestEnvSpecs(t *testing.T) {
	isolate(t)
	_, err := Load(context.Background())
	require.NoError(t, err)

	specs := getEnvSpecs()
	require.NotEmpty(t, specs)

	names := make(map[string]bool)
	for _, spec := range specs {
		assert.Contains(t, spec.Name, "DEMOLAUNCHER_")
		assert.NotEmpty(t, spec.Path, "env var %s should have a path", spec.Name)
		assert.False(t, names[spec.Name], "duplicate env var %s", spec.Name)
		names[spec.Name] = true
	}
	assert.True(t, names["DEMOLAUNCHER_LOG_LEVEL"])
	assert.True(t, names["DEMOLAUNCHER_PORT"])
	assert.True(t, names["DEMOLAUNCHER_DOWNLOAD_DIR"])
}

// resetAppIdentity resets package state for isolated tests.
func resetAppIdentity() {
	configMu.Lock()
	defer configMu.Unlock()
	appIdentity = nil
	appConfig = nil
}

func TestNilIdentity(t *testing.T) {
	resetAppIdentity()
	defer func() {
		_, _ = Identity()
	}()

	assert.Empty(t, getUserConfigPaths())
	assert.Empty(t, getEnvSpecs())
	assert.Nil(t, GetConfig())
}

func TestIdentity(t *testing.T) {
	id, err := Identity()
	require.NoError(t, err)
	assert.Equal(t, "demolauncher", id.BinaryName)
	assert.Equal(t, "DEMOLAUNCHER_", id.EnvPrefix)
	assert.Equal(t, "demolauncher", id.ConfigName)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			Sources: []SourceConfig{{Name: "a", URL: "https://demos.example.com/"}},
			Server:  ServerConfig{Port: 8080},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing name", func(c *Config) { c.Sources[0].Name = " " }, "name is required"},
		{"missing url", func(c *Config) { c.Sources[0].URL = "" }, "url is required"},
		{"duplicate", func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }, "duplicate source name"},
		{"bad protocol", func(c *Config) { c.Sources[0].Protocol = "ftp" }, "unknown listing protocol"},
		{"negative page size", func(c *Config) { c.S3.PageSize = -1 }, "page_size"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDirDefaults(t *testing.T) {
	cfg := Config{Engine: EngineConfig{Dir: "/opt/q2pro", ModDir: "action"}}
	assert.Equal(t, "/opt/q2pro", cfg.EngineDir())
	assert.Equal(t, filepath.Join("/opt/q2pro", "action", "demos"), cfg.DownloadDir())

	cfg.Downloads.Dir = "/data/demos"
	assert.Equal(t, "/data/demos", cfg.DownloadDir())

	cfg.Engine.Dir = ""
	assert.Equal(t, "q2pro", filepath.Base(cfg.EngineDir()))
}
