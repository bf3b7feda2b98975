package cmd

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/demolauncher/internal/config"
	"github.com/3leaps/demolauncher/pkg/engine"
)

func TestCheckSources(t *testing.T) {
	tests := []struct {
		name    string
		sources []config.SourceConfig
		want    checkStatus
	}{
		{"none", nil, checkFail},
		{"bad protocol", []config.SourceConfig{{Name: "a", URL: "https://x/", Protocol: "ftp"}}, checkFail},
		{"ok", []config.SourceConfig{{Name: "a", URL: "https://x/"}}, checkOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := checkSources(&config.Config{Sources: tt.sources})
			assert.Equal(t, tt.want, r.Status, r.Detail)
		})
	}
}

func TestCheckDownloadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "demos")
	r := checkDownloadDir(dir)
	assert.Equal(t, checkOK, r.Status, r.Detail)
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file is cleaned up")

	if runtime.GOOS != "windows" && os.Getuid() != 0 {
		ro := t.TempDir()
		require.NoError(t, os.Chmod(ro, 0o555))
		t.Cleanup(func() { _ = os.Chmod(ro, 0o755) })
		assert.Equal(t, checkFail, checkDownloadDir(ro).Status)
	}
}

func TestCheckEngine(t *testing.T) {
	dir := t.TempDir()
	none := func(context.Context) ([]string, error) { return nil, nil }

	eng := engine.New(engine.Config{Dir: dir}, engine.WithProcessLister(none))
	r := checkEngine(context.Background(), eng)
	assert.Equal(t, checkWarn, r.Status)
	assert.Contains(t, r.Hint, "engine install")

	bin := filepath.Join(dir, "q2pro")
	require.NoError(t, os.WriteFile(bin, []byte("bin"), 0o755))
	r = checkEngine(context.Background(), eng)
	assert.Equal(t, checkOK, r.Status)
	assert.Contains(t, r.Detail, bin)

	running := engine.New(engine.Config{Dir: dir}, engine.WithProcessLister(func(context.Context) ([]string, error) {
		return []string{bin}, nil
	}))
	r = checkEngine(context.Background(), running)
	assert.Equal(t, checkWarn, r.Status)
	assert.Contains(t, r.Detail, "running")
}

func TestDoctorChecks_Local(t *testing.T) {
	cfg := &config.Config{
		Sources:   []config.SourceConfig{{Name: "a", URL: "https://demos.example.com/"}},
		Engine:    config.EngineConfig{Dir: t.TempDir(), Binary: "q2pro", ModDir: "action"},
		Downloads: config.DownloadsConfig{Dir: t.TempDir()},
	}
	results := doctorChecks(context.Background(), cfg, false)
	require.Len(t, results, 5)
	for _, r := range results {
		assert.NotEqual(t, checkFail, r.Status, "%s: %s", r.Name, r.Detail)
	}
}
