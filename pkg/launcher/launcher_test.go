package launcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/demolauncher/pkg/download"
	"github.com/3leaps/demolauncher/pkg/engine"
	"github.com/3leaps/demolauncher/pkg/navigator"
)

type fixture struct {
	dir     string
	demoDir string
	modDir  string
	srv     *httptest.Server
	started [][]string
	mu      sync.Mutex
	running bool
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir()}
	f.modDir = filepath.Join(f.dir, "action")
	f.demoDir = filepath.Join(f.modDir, "demos")
	require.NoError(t, os.MkdirAll(f.demoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "q2pro"), nil, 0o755))

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) player(pattern string) *Player {
	d := download.New(download.WithHTTPClient(f.srv.Client()))
	eng := engine.New(engine.Config{
		Dir:              f.dir,
		PlayerName:       "Tester",
		MapZipURLPattern: pattern,
	},
		engine.WithDownloader(d),
		engine.WithProcessLister(func(context.Context) ([]string, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.running {
				return []string{filepath.Join(f.dir, "q2pro")}, nil
			}
			return nil, nil
		}),
		engine.WithStarter(func(binary string, args []string, dir string) (int, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.started = append(f.started, args)
			return 7, nil
		}),
	)
	return New(eng, d, nil)
}

func (f *fixture) target(name string) navigator.DownloadTarget {
	return navigator.DownloadTarget{
		Name:      name,
		URL:       f.srv.URL + "/demos/" + name,
		LocalPath: filepath.Join(f.demoDir, name),
	}
}

func TestPlay_DownloadsMapAndLaunches(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/demos/match.dm2": "header maps/Urban3.bsp rest",
		"/maps/urban3.zip": "pkz",
	})
	p := f.player(f.srv.URL + "/maps/{map}.zip")

	report, err := p.Play(context.Background(), f.target("match.dm2"), nil)
	require.NoError(t, err)

	assert.True(t, report.Downloaded)
	assert.Equal(t, "urban3", report.Map)
	assert.True(t, report.MapDownloaded)
	assert.Equal(t, filepath.Join(f.modDir, "urban3.pkz"), report.MapPackage)
	assert.Empty(t, report.Warning)
	require.NotNil(t, report.Launch)
	assert.Equal(t, 7, report.Launch.PID)

	require.Len(t, f.started, 1)
	assert.Equal(t, []string{"+name", "Tester", "+demo", "match.dm2"}, f.started[0])
	assert.FileExists(t, filepath.Join(f.demoDir, "match.dm2"))
}

func TestPlay_PresentDemoIsNotDownloaded(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.demoDir, "local.mvd2"), []byte("no map here"), 0o644))

	report, err := f.player("").Play(context.Background(), f.target("local.mvd2"), nil)
	require.NoError(t, err)
	assert.False(t, report.Downloaded)
	assert.Empty(t, report.Map)
	assert.Equal(t, []string{"+name", "Tester", "+mvdplay", "local.mvd2"}, f.started[0])
}

func TestPlay_MissingMapIsWarning(t *testing.T) {
	f := newFixture(t, map[string]string{"/demos/m.mvd2": "maps/nowhere"})

	report, err := f.player(f.srv.URL + "/maps/{map}.zip").Play(context.Background(), f.target("m.mvd2"), nil)
	require.NoError(t, err)
	assert.Equal(t, "nowhere", report.Map)
	assert.True(t, strings.Contains(report.Warning, "nowhere"))
	assert.NotNil(t, report.Launch)
}

func TestPlay_Refusals(t *testing.T) {
	t.Run("engine running", func(t *testing.T) {
		f := newFixture(t, map[string]string{"/demos/a.dm2": "x"})
		f.running = true
		_, err := f.player("").Play(context.Background(), f.target("a.dm2"), nil)
		assert.ErrorIs(t, err, engine.ErrAlreadyRunning)
		assert.NoFileExists(t, filepath.Join(f.demoDir, "a.dm2"), "nothing downloaded")
	})

	t.Run("engine missing", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, os.Remove(filepath.Join(f.dir, "q2pro")))
		_, err := f.player("").Play(context.Background(), f.target("a.dm2"), nil)
		assert.ErrorIs(t, err, engine.ErrNotInstalled)
	})

	t.Run("download failure", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.player("").Play(context.Background(), f.target("gone.dm2"), nil)
		require.Error(t, err)
		assert.True(t, download.IsBadStatus(err))
		assert.Empty(t, f.started)
	})
}
