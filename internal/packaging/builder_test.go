package packaging

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/fsutil"
	"github.com/relicrush/relicpack/internal/metrics"
	"github.com/relicrush/relicpack/internal/toolexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newProject(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "WarframeRelicCompanion.spec"), "# spec")
	writeFile(t, filepath.Join(root, "DB", "relics.db"), "relics")
	writeFile(t, filepath.Join(root, "icons", "app.ico"), "ico")
	writeFile(t, filepath.Join(root, "icons", "relics", "lith.png"), "png")
	return &config.Config{
		Root: root,
		App:  config.AppConfig{Name: "Warframe Relic Companion", ExeName: "WarframeRelicCompanion.exe"},
		Build: config.BuildConfig{
			SpecFile:    "WarframeRelicCompanion.spec",
			Python:      "python",
			Packager:    "pyinstaller",
			SourceDB:    "DB",
			SourceIcons: "icons",
			DistDir:     "dist",
		},
	}
}

func notFound(name string) error {
	return &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func TestEnsureTool_Present(t *testing.T) {
	fake := &toolexec.Fake{}
	require.NoError(t, New(newProject(t), fake, nil).EnsureTool(context.Background()))
	assert.Equal(t, []string{"pyinstaller --version"}, fake.Lines())
}

func TestEnsureTool_AutoInstalls(t *testing.T) {
	probes := 0
	fake := &toolexec.Fake{Handle: func(c toolexec.Call) error {
		if c.Name == "pyinstaller" {
			probes++
			if probes == 1 {
				return notFound(c.Name)
			}
		}
		return nil
	}}
	require.NoError(t, New(newProject(t), fake, nil).EnsureTool(context.Background()))
	assert.Equal(t, []string{
		"pyinstaller --version",
		"python -m pip install pyinstaller",
		"pyinstaller --version",
	}, fake.Lines())
}

func TestEnsureTool_AutoInstallDisabled(t *testing.T) {
	cfg := newProject(t)
	off := false
	cfg.Build.AutoInstall = &off
	fake := &toolexec.Fake{Handle: func(c toolexec.Call) error { return notFound(c.Name) }}

	err := New(cfg, fake, nil).EnsureTool(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeToolMissing))
	assert.Len(t, fake.Calls, 1)
}

func TestPackage_Arguments(t *testing.T) {
	cfg := newProject(t)
	cfg.Build.ExtraArgs = []string{"--clean"}
	fake := &toolexec.Fake{}
	require.NoError(t, New(cfg, fake, nil).Package(context.Background()))

	require.Len(t, fake.Calls, 1)
	call := fake.Calls[0]
	assert.Equal(t, cfg.Root, call.Dir)
	assert.Equal(t, "pyinstaller", call.Name)
	assert.Equal(t, []string{"--noconfirm", filepath.Join(cfg.Root, "WarframeRelicCompanion.spec"), "--clean"}, call.Args)
}

func TestPackage_PropagatesExitCode(t *testing.T) {
	fake := &toolexec.Fake{Handle: func(toolexec.Call) error { return &toolexec.ExitError{Code: 3} }}
	err := New(newProject(t), fake, nil).Package(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeToolFailed, apperr.CodeOf(err))
	assert.Equal(t, 3, apperr.ExitCodeOf(err))
}

func TestPackage_MissingSpec(t *testing.T) {
	cfg := newProject(t)
	cfg.Build.SpecFile = "missing.spec"
	fake := &toolexec.Fake{}
	err := New(cfg, fake, nil).Package(context.Background())
	assert.True(t, apperr.Is(err, apperr.CodeConfigInvalid))
	assert.Empty(t, fake.Calls)
}

func TestRefreshAssets_ReplacesStaleTrees(t *testing.T) {
	cfg := newProject(t)
	dist := filepath.Join(cfg.Root, "dist")
	writeFile(t, filepath.Join(dist, "DB", "stale.json"), "old")
	writeFile(t, filepath.Join(dist, "icons", "retired.png"), "old")
	writeFile(t, filepath.Join(dist, "WarframeRelicCompanion.exe"), "exe")

	results, err := New(cfg, &toolexec.Fake{}, nil).RefreshAssets()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Files)
	assert.Equal(t, 2, results[1].Files)

	db, err := fsutil.ListFiles(filepath.Join(dist, "DB"))
	require.NoError(t, err)
	assert.Equal(t, []string{"relics.db"}, db)
	icons, err := fsutil.ListFiles(filepath.Join(dist, "icons"))
	require.NoError(t, err)
	assert.Equal(t, []string{"app.ico", "relics/lith.png"}, icons)
	assert.True(t, fsutil.Exists(filepath.Join(dist, "WarframeRelicCompanion.exe")), "packager output is untouched")
}

func TestRefreshAssets_MissingSourceSkipped(t *testing.T) {
	cfg := newProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(cfg.Root, "icons")))
	writeFile(t, filepath.Join(cfg.Root, "dist", "icons", "old.png"), "old")

	results, err := New(cfg, &toolexec.Fake{}, nil).RefreshAssets()
	require.NoError(t, err)
	assert.True(t, results[1].Skipped)
	assert.False(t, fsutil.Exists(filepath.Join(cfg.Root, "dist", "icons")))
}

func TestBuild_StopsAfterFailedPackage(t *testing.T) {
	cfg := newProject(t)
	fake := &toolexec.Fake{Handle: func(c toolexec.Call) error {
		if len(c.Args) > 0 && c.Args[0] == "--noconfirm" {
			return &toolexec.ExitError{Code: 1}
		}
		return nil
	}}
	rec := metrics.New()
	_, err := New(cfg, fake, rec).Build(context.Background())
	require.Error(t, err)
	assert.False(t, fsutil.Exists(filepath.Join(cfg.Root, "dist", "DB")), "assets are not copied after a failed package step")
}

func TestBuild_Sequence(t *testing.T) {
	cfg := newProject(t)
	fake := &toolexec.Fake{}
	results, err := New(cfg, fake, nil).Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "pyinstaller --version", fake.Lines()[0])
	assert.Len(t, fake.Calls, 2)
	assert.True(t, fsutil.Exists(filepath.Join(cfg.Root, "dist", "DB", "relics.db")))
}

func TestWatch_RefreshesOnChange(t *testing.T) {
	cfg := newProject(t)
	b := New(cfg, &toolexec.Fake{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	refreshed := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, 50*time.Millisecond, func(_ []AssetResult, err error) { refreshed <- err })
	}()

	target := filepath.Join(cfg.Root, "DB", "inventory.json")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case err := <-refreshed:
			require.NoError(t, err)
			break wait
		case <-tick.C:
			writeFile(t, target, time.Now().String())
		case <-deadline:
			t.Fatal("no refresh after source change")
		}
	}

	cancel()
	require.NoError(t, <-done)
	assert.True(t, fsutil.Exists(filepath.Join(cfg.Root, "dist", "DB", "inventory.json")))
}
