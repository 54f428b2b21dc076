package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicrush/relicpack/internal/archive"
	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
)

const releaseJSON = `{
  "tag_name": "v1.2.0",
  "name": "Relic Companion 1.2.0",
  "body": "New relic tables.",
  "zipball_url": "https://api.github.com/repos/RelicRush/RelicCompanion/zipball/v1.2.0",
  "assets": [
    {"name": "old.exe", "browser_download_url": "https://example.com/old.exe"},
    {"name": "WarframeRelicCompanion.exe", "browser_download_url": "https://example.com/WarframeRelicCompanion.exe"},
    {"name": "WarframeRelicCompanion.zip", "browser_download_url": "https://example.com/WarframeRelicCompanion.zip"}
  ]
}`

func TestParseRelease_AssetChoice(t *testing.T) {
	rel := ParseRelease([]byte(releaseJSON))
	assert.Equal(t, "v1.2.0", rel.Version())
	assert.Equal(t, "https://example.com/WarframeRelicCompanion.exe", rel.ExeURL(), "last .exe wins")
	assert.Equal(t, "https://example.com/WarframeRelicCompanion.zip", rel.ZipURL())

	bare := ParseRelease([]byte(`{"tag_name":"1.0.0","zipball_url":"https://example.com/src.zip","assets":[]}`))
	assert.Empty(t, bare.ExeURL())
	assert.Equal(t, "https://example.com/src.zip", bare.ZipURL())

	exeOnly := ParseRelease([]byte(`{"zipball_url":"z","assets":[{"name":"a.EXE","browser_download_url":"e"}]}`))
	assert.Equal(t, "e", exeOnly.ExeURL())
	assert.Empty(t, exeOnly.ZipURL())
}

func TestCheck(t *testing.T) {
	var gotPath, gotAccept, gotAgent, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotAgent = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(releaseJSON))
	}))
	defer srv.Close()

	c := NewClient(config.UpdateConfig{Owner: "RelicRush", Repo: "RelicCompanion", APIURL: srv.URL + "/", Token: "tok"})
	info, err := c.Check(context.Background(), "1.1.8")
	require.NoError(t, err)

	assert.Equal(t, "/repos/RelicRush/RelicCompanion/releases/latest", gotPath)
	assert.Equal(t, "application/vnd.github.v3+json", gotAccept)
	assert.Equal(t, "WarframeRelicCompanion-Updater", gotAgent)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.True(t, info.Available)
	assert.Equal(t, "v1.2.0", info.Latest)
	assert.Equal(t, "New relic tables.", info.Notes)

	info, err = c.Check(context.Background(), "1.2.0")
	require.NoError(t, err)
	assert.False(t, info.Available)
}

func TestFetchLatest_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(config.UpdateConfig{Owner: "o", Repo: "r", APIURL: srv.URL})
	_, err := c.FetchLatest(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNetworkFailed))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("MZ new build"))
	}))
	defer srv.Close()

	c := NewClient(config.UpdateConfig{})
	dest := filepath.Join(t.TempDir(), "dl", "new.exe")
	require.NoError(t, c.Download(context.Background(), srv.URL+"/new.exe", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "MZ new build", string(data))
	assert.NoFileExists(t, dest+".tmp")

	err = c.Download(context.Background(), srv.URL+"/missing", filepath.Join(t.TempDir(), "x"))
	assert.True(t, apperr.Is(err, apperr.CodeNetworkFailed))
}

func TestApplyExe(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "WarframeRelicCompanion.exe")
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o755))
	newExe := filepath.Join(t.TempDir(), "new.exe")
	require.NoError(t, os.WriteFile(newExe, []byte("new"), 0o755))

	require.NoError(t, ApplyExe(exe, newExe))
	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoFileExists(t, exe+".backup")
}

func TestApplyExe_RestoresOnFailure(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "WarframeRelicCompanion.exe")
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o755))

	err := ApplyExe(exe, filepath.Join(dir, "does-not-exist.exe"))
	require.Error(t, err)
	data, errRead := os.ReadFile(exe)
	require.NoError(t, errRead)
	assert.Equal(t, "old", string(data))
}

func TestApplyZip_PreservesUserData(t *testing.T) {
	root := t.TempDir()
	write := func(p, body string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	write(filepath.Join(root, "settings.json"), "mine")
	write(filepath.Join(root, "DB", "relic_companion.db"), "inventory")
	write(filepath.Join(root, "icons", "a.png"), "old icon")
	write(filepath.Join(root, "ui", "stale.py"), "stale")
	write(filepath.Join(root, "main.py"), "old main")

	src := t.TempDir()
	write(filepath.Join(src, "settings.json"), "theirs")
	write(filepath.Join(src, "DB", "relic_companion.db"), "empty")
	write(filepath.Join(src, "icons", "a.png"), "new icon")
	write(filepath.Join(src, "ui", "window.py"), "window")
	write(filepath.Join(src, "main.py"), "new main")
	zipPath := filepath.Join(t.TempDir(), "update.zip")
	_, err := archive.ZipDir(zipPath, src, "RelicRush-RelicCompanion-abc123")
	require.NoError(t, err)

	applied, err := ApplyZip(root, zipPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.py", "ui"}, applied)

	read := func(p string) string {
		data, err := os.ReadFile(filepath.Join(root, p))
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "mine", read("settings.json"))
	assert.Equal(t, "inventory", read("DB/relic_companion.db"))
	assert.Equal(t, "old icon", read("icons/a.png"))
	assert.Equal(t, "new main", read("main.py"))
	assert.Equal(t, "window", read("ui/window.py"))
	assert.NoFileExists(t, filepath.Join(root, "ui", "stale.py"), "directories are replaced, not merged")
}

func TestReleasesPage(t *testing.T) {
	assert.Equal(t, "https://github.com/RelicRush/RelicCompanion/releases/latest", ReleasesPage("RelicRush", "RelicCompanion"))
}
