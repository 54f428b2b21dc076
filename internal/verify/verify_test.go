package verify

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/installer"
	"github.com/relicrush/relicpack/internal/layout"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func installed(t *testing.T, desktop bool) (layout.Layout, string) {
	t.Helper()
	src := t.TempDir()
	write(t, filepath.Join(src, "a.png"), "a")
	write(t, filepath.Join(src, "relics", "b.png"), "b")

	lay := layout.New(t.TempDir(), "App.exe")
	write(t, lay.ExePath, "MZ")
	write(t, filepath.Join(lay.IconsDir, "a.png"), "a")
	write(t, filepath.Join(lay.IconsDir, "relics", "b.png"), "b")
	require.NoError(t, os.MkdirAll(lay.DataDir, 0o777))
	rec := &installer.Record{AppName: "App", Version: "1.0.0", Files: []string{"App.exe"}, DesktopShortcut: desktop}
	require.NoError(t, rec.Save(lay.RecordPath))
	return lay, src
}

func byName(findings []Finding) map[string]Finding {
	out := map[string]Finding{}
	for _, f := range findings {
		out[f.Name] = f
	}
	return out
}

func TestCheck_Healthy(t *testing.T) {
	lay, src := installed(t, false)
	desktop := filepath.Join(t.TempDir(), "App.lnk")

	findings := Check(lay, Options{SourceIcons: src, DesktopShortcut: desktop})
	require.Len(t, findings, 5)
	for _, f := range findings {
		assert.True(t, f.OK, "%s: %s", f.Name, f.Detail)
	}
	assert.NoError(t, Failed(findings))
	entries, err := os.ReadDir(lay.DataDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe is cleaned up")
}

func TestCheck_Problems(t *testing.T) {
	lay, src := installed(t, true)
	require.NoError(t, os.Remove(filepath.Join(lay.IconsDir, "relics", "b.png")))
	require.NoError(t, os.RemoveAll(lay.DataDir))
	desktop := filepath.Join(t.TempDir(), "App.lnk")

	got := byName(Check(lay, Options{SourceIcons: src, DesktopShortcut: desktop}))
	assert.True(t, got["executable"].OK)
	assert.False(t, got["icons"].OK)
	assert.Contains(t, got["icons"].Detail, "relics/b.png")
	assert.False(t, got["data directory"].OK)
	assert.False(t, got["desktop shortcut"].OK)

	err := Failed(Check(lay, Options{SourceIcons: src, DesktopShortcut: desktop}))
	assert.True(t, apperr.Is(err, apperr.CodeVerifyFailed))
}

func TestCheck_DesktopWithoutOptIn(t *testing.T) {
	lay, _ := installed(t, false)
	desktop := filepath.Join(t.TempDir(), "App.lnk")
	write(t, desktop, "link")

	got := byName(Check(lay, Options{DesktopShortcut: desktop}))
	assert.False(t, got["desktop shortcut"].OK)
	assert.Contains(t, got["desktop shortcut"].Detail, "without opt-in")
}

func TestRender(t *testing.T) {
	findings := []Finding{{Name: "executable", OK: true, Detail: "App.exe"}, {Name: "icons", Detail: "missing"}}

	var text bytes.Buffer
	require.NoError(t, RenderText(&text, "Install check", findings))
	assert.Contains(t, text.String(), "Install check")
	assert.Contains(t, text.String(), "FAIL")
	assert.NotContains(t, text.String(), "\x1b[", "plain output for non-terminals")

	var js bytes.Buffer
	require.NoError(t, RenderJSON(&js, findings))
	var back []Finding
	require.NoError(t, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, findings, back)
}
