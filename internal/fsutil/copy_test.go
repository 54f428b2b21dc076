package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestCopyTree_Recursive(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "app.ico"), "ico")
	writeFile(t, filepath.Join(src, "relics", "lith.png"), "png")
	writeFile(t, filepath.Join(src, "relics", "deep", "axi.png"), "png2")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	dst := filepath.Join(t.TempDir(), "icons")
	copied, err := CopyTree(src, dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.ico", "relics/deep/axi.png", "relics/lith.png"}, copied)
	assert.True(t, IsDir(filepath.Join(dst, "empty")))

	got, err := os.ReadFile(filepath.Join(dst, "relics", "deep", "axi.png"))
	require.NoError(t, err)
	assert.Equal(t, "png2", string(got))
}

func TestReplaceTree_DropsStaleFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "relics.db"), "fresh")

	dst := filepath.Join(t.TempDir(), "DB")
	writeFile(t, filepath.Join(dst, "relics.db"), "stale")
	writeFile(t, filepath.Join(dst, "removed-upstream.json"), "old")

	_, err := ReplaceTree(src, dst)
	require.NoError(t, err)

	files, err := ListFiles(dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"relics.db"}, files)
	got, _ := os.ReadFile(filepath.Join(dst, "relics.db"))
	assert.Equal(t, "fresh", string(got))
}

func TestReplaceTree_MissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "icons")
	writeFile(t, filepath.Join(dst, "old.png"), "x")

	_, err := ReplaceTree(filepath.Join(t.TempDir(), "nope"), dst)
	require.Error(t, err)
	assert.False(t, Exists(dst), "destination is removed before the copy starts")
}

func TestCopyTree_RejectsFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "file")
	writeFile(t, src, "x")
	_, err := CopyTree(src, t.TempDir())
	assert.Error(t, err)
}

func TestRemoveIfEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	writeFile(t, filepath.Join(full, "keep"), "x")

	removed, err := RemoveIfEmpty(empty)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, Exists(empty))

	removed, err = RemoveIfEmpty(full)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = RemoveIfEmpty(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, removed)
}
