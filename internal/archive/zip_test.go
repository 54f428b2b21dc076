package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func names(t *testing.T, zipPath string) []string {
	t.Helper()
	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()
	var out []string
	for _, f := range r.File {
		out = append(out, f.Name)
	}
	return out
}

func TestZipDir(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "relic_companion.db"), "db")
	write(t, filepath.Join(src, "backups", "old.db"), "old")
	dst := filepath.Join(t.TempDir(), "out", "DB.zip")

	n, err := ZipDir(dst, src, "DB")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"DB/", "DB/backups/", "DB/backups/old.db", "DB/relic_companion.db"}, names(t, dst))
	assert.NoFileExists(t, dst+".tmp")
}

func TestZipFiles_DirectoryEntry(t *testing.T) {
	src := t.TempDir()
	exe := filepath.Join(src, "App.exe")
	write(t, exe, "MZ")
	dst := filepath.Join(t.TempDir(), "portable.zip")

	require.NoError(t, ZipFiles(dst, []Entry{
		{Name: "App/App.exe", Path: exe},
		{Name: "App/DB"},
	}))
	assert.Equal(t, []string{"App/App.exe", "App/DB/"}, names(t, dst))
}

func TestExtract_RoundTrip(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "icons", "a.png"), "png")
	write(t, filepath.Join(src, "main.py"), "print()")
	zipPath := filepath.Join(t.TempDir(), "release.zip")
	_, err := ZipDir(zipPath, src, "RelicCompanion-1.2.0")
	require.NoError(t, err)

	out := t.TempDir()
	files, err := Extract(zipPath, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"RelicCompanion-1.2.0/icons/a.png", "RelicCompanion-1.2.0/main.py"}, files)
	data, err := os.ReadFile(filepath.Join(out, "RelicCompanion-1.2.0", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print()", string(data))
}

func TestExtract_RejectsTraversal(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out := t.TempDir()
	_, err = Extract(zipPath, out)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(out), "escape.txt"))
}
