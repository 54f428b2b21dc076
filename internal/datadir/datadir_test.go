package datadir

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE inventory (relic TEXT PRIMARY KEY, count INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO inventory VALUES ('Axi A1', 3), ('Lith G1', 1)`)
	require.NoError(t, err)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	createDB(t, filepath.Join(dir, "relic_companion.db"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.db"), []byte("this is not sqlite at all, just text padding it out"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{"theme":"dark"}`), 0o644))

	rep, err := Inspect(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, rep.Exists)
	require.Len(t, rep.Files, 3)

	byName := map[string]File{}
	for _, f := range rep.Files {
		byName[f.Path] = f
	}
	assert.Equal(t, "ok", byName["relic_companion.db"].Integrity)
	assert.False(t, byName["relic_companion.db"].Corrupt)
	assert.True(t, byName["broken.db"].Corrupt)
	assert.Empty(t, byName["settings.json"].Integrity)

	corrupt := rep.Corrupt()
	require.Len(t, corrupt, 1)
	assert.Equal(t, "broken.db", corrupt[0].Path)
	assert.Positive(t, rep.TotalSize)
}

func TestCheckSQLite_ReservedCharactersInPath(t *testing.T) {
	name := "relics #1 50%"
	if runtime.GOOS != "windows" {
		name += " ?ro"
	}
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	staging := filepath.Join(t.TempDir(), "relic_companion.db")
	createDB(t, staging)
	db := filepath.Join(dir, "relic_companion.db")
	require.NoError(t, os.Rename(staging, db))

	integrity, corrupt := CheckSQLite(context.Background(), db)
	assert.Equal(t, "ok", integrity)
	assert.False(t, corrupt)
}

func TestReadOnlyURI(t *testing.T) {
	assert.Equal(t, "file:/data/a%3Fb/c%23d/e%25f.db?mode=ro&_pragma=busy_timeout(5000)",
		readOnlyURI(filepath.FromSlash("/data/a?b/c#d/e%f.db")))
}

func TestInspect_Missing(t *testing.T) {
	rep, err := Inspect(context.Background(), filepath.Join(t.TempDir(), "DB"))
	require.NoError(t, err)
	assert.False(t, rep.Exists)
	assert.Empty(t, rep.Files)
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{}"), 0o644))
	dst := filepath.Join(t.TempDir(), BackupName(time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "DB-backup-20261014-093000.zip", filepath.Base(dst))

	require.NoError(t, Backup(dir, dst))
	r, err := zip.OpenReader(dst)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"DB/", "DB/settings.json"}, names)
}

func TestBackup_MissingDir(t *testing.T) {
	assert.Error(t, Backup(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "x.zip")))
}
