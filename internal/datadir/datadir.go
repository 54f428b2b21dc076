// Package datadir reports on and backs up the application's DB directory. The
// directory's contents belong to the application; relicpack only lists them,
// integrity-checks SQLite databases read-only, and archives them on request.
package datadir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relicrush/relicpack/internal/archive"
	"github.com/relicrush/relicpack/internal/layout"
)

// File describes one file in the data directory.
type File struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	// Integrity is the integrity_check result for SQLite files, empty otherwise.
	Integrity string `json:"integrity,omitempty"`
	Corrupt   bool   `json:"corrupt,omitempty"`
}

// Report is the result of Inspect.
type Report struct {
	Dir       string `json:"dir"`
	Exists    bool   `json:"exists"`
	Files     []File `json:"files"`
	TotalSize int64  `json:"total_size"`
}

// Corrupt returns the files whose integrity check failed.
func (r *Report) Corrupt() []File {
	var out []File
	for _, f := range r.Files {
		if f.Corrupt {
			out = append(out, f)
		}
	}
	return out
}

var sqliteExts = map[string]bool{".db": true, ".sqlite": true, ".sqlite3": true}

// Inspect walks dir and integrity-checks every SQLite database in it. A missing
// directory yields a report with Exists false.
func Inspect(ctx context.Context, dir string) (*Report, error) {
	rep := &Report{Dir: dir}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return rep, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	rep.Exists = true

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		f := File{Path: filepath.ToSlash(rel), Size: fi.Size(), ModTime: fi.ModTime()}
		if sqliteExts[strings.ToLower(filepath.Ext(p))] {
			f.Integrity, f.Corrupt = CheckSQLite(ctx, p)
		}
		rep.Files = append(rep.Files, f)
		rep.TotalSize += f.Size
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// readOnlyURI builds a file: URI for path with mode=ro. Each path segment is
// escaped so "?", "#" and "%" in directory names stay part of the path.
func readOnlyURI(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "file:" + strings.Join(segments, "/") + "?mode=ro&_pragma=busy_timeout(5000)"
}

// CheckSQLite runs PRAGMA integrity_check on a read-only connection. It returns
// "ok" or the reported problems, and whether the database is corrupt.
func CheckSQLite(ctx context.Context, path string) (string, bool) {
	db, err := sql.Open("sqlite", readOnlyURI(path))
	if err != nil {
		return err.Error(), true
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return err.Error(), true
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return err.Error(), true
		}
		problems = append(problems, line)
	}
	if err := rows.Err(); err != nil {
		return err.Error(), true
	}
	if len(problems) == 1 && problems[0] == "ok" {
		return "ok", false
	}
	return strings.Join(problems, "; "), true
}

// Backup zips dir into dst with entries under DB/.
func Backup(dir, dst string) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	_, err := archive.ZipDir(dst, dir, layout.DataDirName)
	return err
}

// BackupName is the default backup file name for a given time.
func BackupName(now time.Time) string {
	return "DB-backup-" + now.Format("20060102-150405") + ".zip"
}
