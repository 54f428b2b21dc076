// Package archive writes and extracts the zip files relicpack produces: the
// portable release zip and data directory backups.
package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Entry places one file, or a directory when Path is empty, into an archive.
type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	// Path is the source file on disk.
	Path string
}

// ZipDir archives every file below srcDir under prefix and returns the number of
// files written. An empty srcDir still produces an archive holding the prefix entry.
func ZipDir(dst, srcDir, prefix string) (int, error) {
	entries, err := DirEntries(srcDir, prefix)
	if err != nil {
		return 0, err
	}
	if err := ZipFiles(dst, entries); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Path != "" {
			n++
		}
	}
	return n, nil
}

// DirEntries lists srcDir as archive entries rooted at prefix, directories included.
func DirEntries(srcDir, prefix string) ([]Entry, error) {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")
	var entries []Entry
	if prefix != "" {
		entries = append(entries, Entry{Name: prefix + "/"})
	}
	err := filepath.WalkDir(srcDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil || rel == "." {
			return err
		}
		name := path.Join(prefix, filepath.ToSlash(rel))
		if d.IsDir() {
			entries = append(entries, Entry{Name: name + "/"})
			return nil
		}
		if d.Type().IsRegular() {
			entries = append(entries, Entry{Name: name, Path: p})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", srcDir, err)
	}
	return entries, nil
}

// ZipFiles writes entries to dst, sorted by name, through a temporary file.
func ZipFiles(dst string, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	writeErr := writeEntries(zw, sorted)
	if errClose := zw.Close(); writeErr == nil {
		writeErr = errClose
	}
	if errClose := out.Close(); writeErr == nil {
		writeErr = errClose
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return writeErr
	}
	_ = os.Remove(dst)
	return os.Rename(tmp, dst)
}

func writeEntries(zw *zip.Writer, entries []Entry) error {
	for _, e := range entries {
		if e.Path == "" {
			name := e.Name
			if !strings.HasSuffix(name, "/") {
				name += "/"
			}
			if _, err := zw.Create(name); err != nil {
				return err
			}
			continue
		}
		if err := addFile(zw, e); err != nil {
			return fmt.Errorf("add %s: %w", e.Name, err)
		}
	}
	return nil
}

func addFile(zw *zip.Writer, e Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Extract unpacks src into dstDir and returns the extracted file names
// (slash-separated). Entries that would land outside dstDir are rejected.
func Extract(src, dstDir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	base := filepath.Clean(dstDir)
	var files []string
	for _, f := range r.File {
		target := filepath.Join(base, filepath.FromSlash(f.Name))
		if target != base && !strings.HasPrefix(target, base+string(os.PathSeparator)) {
			return files, fmt.Errorf("invalid file path in zip: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return files, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		files = append(files, path.Clean(f.Name))
	}
	sort.Strings(files)
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
