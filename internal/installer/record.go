package installer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Record is the uninstall log written next to the installed application. Paths in
// Files and Dirs are relative to Root and slash-separated; Shortcuts and ShortcutDirs
// are absolute. The data directory is never listed in Files or Dirs.
type Record struct {
	AppID           string    `json:"app_id"`
	AppName         string    `json:"app_name"`
	Version         string    `json:"version"`
	Root            string    `json:"root"`
	Scope           string    `json:"scope"`
	Exe             string    `json:"exe"`
	InstalledAt     time.Time `json:"installed_at"`
	Files           []string  `json:"files"`
	Dirs            []string  `json:"dirs"`
	Shortcuts       []string  `json:"shortcuts,omitempty"`
	ShortcutDirs    []string  `json:"shortcut_dirs,omitempty"`
	DesktopShortcut bool      `json:"desktop_shortcut"`
	DataDir         string    `json:"data_dir"`
	// Registered reports whether an uninstall entry was written to the system.
	Registered bool `json:"registered,omitempty"`
}

// LoadRecord reads the record at path. A missing file returns (nil, nil).
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save writes the record through a temporary file and a rename.
func (r *Record) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// merge unions two path lists, sorted and without duplicates.
func merge(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if _, ok := seen[p]; ok || p == "" {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// deepestFirst orders relative directories so children are removed before parents.
func deepestFirst(dirs []string) []string {
	out := append([]string(nil), dirs...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := strings.Count(out[i], "/"), strings.Count(out[j], "/")
		if di != dj {
			return di > dj
		}
		return out[i] > out[j]
	})
	return out
}

// insideRoot resolves rel against root and rejects paths that escape it.
func insideRoot(root, rel string) (string, bool) {
	p := filepath.Join(root, filepath.FromSlash(rel))
	back, err := filepath.Rel(root, p)
	if err != nil || back == "." || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}
