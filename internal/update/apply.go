package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relicrush/relicpack/internal/archive"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/fsutil"
	"github.com/relicrush/relicpack/internal/layout"
)

const downloadTimeout = 10 * time.Minute

// Entries an update never replaces.
var (
	PreservedFiles = []string{"settings.json", "relic_companion.db", "wfcd_relics.db"}
	PreservedDirs  = []string{layout.DataDirName, layout.IconsDirName}
)

// Download fetches url into dest through a temporary file.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	url = strings.TrimSpace(url)
	dest = strings.TrimSpace(dest)
	if url == "" || dest == "" {
		return apperr.Wrap(apperr.CodeNetworkFailed, "download", errors.New("missing url or destination"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Wrap(apperr.CodeNetworkFailed, "download", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/octet-stream")

	client := &http.Client{Timeout: downloadTimeout}
	if c.HTTP != nil && c.HTTP.Transport != nil {
		client.Transport = c.HTTP.Transport
	}
	resp, err := client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeNetworkFailed, "download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperr.Wrap(apperr.CodeNetworkFailed, "download",
			fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.CodeNetworkFailed, "download", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	_ = os.Remove(dest)
	return os.Rename(tmp, dest)
}

// ApplyExe swaps newExe in for exePath. The current executable is moved to
// exePath+".backup" first and moved back if the copy fails; the backup is deleted
// on success.
func ApplyExe(exePath, newExe string) error {
	backup := exePath + ".backup"
	if err := os.Remove(backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.CodeInstallFailed, "remove stale backup", err)
	}
	hadExe := fsutil.Exists(exePath)
	if hadExe {
		if err := os.Rename(exePath, backup); err != nil {
			return apperr.Wrap(apperr.CodeInstallFailed, "back up current executable", err)
		}
	}
	if err := fsutil.CopyFile(newExe, exePath); err != nil {
		_ = os.Remove(exePath)
		if hadExe {
			if errRestore := os.Rename(backup, exePath); errRestore != nil {
				log.WithError(errRestore).Errorf("could not restore %s from %s", exePath, backup)
			}
		}
		return apperr.Wrap(apperr.CodeInstallFailed, "install new executable", err)
	}
	if hadExe {
		if err := os.Remove(backup); err != nil {
			// Windows keeps a running executable locked; the next update clears it.
			log.WithError(err).Debugf("leaving %s", backup)
		}
	}
	return nil
}

// ApplyZip extracts an update zip and copies its contents over root. A single
// top-level directory in the zip is unwrapped. Preserved files and directories are
// skipped, other directories are replaced wholesale. It returns the top-level
// names that were applied.
func ApplyZip(root, zipPath string) ([]string, error) {
	work, err := os.MkdirTemp("", "relicpack-update-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	if _, err := archive.Extract(zipPath, work); err != nil {
		return nil, apperr.Wrap(apperr.CodeInstallFailed, "extract update", err)
	}
	src, err := contentRoot(work)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, e := range entries {
		name := e.Name()
		if preserved(name, e.IsDir()) {
			log.Debugf("preserving %s", name)
			continue
		}
		from, to := filepath.Join(src, name), filepath.Join(root, name)
		if e.IsDir() {
			_, err = fsutil.ReplaceTree(from, to)
		} else {
			err = fsutil.CopyFile(from, to)
		}
		if err != nil {
			return applied, apperr.Wrap(apperr.CodeInstallFailed, "apply "+name, err)
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

func preserved(name string, isDir bool) bool {
	list := PreservedFiles
	if isDir {
		list = PreservedDirs
	}
	for _, p := range list {
		if strings.EqualFold(name, p) {
			return true
		}
	}
	return false
}
