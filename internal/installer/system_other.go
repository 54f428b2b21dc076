//go:build !windows

package installer

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/relicrush/relicpack/internal/layout"
)

const uninstallerName = "relicpack-uninstall"

type platformElevation struct{}

func (platformElevation) IsElevated() (bool, error) {
	return os.Geteuid() == 0, nil
}

// platformShortcuts writes freedesktop .desktop entries.
type platformShortcuts struct{}

func (platformShortcuts) Create(s Shortcut) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	exec := quoteExec(s.Target)
	if s.Args != "" {
		exec += " " + s.Args
	}
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", s.Name)
	if s.Description != "" {
		fmt.Fprintf(&b, "Comment=%s\n", s.Description)
	}
	fmt.Fprintf(&b, "Exec=%s\n", exec)
	if s.WorkingDir != "" {
		fmt.Fprintf(&b, "Path=%s\n", s.WorkingDir)
	}
	if s.Icon != "" {
		fmt.Fprintf(&b, "Icon=%s\n", s.Icon)
	}
	b.WriteString("Terminal=false\n")
	return os.WriteFile(s.Path, []byte(b.String()), 0o755)
}

func (platformShortcuts) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func quoteExec(p string) string {
	if strings.ContainsAny(p, " \t\"") {
		return `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
	}
	return p
}

// platformRegistrar has no system uninstall list to update; the install record is
// the only uninstall metadata.
type platformRegistrar struct{}

func (platformRegistrar) Register(UninstallEntry) error         { return nil }
func (platformRegistrar) Unregister(string, layout.Scope) error { return nil }

type platformPermissions struct{}

func (platformPermissions) AllowUsersModify(dir string) error {
	return os.Chmod(dir, 0o777)
}

func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// removeFile deletes path. pending is always false: open files can be unlinked here.
func removeFile(path string) (pending bool, err error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	return false, nil
}
