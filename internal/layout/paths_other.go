//go:build !windows

package layout

import (
	"os"
	"path/filepath"
)

const shortcutExt = ".desktop"

// SystemDirs resolves the XDG folders for scope.
func SystemDirs(scope Scope) (Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, err
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	dirs := Dirs{
		LocalAppData: dataHome,
		Desktop:      filepath.Join(home, "Desktop"),
	}
	if scope == PerUser {
		dirs.ProgramFiles = dataHome
		dirs.StartMenu = filepath.Join(dataHome, "applications")
		return dirs, nil
	}
	dirs.ProgramFiles = "/opt"
	dirs.StartMenu = "/usr/share/applications"
	return dirs, nil
}
