//go:build windows

package layout

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

const shortcutExt = ".lnk"

// SystemDirs resolves the known folders for scope.
func SystemDirs(scope Scope) (Dirs, error) {
	var (
		dirs Dirs
		err  error
	)
	dirs.LocalAppData, err = windows.KnownFolderPath(windows.FOLDERID_LocalAppData, 0)
	if err != nil {
		dirs.LocalAppData = os.Getenv("LOCALAPPDATA")
	}
	if scope == PerUser {
		dirs.ProgramFiles = filepath.Join(dirs.LocalAppData, "Programs")
		dirs.StartMenu = knownFolder(windows.FOLDERID_Programs, filepath.Join(os.Getenv("APPDATA"), "Microsoft", "Windows", "Start Menu", "Programs"))
		dirs.Desktop = knownFolder(windows.FOLDERID_Desktop, filepath.Join(os.Getenv("USERPROFILE"), "Desktop"))
		return dirs, nil
	}
	dirs.ProgramFiles = knownFolder(windows.FOLDERID_ProgramFiles, os.Getenv("ProgramFiles"))
	dirs.StartMenu = knownFolder(windows.FOLDERID_CommonPrograms, filepath.Join(os.Getenv("ProgramData"), "Microsoft", "Windows", "Start Menu", "Programs"))
	dirs.Desktop = knownFolder(windows.FOLDERID_PublicDesktop, filepath.Join(os.Getenv("PUBLIC"), "Desktop"))
	return dirs, nil
}

func knownFolder(id *windows.KNOWNFOLDERID, fallback string) string {
	path, err := windows.KnownFolderPath(id, 0)
	if err != nil || path == "" {
		return fallback
	}
	return path
}
