package installer

import (
	"os/exec"

	"github.com/relicrush/relicpack/internal/layout"
)

// Elevation reports whether the process may write per-machine locations.
type Elevation interface {
	IsElevated() (bool, error)
}

// Shortcut describes one Start Menu or desktop entry.
type Shortcut struct {
	Path        string
	Name        string
	Target      string
	Args        string
	WorkingDir  string
	Icon        string
	Description string
}

// ShortcutMaker creates and deletes shortcuts.
type ShortcutMaker interface {
	Create(s Shortcut) error
	Remove(path string) error
}

// UninstallEntry is the metadata shown in the system's installed-programs list.
type UninstallEntry struct {
	GUID            string
	Scope           layout.Scope
	DisplayName     string
	DisplayVersion  string
	Publisher       string
	URLInfoAbout    string
	InstallLocation string
	DisplayIcon     string
	UninstallString string
	QuietUninstall  string
	EstimatedSizeKB uint32
}

// Registrar writes and deletes uninstall metadata.
type Registrar interface {
	Register(e UninstallEntry) error
	Unregister(guid string, scope layout.Scope) error
}

// Launcher starts the installed application without waiting for it.
type Launcher interface {
	Launch(exe, dir string) error
}

// Permissions relaxes access on the data directory so every local user can modify it.
type Permissions interface {
	AllowUsersModify(dir string) error
}

// System bundles the platform integrations an Installer needs.
type System struct {
	Elevation   Elevation
	Shortcuts   ShortcutMaker
	Registrar   Registrar
	Launcher    Launcher
	Permissions Permissions
}

// DefaultSystem returns the integrations for the running platform.
func DefaultSystem() System {
	return System{
		Elevation:   platformElevation{},
		Shortcuts:   platformShortcuts{},
		Registrar:   platformRegistrar{},
		Launcher:    processLauncher{},
		Permissions: platformPermissions{},
	}
}

type processLauncher struct{}

func (processLauncher) Launch(exe, dir string) error {
	cmd := exec.Command(exe)
	cmd.Dir = dir
	setDetached(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
