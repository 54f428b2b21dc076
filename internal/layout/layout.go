// Package layout describes where an installed copy of the application lives: the
// install root, the executable, the read-only icons tree, the writable DB data
// directory and the install record. It also resolves the platform folders used for
// per-machine and per-user installs and shortcuts.
package layout

import (
	"path/filepath"
	"strings"
)

// Fixed names inside the install root. The application looks for DB and icons
// next to its executable.
const (
	DataDirName    = "DB"
	IconsDirName   = "icons"
	RecordFileName = "relicpack-install.json"
)

// Scope selects a per-machine or per-user installation.
type Scope int

const (
	PerMachine Scope = iota
	PerUser
)

func (s Scope) String() string {
	if s == PerUser {
		return "user"
	}
	return "machine"
}

// Layout is the on-disk shape of one installation.
type Layout struct {
	Root       string
	ExePath    string
	IconsDir   string
	DataDir    string
	RecordPath string
}

// New derives the layout for exeName installed under root.
func New(root, exeName string) Layout {
	root = filepath.Clean(root)
	return Layout{
		Root:       root,
		ExePath:    filepath.Join(root, exeName),
		IconsDir:   filepath.Join(root, IconsDirName),
		DataDir:    filepath.Join(root, DataDirName),
		RecordPath: filepath.Join(root, RecordFileName),
	}
}

// Dirs are the platform folders an install touches outside its root.
type Dirs struct {
	// ProgramFiles is the parent of the install root ({autopf} in Inno Setup terms).
	ProgramFiles string
	// StartMenu is the Programs folder that receives the group entry.
	StartMenu string
	// Desktop receives the optional desktop entry.
	Desktop string
	// LocalAppData backs {localappdata}.
	LocalAppData string
}

var innoConstants = []string{"{autopf}", "{pf}", "{commonpf}", "{userpf}", "{pf64}", "{autopf64}"}

// ExpandDir turns a manifest default-dir such as `{autopf}\Warframe Relic Companion`
// into a concrete path using dirs.
func ExpandDir(dir string, dirs Dirs) string {
	out := dir
	for _, c := range innoConstants {
		out = replaceFold(out, c, dirs.ProgramFiles)
	}
	out = replaceFold(out, "{localappdata}", dirs.LocalAppData)
	if filepath.Separator == '/' {
		out = strings.ReplaceAll(out, `\`, "/")
	}
	return filepath.Clean(out)
}

// replaceFold replaces every ASCII-case-insensitive occurrence of old in s.
// Matching works on the original bytes so non-ASCII paths are left intact.
func replaceFold(s, old, repl string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && strings.EqualFold(s[i:i+len(old)], old) {
			b.WriteString(repl)
			i += len(old)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// ShortcutName is the file name used for a shortcut with the given display name.
func ShortcutName(display string) string {
	return display + shortcutExt
}
