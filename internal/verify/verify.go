// Package verify checks an installed copy against the layout the installer
// promises: executable, a complete icons tree, a writable DB directory, the
// install record, and a desktop entry only when one was requested.
package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/fsutil"
	"github.com/relicrush/relicpack/internal/installer"
	"github.com/relicrush/relicpack/internal/layout"
)

// Finding is the outcome of one check.
type Finding struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Options supplies what the checks compare against.
type Options struct {
	// SourceIcons is the icons tree that was installed; empty skips the comparison.
	SourceIcons string
	// DesktopShortcut is where the desktop entry would be; empty skips the check.
	DesktopShortcut string
}

// Check runs every check against lay.
func Check(lay layout.Layout, opts Options) []Finding {
	findings := []Finding{
		checkExe(lay),
		checkIcons(lay, opts.SourceIcons),
		checkDataDir(lay),
	}
	rec, recFinding := checkRecord(lay)
	findings = append(findings, recFinding)
	if opts.DesktopShortcut != "" {
		findings = append(findings, checkDesktop(rec, opts.DesktopShortcut))
	}
	return findings
}

// Failed returns a verify_failed error when any finding is not OK.
func Failed(findings []Finding) error {
	var bad []string
	for _, f := range findings {
		if !f.OK {
			bad = append(bad, f.Name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return apperr.New(apperr.ExitFailure, apperr.CodeVerifyFailed,
		fmt.Sprintf("%d checks failed: %s", len(bad), strings.Join(bad, ", ")), nil)
}

func checkExe(lay layout.Layout) Finding {
	f := Finding{Name: "executable"}
	info, err := os.Stat(lay.ExePath)
	switch {
	case err != nil:
		f.Detail = err.Error()
	case info.IsDir():
		f.Detail = lay.ExePath + " is a directory"
	default:
		f.OK = true
		f.Detail = lay.ExePath
	}
	return f
}

func checkIcons(lay layout.Layout, source string) Finding {
	f := Finding{Name: "icons"}
	if !fsutil.IsDir(lay.IconsDir) {
		f.Detail = lay.IconsDir + " missing"
		return f
	}
	installed, err := fsutil.ListFiles(lay.IconsDir)
	if err != nil {
		f.Detail = err.Error()
		return f
	}
	if source == "" {
		f.OK = true
		f.Detail = fmt.Sprintf("%d files", len(installed))
		return f
	}
	want, err := fsutil.ListFiles(source)
	if err != nil {
		f.Detail = "source: " + err.Error()
		return f
	}
	have := make(map[string]bool, len(installed))
	for _, p := range installed {
		have[p] = true
	}
	var missing []string
	for _, p := range want {
		if !have[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		f.Detail = fmt.Sprintf("%d of %d source files missing (first: %s)", len(missing), len(want), missing[0])
		return f
	}
	f.OK = true
	f.Detail = fmt.Sprintf("%d files", len(installed))
	return f
}

func checkDataDir(lay layout.Layout) Finding {
	f := Finding{Name: "data directory"}
	if !fsutil.IsDir(lay.DataDir) {
		f.Detail = lay.DataDir + " missing"
		return f
	}
	probe, err := os.CreateTemp(lay.DataDir, ".relicpack-probe-*")
	if err != nil {
		f.Detail = "not writable: " + err.Error()
		return f
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		f.Detail = "probe not removable: " + err.Error()
		return f
	}
	f.OK = true
	f.Detail = "writable"
	return f
}

func checkRecord(lay layout.Layout) (*installer.Record, Finding) {
	f := Finding{Name: "install record"}
	rec, err := installer.LoadRecord(lay.RecordPath)
	switch {
	case err != nil:
		f.Detail = err.Error()
	case rec == nil:
		f.Detail = lay.RecordPath + " missing"
	default:
		f.OK = true
		f.Detail = fmt.Sprintf("%s %s, %d files", rec.AppName, rec.Version, len(rec.Files))
	}
	return rec, f
}

func checkDesktop(rec *installer.Record, path string) Finding {
	f := Finding{Name: "desktop shortcut"}
	optedIn := rec != nil && rec.DesktopShortcut
	exists := fsutil.Exists(path)
	switch {
	case optedIn && exists:
		f.OK, f.Detail = true, "present (opted in)"
	case optedIn:
		f.Detail = "opted in but missing: " + path
	case exists:
		f.Detail = "present without opt-in: " + path
	default:
		f.OK, f.Detail = true, "absent (not opted in)"
	}
	return f
}

// RenderText writes findings as a styled list. Styling follows w's color profile,
// so non-terminal output stays plain.
func RenderText(w io.Writer, title string, findings []Finding) error {
	r := lipgloss.NewRenderer(w)
	titleStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle := r.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle := r.NewStyle().Foreground(lipgloss.Color("196"))
	nameStyle := r.NewStyle().Width(18)
	detailStyle := r.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	for _, f := range findings {
		mark := okStyle.Render("ok  ")
		if !f.OK {
			mark = failStyle.Render("FAIL")
		}
		fmt.Fprintf(&b, "  %s %s %s\n", mark, nameStyle.Render(f.Name), detailStyle.Render(f.Detail))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes findings as an indented JSON array.
func RenderJSON(w io.Writer, findings []Finding) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(findings)
}

// DesktopShortcutPath is where the installer puts the desktop entry for appName.
func DesktopShortcutPath(desktopDir, appName string) string {
	if desktopDir == "" {
		return ""
	}
	return filepath.Join(desktopDir, layout.ShortcutName(appName))
}
