package innosetup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/toolexec"
	log "github.com/sirupsen/logrus"
)

// Finder locates ISCC.exe. The zero value is not usable; see NewFinder.
type Finder struct {
	LookPath func(string) (string, error)
	Getenv   func(string) string
	// InstallLocations lists Inno Setup install directories known to the system.
	InstallLocations func() []string
}

// NewFinder returns a Finder backed by PATH, the environment and, on Windows, the registry.
func NewFinder(runner toolexec.Runner) *Finder {
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Finder{
		LookPath:         runner.LookPath,
		Getenv:           os.Getenv,
		InstallLocations: registryInstallLocations,
	}
}

// Find returns the compiler path. override, when set, must point at an existing file.
// Otherwise PATH is searched, then the standard install folders, then the
// InstallLocation of Inno Setup uninstall entries.
func (f *Finder) Find(override string) (string, error) {
	if o := strings.TrimSpace(override); o != "" {
		if _, err := os.Stat(o); err != nil {
			return "", apperr.New(apperr.ExitFailure, apperr.CodeToolMissing, "configured ISCC not found", err).
				WithDetail("path", o)
		}
		return o, nil
	}
	for _, name := range []string{"ISCC.exe", "ISCC", "iscc"} {
		if p, err := f.LookPath(name); err == nil && strings.TrimSpace(p) != "" {
			return p, nil
		}
	}
	var candidates []string
	for _, env := range []string{"ProgramFiles(x86)", "ProgramFiles"} {
		if base := f.Getenv(env); base != "" {
			candidates = append(candidates, filepath.Join(base, "Inno Setup 6", "ISCC.exe"))
		}
	}
	if local := f.Getenv("LOCALAPPDATA"); local != "" {
		candidates = append(candidates, filepath.Join(local, "Programs", "Inno Setup 6", "ISCC.exe"))
	}
	if f.InstallLocations != nil {
		for _, loc := range f.InstallLocations() {
			candidates = append(candidates, filepath.Join(strings.TrimRight(loc, `\/`), "ISCC.exe"))
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", apperr.New(apperr.ExitFailure, apperr.CodeToolMissing,
		"Inno Setup compiler (ISCC.exe) not found; install Inno Setup 6 or set installer.iscc", nil)
}

// Compile runs ISCC on script from the script's directory. defines become /DName=Value
// arguments in name order.
func Compile(ctx context.Context, runner toolexec.Runner, iscc, script string, defines map[string]string) error {
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	if _, err := os.Stat(script); err != nil {
		return apperr.New(apperr.ExitFailure, apperr.CodeConfigInvalid, "setup script not found", err).
			WithDetail("script", script)
	}
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Strings(names)

	args := []string{"/Q"}
	for _, name := range names {
		args = append(args, fmt.Sprintf("/D%s=%s", name, defines[name]))
	}
	args = append(args, script)

	log.Infof("compiling %s", filepath.Base(script))
	err := runner.Run(ctx, filepath.Dir(script), iscc, args...)
	if err == nil {
		return nil
	}
	if code, ok := toolexec.ExitCode(err); ok {
		return apperr.New(code, apperr.CodeToolFailed, fmt.Sprintf("ISCC exited with status %d", code), err)
	}
	return apperr.New(apperr.ExitFailure, apperr.CodeToolFailed, "run ISCC", err)
}
