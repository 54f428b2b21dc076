// Package toolexec runs the external build tools (the Python packager, pip and the
// Inno Setup compiler) one at a time, streaming their output to the console.
package toolexec

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Runner starts external processes.
type Runner interface {
	// Run executes name with args in dir and waits for it to exit.
	Run(ctx context.Context, dir, name string, args ...string) error
	// LookPath resolves name against PATH.
	LookPath(name string) (string, error)
}

// ExecRunner is the os/exec backed Runner. Nil writers default to the process stdio.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	c.Stdout = r.Stdout
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	c.Stderr = r.Stderr
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	log.WithField("dir", dir).Debugf("exec %s %s", name, strings.Join(args, " "))
	return c.Run()
}

// LookPath implements Runner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// ExitCode reports the exit status carried by err when the process ran and exited
// non-zero. ok is false when the process could not be started at all.
func ExitCode(err error) (code int, ok bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode(), true
	}
	return 0, false
}

// NotFound reports whether err means the executable does not exist.
func NotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}
