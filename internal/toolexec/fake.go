package toolexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Call records one Fake.Run invocation.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Line renders the call as a shell-like command line.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Fake is a scripted Runner for tests. Handle decides the outcome of each call;
// a nil Handle makes every call succeed.
type Fake struct {
	mu     sync.Mutex
	Calls  []Call
	Handle func(c Call) error
	// Paths maps names to LookPath results; missing names are not found.
	Paths map[string]string
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, dir, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := Call{Dir: dir, Name: name, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	handle := f.Handle
	f.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle(c)
}

// LookPath implements Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Lines returns every recorded call as a command line.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.Line())
	}
	return out
}

// ExitError is returned by fakes to simulate a process exiting with Code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// ExitCode matches the method exposed by *exec.ExitError.
func (e *ExitError) ExitCode() int { return e.Code }
