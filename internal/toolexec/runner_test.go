package toolexec

import (
	"context"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	code, ok := ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: 3}))
	assert.True(t, ok)
	assert.Equal(t, 3, code)

	_, ok = ExitCode(&exec.Error{Name: "pyinstaller", Err: exec.ErrNotFound})
	assert.False(t, ok)
}

func TestNotFound(t *testing.T) {
	assert.True(t, NotFound(&exec.Error{Name: "pyinstaller", Err: exec.ErrNotFound}))
	assert.False(t, NotFound(&ExitError{Code: 1}))
}

func TestFake_RecordsCalls(t *testing.T) {
	f := &Fake{Handle: func(c Call) error {
		if c.Name == "bad" {
			return &ExitError{Code: 2}
		}
		return nil
	}}
	require.NoError(t, f.Run(context.Background(), "/src", "good", "--version"))
	err := f.Run(context.Background(), "/src", "bad")
	code, ok := ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 2, code)
	assert.Equal(t, []string{"good --version", "bad"}, f.Lines())

	_, err = f.LookPath("ISCC")
	assert.True(t, NotFound(err))
}

func TestFake_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Fake{}
	assert.ErrorIs(t, f.Run(ctx, "", "pyinstaller"), context.Canceled)
	assert.Empty(t, f.Calls)
}
