// Package prompt asks the user yes/no questions. The uninstaller uses it for the
// single "remove saved data?" decision, where every failure mode counts as No.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Prompter asks a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
}

// Fixed always answers with its own value.
type Fixed bool

// Confirm implements Prompter.
func (f Fixed) Confirm(context.Context, string, string) (bool, error) {
	return bool(f), nil
}

// Terminal prompts on a console. When In is a terminal it runs an interactive
// dialog; otherwise it reads a single y/N line. Nil fields default to stdin/stdout.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Prompter. End of input and dismissal answer No.
func (t Terminal) Confirm(ctx context.Context, title, message string) (bool, error) {
	in, out := t.In, t.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return runDialog(ctx, in, out, title, message)
	}
	return readLine(ctx, in, out, title, message)
}

func runDialog(ctx context.Context, in io.Reader, out io.Writer, title, message string) (bool, error) {
	p := tea.NewProgram(newConfirmModel(title, message),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("confirm dialog: %w", err)
	}
	m, ok := final.(confirmModel)
	if !ok {
		return false, nil
	}
	return m.answer, nil
}

func readLine(ctx context.Context, in io.Reader, out io.Writer, title, message string) (bool, error) {
	_, _ = fmt.Fprintf(out, "%s\n%s [y/N]: ", title, message)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(out)
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return false, r.err
		}
		if errors.Is(r.err, io.EOF) && r.line == "" {
			_, _ = fmt.Fprintln(out)
		}
		return parseAnswer(r.line), nil
	}
}

func parseAnswer(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
