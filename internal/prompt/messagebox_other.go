//go:build !windows

package prompt

import "context"

// MessageBox falls back to the terminal where no native dialog exists.
type MessageBox struct{}

// Confirm implements Prompter.
func (MessageBox) Confirm(ctx context.Context, title, message string) (bool, error) {
	return Terminal{}.Confirm(ctx, title, message)
}

// GUIAvailable reports whether native dialogs can be shown.
func GUIAvailable() bool { return false }
