//go:build windows

package prompt

import (
	"context"

	"golang.org/x/sys/windows"
)

const (
	mbYesNo         = 0x00000004
	mbIconQuestion  = 0x00000020
	mbSetForeground = 0x00010000
	idYes           = 6
)

// MessageBox shows a native Yes/No dialog.
type MessageBox struct{}

// Confirm implements Prompter. Closing the dialog answers No.
func (MessageBox) Confirm(_ context.Context, title, message string) (bool, error) {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return false, err
	}
	m, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return false, err
	}
	ret, err := windows.MessageBox(0, m, t, mbYesNo|mbIconQuestion|mbSetForeground)
	if ret == 0 {
		return false, err
	}
	return ret == idYes, nil
}

// GUIAvailable reports whether native dialogs can be shown.
func GUIAvailable() bool { return true }
