// Package errors defines the structured error type shared by every relicpack command.
// Each error carries a stable code for reports and the process exit code the CLI
// should terminate with.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Stable error codes surfaced in JSON reports.
const (
	CodeConfigInvalid    = "config_invalid"
	CodeToolMissing      = "tool_missing"
	CodeToolFailed       = "tool_failed"
	CodeCopyFailed       = "copy_failed"
	CodeNotElevated      = "not_elevated"
	CodeInstallFailed    = "install_failed"
	CodeUninstallFailed  = "uninstall_failed"
	CodeVerifyFailed     = "verify_failed"
	CodeNetworkFailed    = "network_failed"
	CodeSignatureInvalid = "signature_invalid"
	CodePublishFailed    = "publish_failed"
	CodeDataCorrupt      = "data_corrupt"
	CodeUsage            = "usage"
)

// Exit codes used when an error does not carry one of its own.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// AppError represents a structured application error.
type AppError struct {
	// ExitCode is the process exit status for this error.
	ExitCode int `json:"exit_code"`
	// Code is an internal error code string.
	Code string `json:"code"`
	// Message is the user-facing error message.
	Message string `json:"message"`
	// Details provides additional error context (optional).
	Details map[string]interface{} `json:"details,omitempty"`
	// Err is the underlying error (not marshaled to JSON).
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ToJSON returns the JSON byte representation of the error.
func (e *AppError) ToJSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// WithDetail attaches a key/value pair and returns the same error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(exitCode int, code, message string, err error) *AppError {
	return &AppError{
		ExitCode: exitCode,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

// Wrap creates an AppError with the default failure exit code.
// It returns nil when err is nil.
func Wrap(code, message string, err error) error {
	if err == nil {
		return nil
	}
	return New(ExitFailure, code, message, err)
}

// ExitCodeOf returns the exit code carried by the first AppError in the chain.
// A nil error maps to 0 and a plain error to ExitFailure.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.ExitCode != 0 {
		return appErr.ExitCode
	}
	return ExitFailure
}

// CodeOf returns the code of the first AppError in the chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}
