package engine

import (
	"errors"
	"fmt"
)

// Error is an engine-detected failure.
//
// Engine errors never cross the boundary as panics; the api layer turns them
// into failure result arrays. Code selects the category, Diagnostics carries
// the extra lines reported after the message.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EngineID identifies the affected engine, if one exists.
	EngineID string

	// Diagnostics are additional human-readable lines.
	Diagnostics []string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInitFailed indicates the home directory is unusable.
	ErrCodeInitFailed ErrorCode = "INIT_FAILED"

	// ErrCodeConfigInvalid indicates a malformed or rejected configuration payload.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// ErrCodeCompileFailed indicates the configured expression does not compile.
	ErrCodeCompileFailed ErrorCode = "COMPILE_FAILED"

	// ErrCodeManifestFailed indicates a manifest that does not resolve or load.
	ErrCodeManifestFailed ErrorCode = "MANIFEST_FAILED"

	// ErrCodeNotConfigured indicates a match before any expression was configured.
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"

	// ErrCodeMatchFailed indicates a match that could not run.
	ErrCodeMatchFailed ErrorCode = "MATCH_FAILED"

	// ErrCodeFinalized indicates an operation on a closed engine.
	ErrCodeFinalized ErrorCode = "FINALIZED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.EngineID != "" {
		msg += fmt.Sprintf(" (engine=%s)", e.EngineID)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Lines renders the error as diagnostic lines: the message with its cause
// first, then Diagnostics.
func (e *Error) Lines() []string {
	head := e.Message
	if e.Err != nil {
		head += ": " + e.Err.Error()
	}
	return append([]string{head}, e.Diagnostics...)
}

func newError(code ErrorCode, id, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, EngineID: id, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFinalized reports whether err came from a closed engine.
// Uses errors.As to handle wrapped errors.
func IsFinalized(err error) bool {
	return CodeOf(err) == ErrCodeFinalized
}

// IsNotConfigured reports whether err is a match before configuration.
func IsNotConfigured(err error) bool {
	return CodeOf(err) == ErrCodeNotConfigured
}

// IsConfigError reports whether err rejected a configuration, either because
// the payload was invalid or because its expression did not compile.
func IsConfigError(err error) bool {
	c := CodeOf(err)
	return c == ErrCodeConfigInvalid || c == ErrCodeCompileFailed
}

// IsManifestError reports whether err is a manifest failure.
func IsManifestError(err error) bool {
	return CodeOf(err) == ErrCodeManifestFailed
}
