package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua state and plugin operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a script exceeds its budget.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNotLoaded is returned by operations that need a loaded plugin.
	ErrNotLoaded = errors.New("plugin not loaded")

	// ErrAlreadyLoaded is returned by Load on a loaded plugin.
	ErrAlreadyLoaded = errors.New("plugin already loaded")
)

// ScriptError reports a failure while loading a script.
type ScriptError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
