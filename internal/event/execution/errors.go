package execution

import (
	"errors"
	"fmt"
)

// Sentinel errors for the execution package.
var (
	// ErrExecutorFailure matches every *ExecutorFailure.
	ErrExecutorFailure = errors.New("executor failure")

	// ErrHandlerPanic matches a *PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrEventTypeMismatch is the cause of a failure when an executor receives
	// an event that is not of its declared type.
	ErrEventTypeMismatch = errors.New("event type mismatch")

	// ErrContractViolation matches every *ViolationError.
	ErrContractViolation = errors.New("contract violation")

	// ErrUnknownPriority is returned by ParsePriority.
	ErrUnknownPriority = errors.New("unknown priority")
)

// ExecutorFailure wraps an error raised by an executor's action.
// It is always routed to the System's error sink and never aborts a call.
type ExecutorFailure struct {
	// Executor is the diagnostic name of the failing executor.
	Executor string

	// EventType is the name of the event being handled.
	EventType string

	// Cause is the error returned by the action, or a *PanicError.
	Cause error
}

// Error implements the error interface.
func (f *ExecutorFailure) Error() string {
	return fmt.Sprintf("an error occurred while executing %s on %s: %v", f.Executor, f.EventType, f.Cause)
}

// Unwrap returns the underlying cause.
func (f *ExecutorFailure) Unwrap() error {
	return f.Cause
}

// Is allows errors.Is to match ExecutorFailure with ErrExecutorFailure.
func (f *ExecutorFailure) Is(target error) bool {
	return target == ErrExecutorFailure
}

// PanicError wraps a panic value as an error.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// Rule names a programmer-error assertion.
type Rule string

// Assertion rules.
const (
	RuleDoubleAttach    Rule = "double-attach"
	RuleNotAttached     Rule = "not-attached"
	RuleAbstractType    Rule = "abstract-type"
	RuleSystemMismatch  Rule = "system-mismatch"
	RuleInvalidArgument Rule = "invalid-argument"
	RuleInvalidPriority Rule = "invalid-priority"
	RuleNegativeDelay   Rule = "negative-delay"
	RuleForeignExecutor Rule = "foreign-executor"
)

// ViolationError describes a broken contract. It is raised with panic: a
// violation is a bug in the caller, not a condition to recover from.
type ViolationError struct {
	Rule    Rule
	Message string
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	return "execution: " + string(e.Rule) + ": " + e.Message
}

// Unwrap returns ErrContractViolation.
func (e *ViolationError) Unwrap() error {
	return ErrContractViolation
}

// violate panics with a *ViolationError.
func violate(rule Rule, format string, args ...any) {
	panic(&ViolationError{Rule: rule, Message: fmt.Sprintf(format, args...)})
}
