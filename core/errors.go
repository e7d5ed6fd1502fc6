package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four failure classes surfaced by the runtime. Use
// errors.Is to classify an error returned from any registry or dispatcher.
var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrHandlerFailure        = errors.New("handler failure")
	ErrSetupFailure          = errors.New("setup failure")
)

// NotFoundError reports a missing entity, room, world, service or model handler.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateRegistrationError reports a plugin, service or adapter name collision.
type DuplicateRegistrationError struct {
	Kind string
	Key  string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("%s %q already registered", e.Kind, e.Key)
}

// Unwrap allows errors.Is(err, ErrDuplicateRegistration).
func (e *DuplicateRegistrationError) Unwrap() error { return ErrDuplicateRegistration }

// HandlerError wraps an error returned by an action, evaluator, model or
// service handler.
type HandlerError struct {
	Kind string
	Name string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s %q failed: %v", e.Kind, e.Name, e.Err)
}

// Unwrap exposes both the handler failure class and the original error.
func (e *HandlerError) Unwrap() []error { return []error{ErrHandlerFailure, e.Err} }

// SetupError wraps an error raised while bootstrapping the runtime.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed at %s: %v", e.Step, e.Err)
}

// Unwrap exposes both the setup failure class and the original error.
func (e *SetupError) Unwrap() []error { return []error{ErrSetupFailure, e.Err} }
