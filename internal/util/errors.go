package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnresolved    = errors.New("route unresolved")
	ErrForwardFailed = errors.New("forward failed")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// UnresolvedError describes why a request could not be routed.
// It always matches ErrUnresolved.
type UnresolvedError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved %s: %s", e.Path, e.Reason)
}

// Is checks if the error matches the target.
func (e *UnresolvedError) Is(target error) bool {
	if target == ErrUnresolved {
		return true
	}
	_, ok := target.(*UnresolvedError)
	return ok
}

// NewUnresolvedError creates a new UnresolvedError.
func NewUnresolvedError(path, reason string) *UnresolvedError {
	return &UnresolvedError{Path: path, Reason: reason}
}

// ForwardError represents a network-level failure while forwarding a
// request to a destination.
type ForwardError struct {
	Destination string
	Target      string
	Cause       error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("forward to %s (%s) failed: %v", e.Destination, e.Target, e.Cause)
	}
	return fmt.Sprintf("forward to %s (%s) failed", e.Destination, e.Target)
}

// Unwrap returns the underlying error.
func (e *ForwardError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ForwardError) Is(target error) bool {
	if target == ErrForwardFailed {
		return true
	}
	_, ok := target.(*ForwardError)
	return ok || errors.Is(e.Cause, target)
}

// NewForwardError creates a new ForwardError.
func NewForwardError(destination, target string, cause error) *ForwardError {
	return &ForwardError{Destination: destination, Target: target, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
