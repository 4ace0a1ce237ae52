package apicore

import (
	"errors"
	"fmt"
)

// ConfigurationError covers unknown services, duplicate names, invalid
// enum values, unresolved dependencies and dependency cycles. It is
// always fatal at startup (spec.md §7).
type ConfigurationError struct {
	Reason  string
	Service string
}

func (e *ConfigurationError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("configuration error for service %q: %s", e.Service, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func NewConfigurationError(service, reason string) *ConfigurationError {
	return &ConfigurationError{Service: service, Reason: reason}
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ServiceDisabledError is returned when a service is requested that the
// active deployment profile does not enable.
type ServiceDisabledError struct {
	Service string
}

func (e *ServiceDisabledError) Error() string {
	return fmt.Sprintf("service %q is disabled by the active deployment profile", e.Service)
}

func NewServiceDisabledError(service string) *ServiceDisabledError {
	return &ServiceDisabledError{Service: service}
}

func IsServiceDisabled(err error) bool {
	var sde *ServiceDisabledError
	return errors.As(err, &sde)
}

// LoadError wraps a factory failure. It is retriable up to
// max_restart_attempts; for an ESSENTIAL service on initial startup it
// is fatal (spec.md §7).
type LoadError struct {
	Service string
	Attempt int
	Cause   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load service %q (attempt %d): %v", e.Service, e.Attempt, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

func NewLoadError(service string, attempt int, cause error) *LoadError {
	return &LoadError{Service: service, Attempt: attempt, Cause: cause}
}

func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// ShutdownTimeoutError records that a graceful shutdown exceeded its
// budget. It is non-fatal: the caller is informed and a forced shutdown
// is recorded by the caller.
type ShutdownTimeoutError struct {
	Service string
	Budget  string
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("graceful shutdown of %q exceeded its %s timeout", e.Service, e.Budget)
}

func NewShutdownTimeoutError(service, budget string) *ShutdownTimeoutError {
	return &ShutdownTimeoutError{Service: service, Budget: budget}
}

func IsShutdownTimeout(err error) bool {
	var ste *ShutdownTimeoutError
	return errors.As(err, &ste)
}

// ErrOrchestratorClosed is returned by the task orchestrator for any
// submission made after shutdown.
var ErrOrchestratorClosed = errors.New("task orchestrator: submission after shutdown")

// ErrServiceNotFound is returned by the registry and lifecycle manager
// for unknown service names.
var ErrServiceNotFound = errors.New("service not found")

// ErrCycleDetected is returned by the dependency graph analyzer when the
// declared dependencies contain a cycle.
var ErrCycleDetected = errors.New("dependency cycle detected")
