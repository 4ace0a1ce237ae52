// Package registry is the single authority for per-service lifecycle
// state, owning the NOT_LOADED/LOADING/ACTIVE/IDLE/SUSPENDED/SHUTDOWN/
// FAILED state machine and the live instance for every registered
// service (spec.md §4.C).
package registry

import (
	"context"
	"time"
)

// State is one node in the per-service lifecycle state machine.
type State string

const (
	NotLoaded State = "NOT_LOADED"
	Loading   State = "LOADING"
	Active    State = "ACTIVE"
	Idle      State = "IDLE"
	Suspended State = "SUSPENDED"
	Shutdown  State = "SHUTDOWN"
	Failed    State = "FAILED"
)

// Factory constructs a new instance of a service. It is invoked at most
// once per concurrent wave of Get callers via single-flight.
type Factory func(ctx context.Context) (any, error)

// ShutdownHook is implemented by instances that need to release
// resources before being dropped. It is optional: instances that don't
// implement it are simply discarded.
type ShutdownHook interface {
	Shutdown(ctx context.Context) error
}

// Snapshot is a point-in-time, race-free copy of one entry's state for
// monitoring and CLI display (spec.md §4.C `iter()`).
type Snapshot struct {
	Name            string
	State           State
	HasInstance     bool
	LastAccessed    time.Time
	IdleSince       time.Time
	SuspensionCount int
	FailedAttempts  int
	LastError       error
	ForcedShutdowns int
}
