// Package taskorch offloads CPU-bound and I/O-bound work to separate
// worker pools and exposes prioritized parallel scheduling, batching,
// retry and cancellation on top of them (spec.md §4.F).
package taskorch

import (
	"context"
	"time"
)

// Kind routes a task to the pool that executes it.
type Kind string

const (
	// KindCPUIntensive runs on the CPU pool. Its timeout cancels only the
	// caller's wait; the worker goroutine is not interruptible and keeps
	// draining in the background.
	KindCPUIntensive Kind = "CPU_INTENSIVE"
	// KindIOBound runs on the IO pool; its timeout cancels both the wait
	// and the work via context.
	KindIOBound Kind = "IO_BOUND"
	// KindAsync is already-asynchronous work, scheduled directly on the
	// caller's goroutine pool without acquiring either semaphore.
	KindAsync Kind = "ASYNC"
	// KindGPU is CPU-pool work tagged so the resource monitor's
	// GPU-critical optimizer can selectively drain it.
	KindGPU Kind = "GPU"
)

// Callable is the unit of work an orchestrator executes.
type Callable func(ctx context.Context) (any, error)

// Task describes one unit of work submitted to the orchestrator.
type Task struct {
	ID         string
	Kind       Kind
	Priority   int // higher runs first in schedule()/batch()
	Fn         Callable
	Timeout    time.Duration // zero means no per-task timeout
	MaxRetries int
}

// Result is the positional outcome of one Task.
type Result struct {
	TaskID string
	Value  any
	Err    error
}
