package taskorch

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"aegisrt/internal/apicore"
	"aegisrt/pkg/logging"
)

const taskorchSubsystem = "TaskOrch"

// batchYield is the pause interposed between batches in Batch to relieve
// scheduling pressure (spec.md §4.F).
const batchYield = 10 * time.Millisecond

// Orchestrator owns the CPU and IO worker pools and routes Tasks to
// them by Kind (spec.md §4.F).
type Orchestrator struct {
	cpuSem *semaphore.Weighted
	ioSem  *semaphore.Weighted

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New sizes the CPU pool at #cores-1 (minimum 1) and the IO pool at
// min(32, #cores+4), matching spec.md §4.F.
func New() *Orchestrator {
	cores := runtime.NumCPU()
	cpuCap := int64(cores - 1)
	if cpuCap < 1 {
		cpuCap = 1
	}
	ioCap := int64(cores + 4)
	if ioCap > 32 {
		ioCap = 32
	}
	return &Orchestrator{
		cpuSem: semaphore.NewWeighted(cpuCap),
		ioSem:  semaphore.NewWeighted(ioCap),
	}
}

// Offload routes task to its pool, enforces its timeout and retries up
// to task.MaxRetries times with a 2^attempt second backoff (spec.md
// §4.F). A KindCPUIntensive timeout cancels only the wait; the worker
// keeps running detached. KindIOBound and KindAsync timeouts cancel the
// work itself via context.
func (o *Orchestrator) Offload(ctx context.Context, task Task) (any, error) {
	if o.closed.Load() {
		return nil, apicore.ErrOrchestratorClosed
	}

	var lastErr error
	attempts := task.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			logging.Warn(taskorchSubsystem, "task %s attempt %d failed, retrying in %s: %v", task.ID, attempt, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		val, err := o.runOnce(ctx, task, attempt)
		if err == nil {
			return val, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("task %s: all %d attempts failed: %w", task.ID, attempts, lastErr)
}

func (o *Orchestrator) runOnce(ctx context.Context, task Task, attempt int) (val any, err error) {
	spanCtx, m := startMeasurement(ctx, "taskorch.offload", task.Kind, task.ID)
	defer func() { m.end(attempt, err) }()

	switch task.Kind {
	case KindCPUIntensive, KindGPU:
		return o.runOnSemaphore(spanCtx, o.cpuSem, task, cancelWaitOnly)
	case KindIOBound:
		return o.runOnSemaphore(spanCtx, o.ioSem, task, cancelBoth)
	default: // KindAsync
		return o.runWithTimeout(spanCtx, task, cancelBoth)
	}
}

type cancelMode int

const (
	cancelWaitOnly cancelMode = iota
	cancelBoth
)

// runOnSemaphore acquires sem (bounding pool concurrency) then executes
// the task per mode.
func (o *Orchestrator) runOnSemaphore(ctx context.Context, sem *semaphore.Weighted, task Task, mode cancelMode) (any, error) {
	acquireCtx := ctx
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}
	if err := sem.Acquire(acquireCtx, 1); err != nil {
		return nil, fmt.Errorf("task %s: acquiring pool slot: %w", task.ID, err)
	}
	defer sem.Release(1)

	return o.runWithTimeout(ctx, task, mode)
}

// runWithTimeout runs task.Fn honoring task.Timeout. For cancelWaitOnly,
// the function runs on a detached background context: a timeout stops
// the caller from waiting but the goroutine keeps running to completion
// and its result is discarded when it eventually finishes.
func (o *Orchestrator) runWithTimeout(ctx context.Context, task Task, mode cancelMode) (any, error) {
	if mode == cancelBoth {
		runCtx := ctx
		var cancel context.CancelFunc
		if task.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, task.Timeout)
			defer cancel()
		}
		return task.Fn(runCtx)
	}

	// cancelWaitOnly: detach the work from the caller's timeout.
	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		val, err := task.Fn(context.Background())
		done <- outcome{val: val, err: err}
	}()

	waitCtx := ctx
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	select {
	case out := <-done:
		return out.val, out.err
	case <-waitCtx.Done():
		return nil, fmt.Errorf("task %s: %w", task.ID, waitCtx.Err())
	}
}

// Schedule sorts tasks by Priority descending (stable), launches all of
// them concurrently and returns results in the original input order
// regardless of completion order (spec.md §4.F).
func (o *Orchestrator) Schedule(ctx context.Context, tasks []Task) []Result {
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tasks[order[a]].Priority > tasks[order[b]].Priority
	})

	results := make([]Result, len(tasks))
	var wg sync.WaitGroup
	for _, idx := range order {
		idx := idx
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := o.Offload(ctx, tasks[idx])
			results[idx] = Result{TaskID: tasks[idx].ID, Value: val, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// Batch partitions tasks into groups of batchSize, running each group
// via Schedule and pausing batchYield between groups. Overall result
// order mirrors the input (spec.md §4.F).
func (o *Orchestrator) Batch(ctx context.Context, tasks []Task, batchSize int) []Result {
	if batchSize <= 0 {
		batchSize = len(tasks)
	}
	results := make([]Result, 0, len(tasks))
	for start := 0; start < len(tasks); start += batchSize {
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		results = append(results, o.Schedule(ctx, tasks[start:end])...)

		if end < len(tasks) {
			select {
			case <-time.After(batchYield):
			case <-ctx.Done():
				return results
			}
		}
	}
	return results
}

// Shutdown stops accepting new submissions. If wait is true it blocks
// until every in-flight cancelWaitOnly goroutine drains; otherwise it
// returns immediately, leaving them to finish in the background.
func (o *Orchestrator) Shutdown(ctx context.Context, wait bool) error {
	o.closed.Store(true)
	if !wait {
		return nil
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
