package taskorch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffload_IOBoundRespectsResult(t *testing.T) {
	o := New()
	val, err := o.Offload(context.Background(), Task{
		ID:   "t1",
		Kind: KindIOBound,
		Fn: func(ctx context.Context) (any, error) {
			return 42, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestOffload_IOBoundTimeoutCancelsWork(t *testing.T) {
	o := New()
	_, err := o.Offload(context.Background(), Task{
		ID:      "t2",
		Kind:    KindIOBound,
		Timeout: 10 * time.Millisecond,
		Fn: func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	require.Error(t, err)
}

func TestOffload_CPUTimeoutCancelsWaitNotWork(t *testing.T) {
	o := New()
	started := make(chan struct{})
	finished := make(chan struct{})
	_, err := o.Offload(context.Background(), Task{
		ID:      "t3",
		Kind:    KindCPUIntensive,
		Timeout: 5 * time.Millisecond,
		Fn: func(ctx context.Context) (any, error) {
			close(started)
			time.Sleep(30 * time.Millisecond)
			close(finished)
			return "done", nil
		},
	})
	require.Error(t, err)
	<-started
	require.NoError(t, o.Shutdown(context.Background(), true))
	select {
	case <-finished:
	default:
		t.Fatal("expected the detached CPU worker to have finished by the time Shutdown(wait=true) returned")
	}
}

func TestOffload_RetriesUpToMaxRetries(t *testing.T) {
	o := New()
	var attempts int64
	_, err := o.Offload(context.Background(), Task{
		ID:         "t4",
		Kind:       KindIOBound,
		MaxRetries: 2,
		Fn: func(ctx context.Context) (any, error) {
			atomic.AddInt64(&attempts, 1)
			return nil, errors.New("boom")
		},
	})
	require.Error(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&attempts))
}

func TestOffload_SucceedsOnLaterRetry(t *testing.T) {
	o := New()
	var attempts int64
	val, err := o.Offload(context.Background(), Task{
		ID:         "t5",
		Kind:       KindIOBound,
		MaxRetries: 3,
		Fn: func(ctx context.Context) (any, error) {
			n := atomic.AddInt64(&attempts, 1)
			if n < 2 {
				return nil, errors.New("not yet")
			}
			return "ok", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}

func TestSchedule_PreservesInputOrderRegardlessOfCompletionOrder(t *testing.T) {
	o := New()
	tasks := []Task{
		{ID: "slow", Kind: KindIOBound, Priority: 1, Fn: func(ctx context.Context) (any, error) {
			time.Sleep(20 * time.Millisecond)
			return "slow", nil
		}},
		{ID: "fast", Kind: KindIOBound, Priority: 5, Fn: func(ctx context.Context) (any, error) {
			return "fast", nil
		}},
	}
	results := o.Schedule(context.Background(), tasks)
	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].TaskID)
	assert.Equal(t, "fast", results[1].TaskID)
	assert.Equal(t, "slow", results[0].Value)
	assert.Equal(t, "fast", results[1].Value)
}

func TestBatch_RunsAllTasksAndPreservesOrder(t *testing.T) {
	o := New()
	tasks := make([]Task, 5)
	for i := range tasks {
		i := i
		tasks[i] = Task{ID: string(rune('a' + i)), Kind: KindIOBound, Fn: func(ctx context.Context) (any, error) {
			return i, nil
		}}
	}
	results := o.Batch(context.Background(), tasks, 2)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.Value)
	}
}

func TestOffload_FailsFastAfterShutdown(t *testing.T) {
	o := New()
	require.NoError(t, o.Shutdown(context.Background(), false))
	_, err := o.Offload(context.Background(), Task{
		ID:   "t6",
		Kind: KindAsync,
		Fn: func(ctx context.Context) (any, error) {
			return nil, nil
		},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "submission after shutdown")
}
