package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegisrt/internal/catalog"
)

func enabledConfig(name string, class catalog.Classification) catalog.ServiceConfig {
	return catalog.ServiceConfig{
		Name:                    name,
		Classification:          class,
		Enabled:                 true,
		GracefulShutdownSeconds: 1,
		MaxRestartAttempts:      2,
	}
}

func TestGet_LoadsOnceAndCaches(t *testing.T) {
	r := New()
	var calls int32
	require.NoError(t, r.Register(enabledConfig("svc", catalog.Optional), func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "instance", nil
	}))

	inst1, err := r.Get(context.Background(), "svc")
	require.NoError(t, err)
	inst2, err := r.Get(context.Background(), "svc")
	require.NoError(t, err)

	assert.Equal(t, inst1, inst2)
	assert.EqualValues(t, 1, calls)
}

func TestGet_SingleFlightCollapsesConcurrentCold(t *testing.T) {
	r := New()
	var calls int32
	release := make(chan struct{})
	require.NoError(t, r.Register(enabledConfig("svc", catalog.Optional), func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "instance", nil
	}))

	var wg sync.WaitGroup
	const n = 10
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = r.Get(context.Background(), "svc")
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls)
}

func TestGet_DisabledServiceFails(t *testing.T) {
	r := New()
	cfg := enabledConfig("svc", catalog.Optional)
	cfg.Enabled = false
	require.NoError(t, r.Register(cfg, func(ctx context.Context) (any, error) {
		return "instance", nil
	}))

	_, err := r.Get(context.Background(), "svc")
	require.Error(t, err)
}

func TestGet_FactoryFailureMarksFailedAndRetries(t *testing.T) {
	r := New()
	var calls int32
	require.NoError(t, r.Register(enabledConfig("svc", catalog.Optional), func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, errors.New("boom")
		}
		return "instance", nil
	}))

	_, err := r.Get(context.Background(), "svc")
	require.Error(t, err)

	snap, ok := r.Snapshot("svc")
	require.True(t, ok)
	assert.Equal(t, Failed, snap.State)
	assert.Equal(t, 1, snap.FailedAttempts)
}

func TestGet_ExceedsMaxRestartAttemptsIsPermanent(t *testing.T) {
	r := New()
	cfg := enabledConfig("svc", catalog.Optional)
	cfg.MaxRestartAttempts = 1
	require.NoError(t, r.Register(cfg, func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}))

	_, err := r.Get(context.Background(), "svc")
	require.Error(t, err)

	time.Sleep(backoffBase + 10*time.Millisecond)
	_, err = r.Get(context.Background(), "svc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded max_restart_attempts")
}

func TestSuspend_ForbiddenForEssential(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(enabledConfig("svc", catalog.Essential), func(ctx context.Context) (any, error) {
		return "instance", nil
	}))
	_, err := r.Get(context.Background(), "svc")
	require.NoError(t, err)

	err = r.Suspend(context.Background(), "svc")
	require.Error(t, err)
}

func TestSuspend_DropsInstanceAndIncrementsCount(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(enabledConfig("svc", catalog.Optional), func(ctx context.Context) (any, error) {
		return "instance", nil
	}))
	_, err := r.Get(context.Background(), "svc")
	require.NoError(t, err)

	require.NoError(t, r.Suspend(context.Background(), "svc"))

	snap, ok := r.Snapshot("svc")
	require.True(t, ok)
	assert.Equal(t, Suspended, snap.State)
	assert.False(t, snap.HasInstance)
	assert.Equal(t, 1, snap.SuspensionCount)
}

func TestShutdown_ForcedOnHookTimeout(t *testing.T) {
	r := New()
	cfg := enabledConfig("svc", catalog.Optional)
	cfg.GracefulShutdownSeconds = 0 // forces the 10s default path... use a short context instead
	require.NoError(t, r.Register(cfg, func(ctx context.Context) (any, error) {
		return &slowShutdown{}, nil
	}))
	_, err := r.Get(context.Background(), "svc")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = r.Shutdown(ctx, "svc")
	// Either the registry's own budget or the passed-in context can bound
	// this; either way the hook must not hang the caller.
	_ = err

	snap, ok := r.Snapshot("svc")
	require.True(t, ok)
	assert.Equal(t, Shutdown, snap.State)
}

type slowShutdown struct{}

func (s *slowShutdown) Shutdown(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestIter_ReturnsSortedSnapshots(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(enabledConfig("b", catalog.Optional), func(ctx context.Context) (any, error) { return "x", nil }))
	require.NoError(t, r.Register(enabledConfig("a", catalog.Optional), func(ctx context.Context) (any, error) { return "x", nil }))

	snaps := r.Iter()
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].Name)
	assert.Equal(t, "b", snaps[1].Name)
}
