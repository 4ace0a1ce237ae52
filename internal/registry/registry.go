package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"aegisrt/internal/apicore"
	"aegisrt/internal/catalog"
	"aegisrt/pkg/logging"
)

const registrySubsystem = "Registry"

const (
	defaultMaxRestartAttempts = 3
	backoffBase               = 500 * time.Millisecond
	backoffCap                = 30 * time.Second
)

// entry is one registered service. Every field is guarded by mu, giving
// each service its own logical critical section so operations on
// distinct services never contend (spec.md §4.C).
type entry struct {
	mu sync.Mutex

	name    string
	config  catalog.ServiceConfig
	factory Factory

	state           State
	instance        any
	lastAccessed    time.Time
	idleSince       time.Time
	suspensionCount int
	failedAttempts  int
	lastError       error
	lastFailureAt   time.Time
	forcedShutdowns int
}

// Registry is the single authority for service lifecycle transitions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	sf      singleflight.Group

	transitions *apicore.Publisher[apicore.LifecycleTransitionEvent]
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entries:     make(map[string]*entry),
		transitions: apicore.NewPublisher[apicore.LifecycleTransitionEvent](),
	}
}

// Transitions returns a channel of every lifecycle state change across
// all registered services.
func (r *Registry) Transitions(buffer int) <-chan apicore.LifecycleTransitionEvent {
	return r.transitions.Subscribe(buffer)
}

// Register adds a service under config.Name with its instance factory.
// Registering the same name twice is a programming error and returns an
// error rather than panicking, so callers building a catalog-driven
// registry can surface it as a configuration error.
func (r *Registry) Register(config catalog.ServiceConfig, factory Factory) error {
	if config.Name == "" {
		return fmt.Errorf("registry: service has empty name")
	}
	if factory == nil {
		return fmt.Errorf("registry: service %q has nil factory", config.Name)
	}
	if config.MaxRestartAttempts <= 0 {
		config.MaxRestartAttempts = defaultMaxRestartAttempts
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[config.Name]; exists {
		return fmt.Errorf("registry: service %q already registered", config.Name)
	}
	r.entries[config.Name] = &entry{
		name:    config.Name,
		config:  config,
		factory: factory,
		state:   NotLoaded,
	}
	return nil
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Get returns the live instance for name, loading it through the
// registered factory if necessary. Concurrent callers for the same cold
// service share one factory invocation via single-flight.
func (r *Registry) Get(ctx context.Context, name string) (any, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, apicore.ErrServiceNotFound
	}

	e.mu.Lock()
	if !e.config.Enabled {
		e.mu.Unlock()
		return nil, apicore.NewServiceDisabledError(name)
	}
	if e.state == Active || e.state == Idle {
		instance := e.instance
		e.lastAccessed = time.Now()
		if e.state == Idle {
			r.transitionLocked(e, Idle, Active, nil)
		}
		e.mu.Unlock()
		return instance, nil
	}
	if e.state == Failed {
		if e.failedAttempts >= e.config.MaxRestartAttempts {
			err := e.lastError
			e.mu.Unlock()
			return nil, fmt.Errorf("service %q exceeded max_restart_attempts (%d): %w", name, e.config.MaxRestartAttempts, err)
		}
		wait := backoffFor(e.failedAttempts)
		since := time.Since(e.lastFailureAt)
		if since < wait {
			remaining := wait - since
			e.mu.Unlock()
			return nil, fmt.Errorf("service %q retrying in %s: %w", name, remaining.Round(time.Millisecond), e.lastError)
		}
	}
	e.mu.Unlock()

	return r.load(ctx, e)
}

func (r *Registry) load(ctx context.Context, e *entry) (any, error) {
	result, err, _ := r.sf.Do(e.name, func() (any, error) {
		e.mu.Lock()
		r.transitionLocked(e, e.state, Loading, nil)
		factory := e.factory
		e.mu.Unlock()

		instance, err := factory(ctx)

		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil {
			e.failedAttempts++
			e.lastError = err
			e.lastFailureAt = time.Now()
			r.transitionLocked(e, Loading, Failed, err)
			return nil, &apicore.LoadError{Service: e.name, Attempt: e.failedAttempts, Cause: err}
		}

		e.instance = instance
		e.failedAttempts = 0
		e.lastError = nil
		e.lastAccessed = time.Now()
		r.transitionLocked(e, Loading, Active, nil)
		return instance, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Suspend moves an ACTIVE or IDLE service to SUSPENDED, invoking its
// optional shutdown hook under its graceful-shutdown timeout and then
// dropping the instance. Forbidden for ESSENTIAL services.
func (r *Registry) Suspend(ctx context.Context, name string) error {
	e, ok := r.lookup(name)
	if !ok {
		return apicore.ErrServiceNotFound
	}

	e.mu.Lock()
	if e.config.Classification == catalog.Essential {
		e.mu.Unlock()
		return fmt.Errorf("registry: ESSENTIAL service %q may never be suspended", name)
	}
	if e.state != Active && e.state != Idle {
		e.mu.Unlock()
		return nil
	}
	instance := e.instance
	budget := time.Duration(e.config.GracefulShutdownSeconds) * time.Second
	e.mu.Unlock()

	r.runShutdownHook(ctx, instance, budget)

	e.mu.Lock()
	e.instance = nil
	e.suspensionCount++
	e.idleSince = time.Time{}
	r.transitionLocked(e, e.state, Suspended, nil)
	e.mu.Unlock()

	logging.Info(registrySubsystem, "suspended %s (suspension_count=%d)", name, e.suspensionCount)
	return nil
}

// Shutdown moves an ACTIVE or SUSPENDED service to SHUTDOWN (terminal).
// On timeout, it force-drops the instance and records a forced shutdown.
func (r *Registry) Shutdown(ctx context.Context, name string) error {
	e, ok := r.lookup(name)
	if !ok {
		return apicore.ErrServiceNotFound
	}

	e.mu.Lock()
	if e.state == Shutdown {
		e.mu.Unlock()
		return nil
	}
	instance := e.instance
	budget := time.Duration(e.config.GracefulShutdownSeconds) * time.Second
	from := e.state
	e.mu.Unlock()

	forced := !r.runShutdownHook(ctx, instance, budget)

	e.mu.Lock()
	e.instance = nil
	if forced {
		e.forcedShutdowns++
	}
	r.transitionLocked(e, from, Shutdown, nil)
	e.mu.Unlock()

	if forced {
		logging.Audit(logging.AuditEvent{
			Action:  "force_shutdown",
			Outcome: "success",
			Target:  name,
			Details: fmt.Sprintf("graceful shutdown exceeded %s budget", budget),
		})
		return &apicore.ShutdownTimeoutError{Service: name, Budget: budget.String()}
	}
	return nil
}

// runShutdownHook invokes instance's ShutdownHook, if any, under budget.
// It returns true if the hook completed (or there was none) before the
// budget expired, false if it had to be abandoned.
func (r *Registry) runShutdownHook(ctx context.Context, instance any, budget time.Duration) bool {
	hook, ok := instance.(ShutdownHook)
	if !ok || hook == nil {
		return true
	}
	if budget <= 0 {
		budget = 10 * time.Second
	}

	done := make(chan error, 1)
	shutdownCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	go func() {
		done <- hook.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logging.Warn(registrySubsystem, "shutdown hook returned error: %v", err)
		}
		return true
	case <-shutdownCtx.Done():
		return false
	}
}

// MarkIdle transitions an ACTIVE service with no recent access to IDLE.
// The lifecycle manager's idle sweep does not call it; that sweep
// suspends idle services directly.
func (r *Registry) MarkIdle(name string) {
	e, ok := r.lookup(name)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Active {
		return
	}
	e.idleSince = time.Now()
	r.transitionLocked(e, Active, Idle, nil)
}

// Snapshot returns a race-free copy of one entry's state.
func (r *Registry) Snapshot(name string) (Snapshot, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshotLocked(e), true
}

// Iter returns a snapshot of every registered service, sorted by name.
func (r *Registry) Iter() []Snapshot {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	entries := make([]*entry, 0, len(r.entries))
	for name, e := range r.entries {
		names = append(names, name)
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, snapshotLocked(e))
		e.mu.Unlock()
	}
	return out
}

func snapshotLocked(e *entry) Snapshot {
	return Snapshot{
		Name:            e.name,
		State:           e.state,
		HasInstance:     e.instance != nil,
		LastAccessed:    e.lastAccessed,
		IdleSince:       e.idleSince,
		SuspensionCount: e.suspensionCount,
		FailedAttempts:  e.failedAttempts,
		LastError:       e.lastError,
		ForcedShutdowns: e.forcedShutdowns,
	}
}

// transitionLocked records a state change and publishes it. Caller must
// hold e.mu.
func (r *Registry) transitionLocked(e *entry, from, to State, err error) {
	e.state = to
	r.transitions.Publish(apicore.LifecycleTransitionEvent{
		Service:   e.name,
		From:      string(from),
		To:        string(to),
		Err:       err,
		Timestamp: time.Now(),
	})
}

func backoffFor(attempt int) time.Duration {
	d := backoffBase
	for i := 0; i < attempt && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
