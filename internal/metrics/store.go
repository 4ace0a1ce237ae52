package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultRowCap  = 1000
	storeSubsystem = "Metrics"
)

// Store is an append-only metrics store dual-indexed by (name,
// timestamp) and (service_name, timestamp), matching spec.md §4.H. A
// single mutex guards all indices; appends are rare relative to reads
// in this workload so a single RWMutex-free lock keeps ordering simple
// rather than chasing single-writer-queue throughput no caller needs
// yet.
type Store struct {
	mu sync.Mutex

	all       []Metric
	byName    map[string][]int
	byService map[string][]int

	observersMu sync.RWMutex
	observers   []func(Metric)
}

// NewStore returns an empty metrics store.
func NewStore() *Store {
	return &Store{
		byName:    make(map[string][]int),
		byService: make(map[string][]int),
	}
}

// Subscribe registers observe to be called with every metric passed to
// Record from then on, in addition to the store's own indexing. This is
// how the Prometheus Exporter mirrors the store without the store
// needing to know Prometheus exists.
func (s *Store) Subscribe(observe func(Metric)) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, observe)
}

// Record appends m to the store, indexing it by name and (if set) by
// service name, then notifies every subscriber registered via Subscribe.
func (s *Store) Record(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	s.mu.Lock()
	idx := len(s.all)
	s.all = append(s.all, m)
	s.byName[m.Name] = append(s.byName[m.Name], idx)
	if m.ServiceName != "" {
		s.byService[m.ServiceName] = append(s.byService[m.ServiceName], idx)
	}
	s.mu.Unlock()

	s.observersMu.RLock()
	observers := make([]func(Metric), len(s.observers))
	copy(observers, s.observers)
	s.observersMu.RUnlock()
	for _, observe := range observers {
		observe(m)
	}
}

// QueryByName returns metrics named name within [since, until], newest
// last, capped at limit rows (the most recent rows are kept when the
// window holds more). limit <= 0 uses defaultRowCap.
func (s *Store) QueryByName(name string, since, until time.Time, limit int) []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryIndex(s.byName[name], since, until, limit)
}

// QueryByService returns metrics emitted by service within [since,
// until], newest last, capped at limit rows. limit <= 0 uses
// defaultRowCap.
func (s *Store) QueryByService(service string, since, until time.Time, limit int) []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryIndex(s.byService[service], since, until, limit)
}

func (s *Store) queryIndex(indices []int, since, until time.Time, limit int) []Metric {
	if limit <= 0 {
		limit = defaultRowCap
	}
	var out []Metric
	for _, idx := range indices {
		m := s.all[idx]
		if !since.IsZero() && m.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && m.Timestamp.After(until) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Names returns every distinct metric name currently recorded.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Services returns every distinct service name currently recorded.
func (s *Store) Services() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	services := make([]string, 0, len(s.byService))
	for svc := range s.byService {
		services = append(services, svc)
	}
	sort.Strings(services)
	return services
}
