package metrics

import (
	"sort"
	"sync"
	"time"
)

// Source returns a component's current stats. It must be safe to call from
// any goroutine.
type Source func() any

// Snapshot is the result of one collection.
type Snapshot struct {
	CollectedAt time.Time      `json:"collected_at"`
	Uptime      string         `json:"uptime"`
	Components  map[string]any `json:"components"`
}

// Registry holds named sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	started time.Time
	now     func() time.Time
}

// NewRegistry creates an empty registry. Uptime is measured from now.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
		started: time.Now(),
		now:     time.Now,
	}
}

// Register adds or replaces the source for name.
func (r *Registry) Register(name string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = src
}

// Unregister removes the source for name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot calls every source.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	sources := make(map[string]Source, len(r.sources))
	for name, src := range r.sources {
		sources[name] = src
	}
	r.mu.RUnlock()

	now := r.now()
	snap := Snapshot{
		CollectedAt: now,
		Uptime:      now.Sub(r.started).Truncate(time.Second).String(),
		Components:  make(map[string]any, len(sources)),
	}
	for name, src := range sources {
		snap.Components[name] = src()
	}
	return snap
}
