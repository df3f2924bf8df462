// file: internal/provider/provider.go
// version: 1.0.0
// guid: 9b4e7a2c-3d6f-4b8a-9c1e-2f5a6b7c8d9e

package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jdfalk/bookbot/internal/models"
)

// Adapter is the contract every metadata source satisfies. Implementations
// must honor ctx cancellation, return within a bounded time and never mutate
// shared state.
type Adapter interface {
	Name() string
	Search(ctx context.Context, q models.Query) ([]models.Candidate, error)
}

// Settings carries the per-provider knobs from configuration.
type Settings struct {
	Enabled  bool
	Trust    float64       // prior weight in [0,1]; 0 means use default
	Priority int           // lower is higher priority; tie-break order
	Timeout  time.Duration // per-query budget; 0 means registry default
}

// DefaultTimeout bounds a provider query when the settings leave it unset.
const DefaultTimeout = 15 * time.Second

// Entry pairs an adapter with its settings.
type Entry struct {
	Adapter  Adapter
	Settings Settings
}

// Registry holds the configured adapters in priority order.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an adapter. Registering the same name twice is an error so
// config mistakes surface early.
func (r *Registry) Register(a Adapter, s Settings) error {
	name := a.Name()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Trust <= 0 {
		s.Trust = 0.5
	}
	r.entries[name] = Entry{Adapter: a, Settings: s}
	return nil
}

// Enabled returns the enabled entries sorted by priority, then name. The
// order is the reconciler's deterministic tie-break order.
func (r *Registry) Enabled() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Settings.Enabled {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Settings.Priority != out[j].Settings.Priority {
			return out[i].Settings.Priority < out[j].Settings.Priority
		}
		return out[i].Adapter.Name() < out[j].Adapter.Name()
	})
	return out
}

// Get returns a registered entry by name.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}
