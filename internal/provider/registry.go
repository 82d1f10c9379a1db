package provider

import (
	"sort"
	"sync"

	"github.com/mfcastro/ativo/internal/core"
)

// Registry holds the statically registered providers. Registration
// happens once at startup; ordering is fixed for the process lifetime.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider, keeping the slice sorted by ascending
// priority. Ties keep registration order.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority() < r.providers[j].Priority()
	})
}

// Candidates returns the providers capable of handling the request, in
// priority order.
func (r *Registry) Candidates(ticker string, assetType core.AssetType) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.CanHandle(ticker, assetType) {
			out = append(out, p)
		}
	}
	return out
}

// All returns every registered provider in priority order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
