package connectors

import (
	"fmt"
	"sync"
)

// Registry is the per-service-instance `platform -> connector` cache
// (spec §4.F "connector caching"): created lazily, one entry per platform,
// shared across requests.
type Registry struct {
	mu         sync.Mutex
	factories  map[string]func() (Connector, error)
	connectors map[string]Connector
}

// NewRegistry builds an empty registry. Call Register for each platform
// before Get is first called for it.
func NewRegistry() *Registry {
	return &Registry{
		factories:  make(map[string]func() (Connector, error)),
		connectors: make(map[string]Connector),
	}
}

// Register installs a lazy constructor for a platform.
func (r *Registry) Register(platform string, factory func() (Connector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[platform] = factory
}

// Get returns the cached connector for platform, constructing it on first
// use.
func (r *Registry) Get(platform string) (Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.connectors[platform]; ok {
		return c, nil
	}
	factory, ok := r.factories[platform]
	if !ok {
		return nil, fmt.Errorf("connectors: unknown platform %q", platform)
	}
	c, err := factory()
	if err != nil {
		return nil, fmt.Errorf("connectors: construct %q: %w", platform, err)
	}
	r.connectors[platform] = c
	return c, nil
}

// Platforms lists every registered platform name, for the capability
// manifest endpoint (GET /connectors/platforms).
func (r *Registry) Platforms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
