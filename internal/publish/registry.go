package publish

import (
	"slices"
	"sync"
)

// Registry is a name-keyed lookup of constructed platforms. It is filled
// once at startup and only read afterwards.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]Platform
	order     []string
}

// NewRegistry returns a registry holding platforms, in order.
func NewRegistry(platforms ...Platform) (*Registry, error) {
	r := &Registry{platforms: make(map[string]Platform, len(platforms))}
	for _, p := range platforms {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p under its name. Registering a name twice fails.
func (r *Registry) Register(p Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, ok := r.platforms[name]; ok {
		return DuplicatePlatformError{Platform: name}
	}
	if r.platforms == nil {
		r.platforms = make(map[string]Platform)
	}
	r.platforms[name] = p
	r.order = append(r.order, name)
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.platforms[name]
	return ok
}

// Get returns the platform registered under name.
func (r *Registry) Get(name string) (Platform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.platforms[name]
	if !ok {
		return nil, PlatformNotFoundError{Platform: name}
	}
	return p, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered platforms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
