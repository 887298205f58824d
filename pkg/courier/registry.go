package courier

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs an adapter instance. Factories load their provider's
// runtime configuration once, at construction time.
type Factory func() (Courier, error)

// Registry resolves courier codes to adapter instances. Exactly one
// instance is constructed per code for the process lifetime; construction
// is lazy and safe under concurrent first access.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Courier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Courier),
	}
}

// RegisterFactory binds a courier code to its constructor. Intended to be
// called at startup, before Get is reachable from any handler.
func (r *Registry) RegisterFactory(code string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[code] = f
}

// Register installs an already-constructed adapter, keyed by its code.
func (r *Registry) Register(c Courier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[c.Code()] = c
}

// Get returns the adapter for code, constructing and memoizing it on
// first access. An unmapped code fails with ErrUnsupportedCourier.
func (r *Registry) Get(code string) (Courier, error) {
	r.mu.RLock()
	if c, ok := r.instances[code]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock so a racing caller cannot construct
	// the same adapter twice.
	if c, ok := r.instances[code]; ok {
		return c, nil
	}

	f, ok := r.factories[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCourier, code)
	}
	c, err := f()
	if err != nil {
		return nil, fmt.Errorf("constructing courier %s: %w", code, err)
	}
	r.instances[code] = c
	return c, nil
}

// Codes returns the registered courier codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.factories)+len(r.instances))
	for code := range r.factories {
		seen[code] = struct{}{}
	}
	for code := range r.instances {
		seen[code] = struct{}{}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Count returns the number of registered courier codes.
func (r *Registry) Count() int {
	return len(r.Codes())
}
