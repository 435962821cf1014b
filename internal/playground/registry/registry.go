package registry

import (
	"fmt"
	"sync"
)

// Bundle is the set of named exports a resolved module exposes to
// executed scene code.
type Bundle map[string]any

// Resolver produces a module's export bundle. Resolvers are expected to
// be pure; the registry only guarantees each one runs at most once.
type Resolver func() Bundle

// ErrModuleNotFound reports an import name with no registered resolver.
type ErrModuleNotFound struct {
	Name string
}

func (e *ErrModuleNotFound) Error() string {
	return fmt.Sprintf("module not found: %s", e.Name)
}

// Registry maps symbolic import names to export bundles without a real
// module loader. Resolution is lazy and cached for the lifetime of the
// instance; the first resolution of a name wins.
type Registry struct {
	mu        sync.Mutex
	resolvers map[string]Resolver
	cache     map[string]Bundle
	inflight  map[string]chan struct{}
}

func New() *Registry {
	return &Registry{
		resolvers: make(map[string]Resolver),
		cache:     make(map[string]Bundle),
		inflight:  make(map[string]chan struct{}),
	}
}

// AddResolvers merges the table into the registry. A later registration
// under the same name overwrites the earlier one, but has no effect on
// names already resolved into the cache.
func (r *Registry) AddResolvers(resolvers map[string]Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, fn := range resolvers {
		r.resolvers[name] = fn
	}
}

// ResolveModule returns the export bundle for name, invoking its
// resolver on first use and caching the result. Concurrent resolutions
// of the same unresolved name collapse onto a single resolver call.
func (r *Registry) ResolveModule(name string) (Bundle, error) {
	for {
		r.mu.Lock()
		if b, ok := r.cache[name]; ok {
			r.mu.Unlock()
			return b, nil
		}
		if done, ok := r.inflight[name]; ok {
			r.mu.Unlock()
			<-done
			continue
		}
		fn, ok := r.resolvers[name]
		if !ok {
			r.mu.Unlock()
			return nil, &ErrModuleNotFound{Name: name}
		}
		done := make(chan struct{})
		r.inflight[name] = done
		r.mu.Unlock()

		b := fn()

		r.mu.Lock()
		r.cache[name] = b
		delete(r.inflight, name)
		close(done)
		r.mu.Unlock()
		return b, nil
	}
}
