// Package registry maps backend resource identities to proxy objects.
//
// A Registry keeps one proxy per identity so repeated lookups of the same
// live resource return the same proxy. The registry owns the proxies only;
// the lifetime of the native resource stays with the backend.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bft-labs/sigcap/internal/domain"
)

// Registry holds the proxies of one resource kind.
type Registry[P any] struct {
	mu      sync.RWMutex
	kind    domain.Kind
	proxies map[uint64]P
}

// New creates an empty registry for the given kind.
func New[P any](kind domain.Kind) *Registry[P] {
	return &Registry[P]{
		kind:    kind,
		proxies: make(map[uint64]P),
	}
}

// Kind returns the resource kind held by the registry.
func (r *Registry[P]) Kind() domain.Kind {
	return r.kind
}

// Resolve returns the proxy registered for id, allocating one with factory on
// first sight. A zero id denotes "no object" and yields ok=false without
// calling factory.
func (r *Registry[P]) Resolve(id uint64, factory func(domain.Handle) P) (proxy P, ok bool) {
	if id == 0 {
		return proxy, false
	}

	r.mu.RLock()
	proxy, ok = r.proxies[id]
	r.mu.RUnlock()
	if ok {
		return proxy, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if proxy, ok = r.proxies[id]; ok {
		return proxy, true
	}
	proxy = factory(domain.NewHandle(r.kind, id))
	r.proxies[id] = proxy
	return proxy, true
}

// Lookup returns the proxy registered for id without allocating.
func (r *Registry[P]) Lookup(id uint64) (proxy P, ok bool) {
	if id == 0 {
		return proxy, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	proxy, ok = r.proxies[id]
	return proxy, ok
}

// Get returns the proxy for h, or ErrNotFound if h is of another kind or
// was never registered.
func (r *Registry[P]) Get(h domain.Handle) (P, error) {
	var zero P
	if h.Kind != r.kind {
		return zero, fmt.Errorf("%w: %s is not a %s handle", domain.ErrNotFound, h, r.kind)
	}
	proxy, ok := r.Lookup(h.ID)
	if !ok {
		return zero, fmt.Errorf("%w: %s", domain.ErrNotFound, h)
	}
	return proxy, nil
}

// Forget drops the proxy registered for id.
func (r *Registry[P]) Forget(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.proxies, id)
}

// Len returns the number of registered proxies.
func (r *Registry[P]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.proxies)
}

// Handles returns the registered handles ordered by identity.
func (r *Registry[P]) Handles() []domain.Handle {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.proxies))
	for id := range r.proxies {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handles := make([]domain.Handle, len(ids))
	for i, id := range ids {
		handles[i] = domain.NewHandle(r.kind, id)
	}
	return handles
}

// Proxies returns the registered proxies ordered by identity.
func (r *Registry[P]) Proxies() []P {
	handles := r.Handles()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]P, 0, len(handles))
	for _, h := range handles {
		if p, ok := r.proxies[h.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Reset drops every proxy and returns what was registered, ordered by identity.
func (r *Registry[P]) Reset() []P {
	out := r.Proxies()
	r.mu.Lock()
	r.proxies = make(map[uint64]P)
	r.mu.Unlock()
	return out
}
