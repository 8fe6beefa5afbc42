// Package arena implements a shared-mutable-entity pattern: Images and
// TranscodeSets are referenced both by the catalog (a Track holds a handle)
// and by the Cache (a top-level list), and rather than model that as a
// reference cycle, the Cache owns an Arena of values and everyone else
// holds a stable, comparable Handle into it. This plays the same role as
// distribution's registry/storage/cache/memory descriptor cache, which
// keeps one reusable, cheaply-keyed registry of objects instead of letting
// every repository re-fetch or duplicate them; ours is a plain value arena
// rather than an LRU, since nothing here needs eviction.
//
// Arena is parameterized over a pointer type (*TranscodeSet, *ImageSet,
// *ArchiveSet, ...) so Get returns the same shared, mutable value every
// caller holding the Handle sees — there is no copy-on-read to reason
// about. Mutual exclusion for an entity's own fields is the entity's job
// (its own mutex), not the arena's.
package arena

import "sync"

// Handle is a stable reference into an Arena. Handle 0 refers to the first
// registered value like any other; callers that need a "not yet assigned"
// sentinel pair a Handle with their own presence flag (as catalog.Release
// does with HasCover/HasArchives) rather than relying on the zero value.
type Handle int

// Arena owns a set of P values (P is expected to be a pointer type), each
// reachable by a stable Handle.
type Arena[P any] struct {
	mu     sync.RWMutex
	values []P
}

// New registers value and returns its Handle.
func (a *Arena[P]) New(value P) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = append(a.values, value)
	return Handle(len(a.values) - 1)
}

// Get returns the value registered at h. It panics on an out-of-range
// handle, since that indicates a programming error (a Handle minted by one
// Arena used against another) rather than a recoverable condition.
func (a *Arena[P]) Get(h Handle) P {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(h) < 0 || int(h) >= len(a.values) {
		panic("arena: handle out of range")
	}
	return a.values[h]
}

// Len returns the number of entries ever allocated (entries are never
// removed from an Arena; the Cache engine's garbage collection operates on
// the backing files, not on arena slots).
func (a *Arena[P]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// All returns every handle currently allocated, in allocation order.
func (a *Arena[P]) All() []Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Handle, len(a.values))
	for i := range a.values {
		out[i] = Handle(i)
	}
	return out
}

// Find returns the first handle whose value satisfies pred, preserving
// allocation order (used by the Cache engine's get-or-create lookups).
func (a *Arena[P]) Find(pred func(P) bool) (Handle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i, v := range a.values {
		if pred(v) {
			return Handle(i), true
		}
	}
	return 0, false
}
