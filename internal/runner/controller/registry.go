package controller

import (
	"sync"

	"statebox/internal/runner/secret"
	"statebox/internal/runner/spec"
)

// Registry remembers containers launched through the service together
// with the secret handles that belong to them.
type Registry struct {
	mu      sync.Mutex
	entries map[spec.ContainerHandle]*secret.Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[spec.ContainerHandle]*secret.Handle)}
}

// Track records a launched container. staged may be nil.
func (r *Registry) Track(handle spec.ContainerHandle, staged *secret.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[handle] = staged
}

// Tracked reports whether handle was launched here and not yet released.
func (r *Registry) Tracked(handle spec.ContainerHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[handle]
	return ok
}

// Lookup returns the secret tracked for handle without releasing it.
func (r *Registry) Lookup(handle spec.ContainerHandle) (*secret.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged, ok := r.entries[handle]
	return staged, ok
}

// Release forgets handle and hands its secret back to the caller.
func (r *Registry) Release(handle spec.ContainerHandle) (*secret.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged, ok := r.entries[handle]
	if ok {
		delete(r.entries, handle)
	}
	return staged, ok
}

// Drain releases every entry.
func (r *Registry) Drain() map[spec.ContainerHandle]*secret.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = make(map[spec.ContainerHandle]*secret.Handle)
	return out
}

// Len returns the number of tracked containers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
