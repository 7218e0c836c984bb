// Package registry provides Tool Registry implementations and adapters
// (spec §3 "Tool Registry", SPEC_FULL §4.9). The kernel core only ever
// depends on the kernel.Registry/kernel.Handler interfaces; everything
// here is a concrete implementation or wrapper of those, never imported
// back by pkg/kernel.
package registry

import (
	"sync"

	"github.com/kernelgate/governor/pkg/kernel"
)

// Registry is the baseline in-memory Tool Registry: a name -> Handler
// table built up with Register before the kernel is constructed.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]kernel.Handler
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]kernel.Handler)}
}

// Register binds name to h, replacing any existing binding.
func (r *Registry) Register(name string, h kernel.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup satisfies kernel.Registry.
func (r *Registry) Lookup(name string) (kernel.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}
