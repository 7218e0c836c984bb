package kernel

import "context"

// Handler executes one tool call and returns either a result value or an
// error. Handlers are looked up by name from a Registry and invoked only
// while the machine is in EXECUTING.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Registry resolves a tool name to a Handler. The kernel only ever
// calls Lookup — it owns no registration logic of its own, so any
// adapter (in-memory map, rate-limited wrapper, WASM sandbox) in
// pkg/registry can stand in here without the kernel importing it.
type Registry interface {
	Lookup(name string) (Handler, bool)
}

// MapRegistry is the simplest possible Registry: an in-memory name ->
// Handler table. It exists here, rather than only in pkg/registry, so
// that kernel tests have zero external dependency.
type MapRegistry map[string]Handler

func (m MapRegistry) Lookup(name string) (Handler, bool) {
	h, ok := m[name]
	return h, ok
}
