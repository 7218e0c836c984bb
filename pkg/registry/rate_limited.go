package registry

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kernelgate/governor/pkg/kernel"
)

// RateLimited wraps a kernel.Registry so every resolved Handler is
// additionally gated by a per-tool token bucket. A tool with no
// configured limiter passes through unthrottled.
type RateLimited struct {
	inner    kernel.Registry
	limiters map[string]*rate.Limiter
}

// NewRateLimited wraps inner; limits maps tool name to its bucket.
func NewRateLimited(inner kernel.Registry, limits map[string]*rate.Limiter) *RateLimited {
	return &RateLimited{inner: inner, limiters: limits}
}

// Lookup resolves name against the wrapped registry and, if a limiter is
// configured for it, wraps the handler so every call blocks on the
// limiter (or returns immediately with an error if the context is
// cancelled first) before the underlying handler ever runs.
func (r *RateLimited) Lookup(name string) (kernel.Handler, bool) {
	h, ok := r.inner.Lookup(name)
	if !ok {
		return nil, false
	}
	lim, ok := r.limiters[name]
	if !ok {
		return h, true
	}
	limited := func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("registry: rate limit wait for tool %q: %w", name, err)
		}
		return h(ctx, params)
	}
	return limited, true
}
