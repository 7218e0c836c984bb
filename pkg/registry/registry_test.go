package registry

import (
	"context"
	"testing"

	"golang.org/x/time/rate"

	"github.com/kernelgate/governor/pkg/kernel"
)

func TestRegistryLookup(t *testing.T) {
	r := New()
	r.Register("echo", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return params["q"], nil
	})
	h, ok := r.Lookup("echo")
	if !ok {
		t.Fatal("expected echo to be registered")
	}
	out, err := h(context.Background(), map[string]interface{}{"q": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "hi" {
		t.Fatalf("got %v, want hi", out)
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected missing tool to be absent")
	}
}

func TestRateLimitedPassthroughWithoutLimiter(t *testing.T) {
	base := New()
	base.Register("echo", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return "ok", nil
	})
	var rl kernel.Registry = NewRateLimited(base, nil)
	h, ok := rl.Lookup("echo")
	if !ok {
		t.Fatal("expected echo to resolve through the rate-limited wrapper")
	}
	out, err := h(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" {
		t.Fatalf("got %v, want ok", out)
	}
}

func TestRateLimitedWaitFailsOnCancelledContext(t *testing.T) {
	base := New()
	calls := 0
	base.Register("echo", func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	})
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	limiter.Allow() // drain the single token so the next Wait must block or fail fast

	rl := NewRateLimited(base, map[string]*rate.Limiter{"echo": limiter})
	h, ok := rl.Lookup("echo")
	if !ok {
		t.Fatal("expected echo to resolve")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-cancelled context: Wait must return immediately with an error
	if _, err := h(ctx, nil); err == nil {
		t.Fatal("expected rate limit wait to fail on a cancelled context")
	}
}
