package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	r := NoopResolveHooks{}
	r.OnResolveStart(ctx, 3)
	r.OnResolveComplete(ctx, 12, time.Second, nil)
	r.OnFetch(ctx, "pendulum", "https://github.com/sdispater/pendulum.git", "abc", time.Second, nil)

	o := NoopOperationHooks{}
	o.OnOperationStart(ctx, "install", "requests")
	o.OnOperationComplete(ctx, "install", "requests", time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "pypi")
	c.OnCacheMiss(ctx, "pypi")
	c.OnCacheSet(ctx, "pypi", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "pypi.org", "/pypi/requests/json")
	h.OnResponse(ctx, "GET", "pypi.org", "/pypi/requests/json", 200, time.Second)
	h.OnError(ctx, "GET", "pypi.org", "/pypi/requests/json", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Resolve().(NoopResolveHooks); !ok {
		t.Error("Resolve() should return NoopResolveHooks by default")
	}
	if _, ok := Operation().(NoopOperationHooks); !ok {
		t.Error("Operation() should return NoopOperationHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	ops := &testOperationHooks{}
	SetOperationHooks(ops)
	Operation().OnOperationStart(context.Background(), "install", "requests")
	if ops.started != 1 {
		t.Errorf("started = %d, want 1", ops.started)
	}

	// nil registrations are ignored
	SetOperationHooks(nil)
	if Operation() != OperationHooks(ops) {
		t.Error("SetOperationHooks(nil) should keep the current hooks")
	}

	Reset()
	if _, ok := Operation().(NoopOperationHooks); !ok {
		t.Error("Reset() should restore NoopOperationHooks")
	}
}

type testOperationHooks struct {
	NoopOperationHooks
	started int
}

func (h *testOperationHooks) OnOperationStart(context.Context, string, string) { h.started++ }
