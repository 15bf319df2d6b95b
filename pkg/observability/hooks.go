// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through the registered hooks; the CLI registers
// implementations at startup. Defaults are no-ops, so nothing is reported
// unless a consumer opts in.
//
// Register hooks at application startup:
//
//	observability.SetResolveHooks(&logResolveHooks{logger})
//	observability.SetOperationHooks(&logOperationHooks{logger})
//
// Libraries call hooks to emit events:
//
//	observability.Resolve().OnResolveStart(ctx, len(requirements))
//	// ... resolve ...
//	observability.Resolve().OnResolveComplete(ctx, len(packages), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Resolve Hooks
// =============================================================================

// ResolveHooks receives events from dependency resolution.
type ResolveHooks interface {
	OnResolveStart(ctx context.Context, requirements int)
	OnResolveComplete(ctx context.Context, packages int, duration time.Duration, err error)

	// OnFetch records a VCS checkout made to pin a reference.
	OnFetch(ctx context.Context, name, repo, rev string, duration time.Duration, err error)
}

// =============================================================================
// Operation Hooks
// =============================================================================

// OperationHooks receives events for each installer process run.
type OperationHooks interface {
	OnOperationStart(ctx context.Context, job, name string)
	OnOperationComplete(ctx context.Context, job, name string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopResolveHooks is a no-op implementation of ResolveHooks.
type NoopResolveHooks struct{}

func (NoopResolveHooks) OnResolveStart(context.Context, int)                                    {}
func (NoopResolveHooks) OnResolveComplete(context.Context, int, time.Duration, error)           {}
func (NoopResolveHooks) OnFetch(context.Context, string, string, string, time.Duration, error) {}

// NoopOperationHooks is a no-op implementation of OperationHooks.
type NoopOperationHooks struct{}

func (NoopOperationHooks) OnOperationStart(context.Context, string, string) {}
func (NoopOperationHooks) OnOperationComplete(context.Context, string, string, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	resolveHooks   ResolveHooks   = NoopResolveHooks{}
	operationHooks OperationHooks = NoopOperationHooks{}
	cacheHooks     CacheHooks     = NoopCacheHooks{}
	httpHooks      HTTPHooks      = NoopHTTPHooks{}
	hooksMu        sync.RWMutex
)

// SetResolveHooks registers custom resolve hooks.
func SetResolveHooks(h ResolveHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolveHooks = h
	}
}

// SetOperationHooks registers custom operation hooks.
func SetOperationHooks(h OperationHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		operationHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Resolve returns the registered resolve hooks.
func Resolve() ResolveHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolveHooks
}

// Operation returns the registered operation hooks.
func Operation() OperationHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return operationHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	resolveHooks = NoopResolveHooks{}
	operationHooks = NoopOperationHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
