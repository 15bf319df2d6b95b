package cli

import (
	"context"
	"time"

	"github.com/matzehuels/stanza/internal/metrics"
	"github.com/matzehuels/stanza/pkg/observability"
)

// registerHooks reports library events at debug level through the logger
// carried by the event's context, and records them in rec.
func registerHooks(rec *metrics.Recorder) {
	h := logHooks{rec: rec}
	observability.SetResolveHooks(h)
	observability.SetOperationHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

type logHooks struct {
	rec *metrics.Recorder
}

func (h logHooks) OnResolveStart(ctx context.Context, requirements int) {
	if h.rec != nil {
		h.rec.OnResolveStart(ctx, requirements)
	}
	loggerFromContext(ctx).Debug("resolving", "requirements", requirements)
}

func (h logHooks) OnResolveComplete(ctx context.Context, packages int, d time.Duration, err error) {
	if h.rec != nil {
		h.rec.OnResolveComplete(ctx, packages, d, err)
	}
	if err != nil {
		loggerFromContext(ctx).Debug("resolution failed", "duration", d, "error", err)
		return
	}
	loggerFromContext(ctx).Debug("resolved", "packages", packages, "duration", d)
}

func (h logHooks) OnFetch(ctx context.Context, name, repo, rev string, d time.Duration, err error) {
	if h.rec != nil {
		h.rec.OnFetch(ctx, name, repo, rev, d, err)
	}
	loggerFromContext(ctx).Debug("fetched", "package", name, "repo", repo, "rev", rev, "duration", d, "error", err)
}

func (h logHooks) OnOperationStart(ctx context.Context, job, name string) {
	if h.rec != nil {
		h.rec.OnOperationStart(ctx, job, name)
	}
	loggerFromContext(ctx).Debug("operation", "job", job, "package", name)
}

func (h logHooks) OnOperationComplete(ctx context.Context, job, name string, d time.Duration, err error) {
	if h.rec != nil {
		h.rec.OnOperationComplete(ctx, job, name, d, err)
	}
	if err != nil {
		loggerFromContext(ctx).Debug("operation failed", "job", job, "package", name, "duration", d, "error", err)
	}
}

func (h logHooks) OnCacheHit(ctx context.Context, keyType string) {
	if h.rec != nil {
		h.rec.OnCacheHit(ctx, keyType)
	}
	loggerFromContext(ctx).Debug("cache hit", "key", keyType)
}

func (h logHooks) OnCacheMiss(ctx context.Context, keyType string) {
	if h.rec != nil {
		h.rec.OnCacheMiss(ctx, keyType)
	}
	loggerFromContext(ctx).Debug("cache miss", "key", keyType)
}

func (h logHooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	if h.rec != nil {
		h.rec.OnCacheSet(ctx, keyType, size)
	}
}

func (h logHooks) OnRequest(ctx context.Context, method, host, path string) {
	if h.rec != nil {
		h.rec.OnRequest(ctx, method, host, path)
	}
	loggerFromContext(ctx).Debug("request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(ctx context.Context, method, host, path string, status int, d time.Duration) {
	if h.rec != nil {
		h.rec.OnResponse(ctx, method, host, path, status, d)
	}
	loggerFromContext(ctx).Debug("response", "host", host, "path", path, "status", status, "duration", d)
}

func (h logHooks) OnError(ctx context.Context, method, host, path string, err error) {
	if h.rec != nil {
		h.rec.OnError(ctx, method, host, path, err)
	}
	loggerFromContext(ctx).Debug("request failed", "host", host, "path", path, "error", err)
}
