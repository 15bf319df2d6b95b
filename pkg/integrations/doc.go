// Package integrations provides the shared HTTP client used by package
// index API clients.
//
// [Client] wraps net/http with response caching through [cache.Cache],
// retries with exponential backoff for transient failures and default
// request headers. Index-specific clients live in subpackages:
//
//   - [pypi]: the Python Package Index JSON API
//
// Errors are classified with the [ErrNotFound] and [ErrNetwork] sentinels;
// transient ones are additionally wrapped in [RetryableError].
//
// [pypi]: github.com/matzehuels/stanza/pkg/integrations/pypi
// [cache.Cache]: github.com/matzehuels/stanza/pkg/cache.Cache
package integrations
