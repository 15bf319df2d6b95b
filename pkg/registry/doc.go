// Package registry resolves declared dependencies against a package index.
//
// [Registry] implements [resolve.Resolver] on top of an [Index] such as the
// PyPI JSON API client. It crawls the requirement graph breadth first:
// every round fetches the release lists of newly discovered packages
// concurrently, picks the highest version allowed by all constraints seen
// so far and queues the runtime requirements of that release. Selection
// does not backtrack; a constraint discovered after a package was pinned
// that excludes the pin fails resolution.
//
// Editable VCS dependencies are passed through as unpinned candidates.
// Their own requirements are not crawled.
//
// [resolve.Resolver]: github.com/matzehuels/stanza/pkg/resolve.Resolver
package registry
