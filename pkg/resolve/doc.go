// Package resolve turns declared dependencies into a pinned, categorized
// package set.
//
// Version selection itself is delegated to a [Resolver]. The [Engine]
// post-processes its output:
//
//   - editable VCS candidates are pinned to a commit through a [vcs.Fetcher]
//   - registry pins get their integrity digests
//   - packages on the unsafe list (setuptools) are dropped
//   - category and optionality are inherited from declared ancestors in the
//     reverse-dependency graph
//   - interpreter restrictions propagate from declaring parents to
//     transitive children
//
// The result is sorted by name, case-insensitively.
//
// Prerelease acceptance is one flag for the whole batch: if any declared
// dependency accepts prereleases, the resolver may pick prereleases for
// every package.
//
// [vcs.Fetcher]: github.com/matzehuels/stanza/pkg/vcs.Fetcher
package resolve
