// Package deps models declared dependencies and pinned packages.
//
// # Dependencies
//
// A [Dependency] is one declaration from a manifest (or one entry re-read
// from a lock document). Its constraint is a sum type: either a [Version]
// range expression or a [VCS] reference. Both kinds derive a canonical
// constraint and an installable specifier:
//
//	pendulum = "^1.2"                 ->  pendulum>=1.2.0,<2.0.0
//	stanza   = { git = "...", tag = "v1" }  ->  git+...@v1#egg=stanza
//
// VCS dependencies have an empty normalized constraint and always accept
// prereleases.
//
// # Packages
//
// A [Package] is one resolved, pinned entry. Its [Pin] is either a
// [Registry] version or a [VCS] revision. Package names are canonicalized
// with [Canonicalize] so different declared spellings collapse to one
// identity.
package deps
