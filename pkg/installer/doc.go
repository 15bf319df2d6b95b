// Package installer drives locking, installing and updating a project's
// dependencies.
//
// An [Installer] works against a [Project], either a poetry.toml manifest
// or a lock-backed project, and delegates to collaborators:
//
//   - a [Resolver] pins declared dependencies (see package resolve)
//   - a [Pip] installs and removes single packages
//   - an [Interpreter] reports the running Python version for
//     interpreter-restricted packages
//
// Progress is written line by line to Out. The lock document is written
// only after every installer operation of a batch has succeeded.
package installer
