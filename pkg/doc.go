// Package pkg provides the libraries behind the stanza dependency manager.
//
// # Overview
//
// Stanza pins the dependencies a Python project declares in poetry.toml
// into a reproducible poetry.lock and drives pip to install exactly that
// set. The packages split into three areas:
//
//  1. Model: [deps], [constraint], [dag] and [errors]
//  2. Core: [resolve], [diff], [lock], [manifest] and [installer]
//  3. Infrastructure: [registry], [integrations], [cache], [vcs], [pyenv],
//     [render] and [observability]
//
// # Architecture
//
//	poetry.toml ([manifest])
//	     ↓
//	[resolve] Engine ← [registry] ← [integrations/pypi] ← [cache]
//	     ↓                 [vcs] pins git references
//	poetry.lock ([lock])
//	     ↓
//	[installer] → [diff] → [pyenv] pip
//
// The resolution engine asks an external resolver for pinned candidates,
// derives category, optionality and interpreter restrictions from the
// reverse-dependency graph and produces the lock entries. The installer
// compares lock entries with what is installed and issues one pip call per
// change.
package pkg
