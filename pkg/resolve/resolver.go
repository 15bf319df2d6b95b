package resolve

import (
	"context"

	"github.com/matzehuels/stanza/pkg/deps"
)

// Candidate is one entry of a resolver's output: a registry pin or an
// editable VCS reference that still has to be pinned to a commit.
type Candidate struct {
	Name    string    // Canonical name
	Version string    // Pinned version, empty for editable candidates
	VCS     *deps.VCS // Editable reference, nil for registry pins
}

// Editable reports whether the candidate is an unpinned VCS reference.
func (c Candidate) Editable() bool { return c.VCS != nil }

// Specifier returns the requirement string of the candidate, e.g.
// "requests==2.13.0". Hash maps returned by [Resolver.ResolveHashes] are
// keyed by it.
func (c Candidate) Specifier() string {
	if c.VCS != nil {
		return c.VCS.Specifier(c.Name)
	}
	return c.Name + "==" + c.Version
}

// Resolver is the version-selection primitive the engine delegates to.
type Resolver interface {
	// Resolve selects one candidate per package for the declared
	// requirements and their transitive dependencies.
	Resolve(ctx context.Context, requirements []*deps.Dependency, allowPrereleases bool) ([]Candidate, error)

	// ReverseDependencies maps each candidate name to the names of the
	// candidates that require it.
	ReverseDependencies(ctx context.Context, candidates []Candidate) (map[string][]string, error)

	// ResolveHashes returns the integrity digests of registry pins keyed by
	// [Candidate.Specifier].
	ResolveHashes(ctx context.Context, pinned []Candidate) (map[string][]string, error)
}
