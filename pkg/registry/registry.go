package registry

import (
	"context"
	stderrors "errors"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stanza/pkg/constraint"
	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/integrations"
	"github.com/matzehuels/stanza/pkg/integrations/pypi"
	"github.com/matzehuels/stanza/pkg/resolve"
)

const (
	// DefaultWorkers bounds concurrent index lookups.
	DefaultWorkers = 8

	releaseMemoSize = 1024
)

// Index is the package index the registry crawls.
type Index interface {
	FetchProject(ctx context.Context, name string, refresh bool) (*pypi.Project, error)
	FetchRelease(ctx context.Context, name, version string, refresh bool) (*pypi.Release, error)
}

// Options configures a [Registry].
type Options struct {
	Workers int         // Concurrent lookups, DefaultWorkers if zero
	Refresh bool        // Bypass cached index responses
	Logger  *log.Logger // Nil discards
}

// Registry resolves requirements against an [Index].
//
// Releases looked up during Resolve are memoized, so the follow-up
// ReverseDependencies and ResolveHashes calls for the same candidates do
// not hit the index again.
type Registry struct {
	index    Index
	opts     Options
	releases *lru.Cache[string, *pypi.Release]
}

// New creates a registry resolver.
func New(index Index, opts Options) *Registry {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	releases, _ := lru.New[string, *pypi.Release](releaseMemoSize)
	return &Registry{index: index, opts: opts, releases: releases}
}

var _ resolve.Resolver = (*Registry)(nil)

// Resolve implements [resolve.Resolver].
func (r *Registry) Resolve(ctx context.Context, requirements []*deps.Dependency, allowPrereleases bool) ([]resolve.Candidate, error) {
	c := &crawler{
		r:           r,
		prereleases: allowPrereleases,
		constraints: make(map[string][]string),
		pins:        make(map[string]string),
		queued:      make(map[string]bool),
	}

	var (
		frontier   []string
		candidates []resolve.Candidate
	)
	for _, d := range requirements {
		name := d.CanonicalName()
		if vcs, ok := d.Constraint.(deps.VCS); ok {
			ref := vcs
			candidates = append(candidates, resolve.Candidate{Name: name, VCS: &ref})
			c.queued[name] = true
			continue
		}
		c.constrain(name, d.NormalizedConstraint())
		if !c.queued[name] {
			c.queued[name] = true
			frontier = append(frontier, name)
		}
	}

	if err := c.run(ctx, frontier); err != nil {
		return nil, err
	}
	if err := c.verify(); err != nil {
		return nil, err
	}

	for _, name := range slices.Sorted(maps.Keys(c.pins)) {
		candidates = append(candidates, resolve.Candidate{Name: name, Version: c.pins[name]})
	}
	r.opts.Logger.Debug("registry resolved", "candidates", len(candidates))
	return candidates, nil
}

// ReverseDependencies implements [resolve.Resolver]. Only edges between
// the given candidates are reported.
func (r *Registry) ReverseDependencies(ctx context.Context, candidates []resolve.Candidate) (map[string][]string, error) {
	present := make(map[string]bool, len(candidates))
	reverse := make(map[string][]string, len(candidates))
	for _, c := range candidates {
		name := deps.Canonicalize(c.Name)
		present[name] = true
		reverse[name] = nil
	}

	for _, c := range candidates {
		if c.Editable() {
			continue
		}
		parent := deps.Canonicalize(c.Name)
		rel, err := r.release(ctx, parent, c.Version)
		if err != nil {
			return nil, err
		}
		for _, req := range rel.Requirements {
			child := deps.Canonicalize(req.Name)
			if present[child] && child != parent && !slices.Contains(reverse[child], parent) {
				reverse[child] = append(reverse[child], parent)
			}
		}
	}
	for name := range reverse {
		slices.Sort(reverse[name])
	}
	return reverse, nil
}

// ResolveHashes implements [resolve.Resolver]. Releases without any
// published digest are left out of the result.
func (r *Registry) ResolveHashes(ctx context.Context, pinned []resolve.Candidate) (map[string][]string, error) {
	hashes := make(map[string][]string, len(pinned))
	for _, c := range pinned {
		rel, err := r.release(ctx, deps.Canonicalize(c.Name), c.Version)
		if err != nil {
			return nil, err
		}
		if len(rel.Digests) > 0 {
			hashes[c.Specifier()] = slices.Clone(rel.Digests)
		}
	}
	return hashes, nil
}

func (r *Registry) release(ctx context.Context, name, version string) (*pypi.Release, error) {
	key := name + "@" + version
	if rel, ok := r.releases.Get(key); ok {
		return rel, nil
	}
	rel, err := r.index.FetchRelease(ctx, name, version, r.opts.Refresh)
	if err != nil {
		return nil, indexError(name, err)
	}
	r.releases.Add(key, rel)
	return rel, nil
}

func indexError(name string, err error) error {
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	case stderrors.Is(err, integrations.ErrNotFound):
		return errors.Wrap(errors.ErrCodeNotFound, err, "Package [%s] was not found in the index", name)
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, "Could not fetch [%s] from the index", name)
	}
}

// crawler holds the state of one Resolve call. Its maps are owned by the
// goroutine calling run; workers only see the ranges handed to them.
type crawler struct {
	r           *Registry
	prereleases bool

	constraints map[string][]string // Accumulated constraint expressions per package
	pins        map[string]string   // Selected version per package
	queued      map[string]bool
}

type pick struct {
	name    string
	version string
	release *pypi.Release
}

func (c *crawler) constrain(name, expr string) {
	if expr == "" || expr == constraint.Any {
		return
	}
	if !slices.Contains(c.constraints[name], expr) {
		c.constraints[name] = append(c.constraints[name], expr)
	}
}

func (c *crawler) run(ctx context.Context, frontier []string) error {
	for len(frontier) > 0 {
		picks := make([]pick, len(frontier))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.r.opts.Workers)
		for i, name := range frontier {
			ranges := c.ranges(name)
			g.Go(func() error {
				p, err := c.pick(gctx, name, ranges)
				if err != nil {
					return err
				}
				picks[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var next []string
		for _, p := range picks {
			c.pins[p.name] = p.version
			for _, req := range p.release.Requirements {
				child := deps.Canonicalize(req.Name)
				c.constrain(child, req.Constraint)
				if !c.queued[child] {
					c.queued[child] = true
					next = append(next, child)
				}
			}
		}
		slices.Sort(next)
		frontier = next
	}
	return nil
}

// ranges compiles the constraints known for name. Expressions from package
// metadata that cannot be parsed are ignored.
func (c *crawler) ranges(name string) []*constraint.Range {
	var out []*constraint.Range
	for _, expr := range c.constraints[name] {
		rng, err := constraint.ParseRange(expr)
		if err != nil {
			c.r.opts.Logger.Warn("ignoring constraint", "package", name, "constraint", expr, "err", errors.UserMessage(err))
			continue
		}
		out = append(out, rng)
	}
	return out
}

func (c *crawler) pick(ctx context.Context, name string, ranges []*constraint.Range) (pick, error) {
	project, err := c.r.index.FetchProject(ctx, name, c.r.opts.Refresh)
	if err != nil {
		return pick{}, indexError(name, err)
	}

	version, ok := Highest(project.Versions, ranges, c.prereleases)
	if !ok {
		return pick{}, errors.New(errors.ErrCodeResolutionInconsistency,
			"Could not find a version of [%s] that satisfies %s", name, describe(ranges))
	}

	rel, err := c.r.release(ctx, name, version)
	if err != nil {
		return pick{}, err
	}
	c.r.opts.Logger.Debug("pinned", "package", name, "version", version)
	return pick{name: name, version: version, release: rel}, nil
}

// verify checks every pin against constraints discovered after it was
// selected.
func (c *crawler) verify() error {
	for _, name := range slices.Sorted(maps.Keys(c.pins)) {
		v, err := constraint.Coerce(c.pins[name])
		if err != nil {
			continue
		}
		ranges := c.ranges(name)
		if !allows(ranges, v, c.prereleases) {
			return errors.New(errors.ErrCodeResolutionInconsistency,
				"Could not find a version of [%s] that satisfies %s (pinned %s)", name, describe(ranges), c.pins[name])
		}
	}
	return nil
}

// Highest returns the highest of versions allowed by every range.
// Versions that cannot be interpreted are skipped.
func Highest(versions []string, ranges []*constraint.Range, prereleases bool) (string, bool) {
	var (
		best    string
		bestVer *semver.Version
	)
	for _, raw := range versions {
		v, err := constraint.Coerce(raw)
		if err != nil || !allows(ranges, v, prereleases) {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = raw, v
			continue
		}
		if !v.Equal(bestVer) {
			continue
		}
		// Segments past the third are lost in coercion.
		if c := constraint.CompareRelease(raw, best); c > 0 || (c == 0 && len(raw) > len(best)) {
			best, bestVer = raw, v
		}
	}
	return best, bestVer != nil
}

func allows(ranges []*constraint.Range, v *semver.Version, prereleases bool) bool {
	if len(ranges) == 0 {
		return prereleases || v.Prerelease() == ""
	}
	for _, rng := range ranges {
		if !rng.Allows(v, prereleases) {
			return false
		}
	}
	return true
}

func describe(ranges []*constraint.Range) string {
	if len(ranges) == 0 {
		return "[*]"
	}
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
