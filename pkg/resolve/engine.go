package resolve

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stanza/pkg/constraint"
	"github.com/matzehuels/stanza/pkg/dag"
	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/observability"
	"github.com/matzehuels/stanza/pkg/vcs"
)

// Unsafe lists packages that are never reported as installable because the
// installer itself depends on them.
var Unsafe = []string{"setuptools"}

// Resolution is the outcome of [Engine.Resolve].
type Resolution struct {
	Packages []deps.Package // Sorted by name, case-insensitively
	Graph    *dag.DAG       // Dependent -> requirement edges between candidates
}

// Engine post-processes resolver output into pinned packages.
type Engine struct {
	Resolver Resolver
	Fetcher  vcs.Fetcher
	Logger   *log.Logger
}

// New creates an engine. A nil logger discards.
func New(resolver Resolver, fetcher vcs.Fetcher, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{Resolver: resolver, Fetcher: fetcher, Logger: logger}
}

// Resolve pins declared and their transitive dependencies. Resolver errors
// are returned unchanged.
func (e *Engine) Resolve(ctx context.Context, declared []*deps.Dependency) (res *Resolution, err error) {
	start := time.Now()
	observability.Resolve().OnResolveStart(ctx, len(declared))
	defer func() {
		n := 0
		if res != nil {
			n = len(res.Packages)
		}
		observability.Resolve().OnResolveComplete(ctx, n, time.Since(start), err)
	}()

	prereleases := false
	for _, d := range declared {
		if d.AcceptsPrereleases() {
			prereleases = true
			break
		}
	}

	candidates, err := e.Resolver.Resolve(ctx, declared, prereleases)
	if err != nil {
		return nil, err
	}

	reverse, err := e.Resolver.ReverseDependencies(ctx, candidates)
	if err != nil {
		return nil, err
	}

	var pinned []Candidate
	for _, c := range candidates {
		if !c.Editable() {
			pinned = append(pinned, c)
		}
	}
	hashes, err := e.Resolver.ResolveHashes(ctx, pinned)
	if err != nil {
		return nil, err
	}

	g := buildGraph(candidates, reverse)
	w := newWalker(g, declared)
	unsafe := deps.CanonicalSet(Unsafe)

	packages := make([]deps.Package, 0, len(candidates))
	for _, c := range candidates {
		name := deps.Canonicalize(c.Name)
		if unsafe[name] {
			continue
		}

		pkg := deps.Package{Name: name}
		if c.Editable() {
			if e.Fetcher == nil {
				return nil, errors.New(errors.ErrCodeInternal, "no VCS fetcher configured for [%s]", name)
			}
			pin, err := e.Fetcher.Fetch(ctx, name, *c.VCS)
			if err != nil {
				return nil, err
			}
			pkg.Pin = pin
			pkg.Checksum = []string{"sha1:" + pin.Rev}
		} else {
			sums, ok := hashes[c.Specifier()]
			if !ok {
				return nil, errors.New(errors.ErrCodeResolutionInconsistency,
					"No checksum found for [%s] (%s)", name, c.Version)
			}
			pkg.Pin = deps.Registry{Version: c.Version}
			pkg.Checksum = slices.Sorted(slices.Values(sums))
		}

		pkg.Category, pkg.Optional = w.category(name)
		pkg.Python = w.python(name)
		if n, ok := g.Node(name); ok {
			n.Meta["category"] = string(pkg.Category)
			n.Meta["optional"] = pkg.Optional
		}
		packages = append(packages, pkg)
	}

	deps.SortPackages(packages)
	e.Logger.Debug("resolved", "packages", len(packages), "prereleases", prereleases, "duration", time.Since(start))
	return &Resolution{Packages: packages, Graph: g}, nil
}

func buildGraph(candidates []Candidate, reverse map[string][]string) *dag.DAG {
	g := dag.New()
	for _, c := range candidates {
		n := g.EnsureNode(deps.Canonicalize(c.Name))
		if c.Editable() {
			n.Meta["vcs"] = c.VCS.Pretty()
		} else {
			n.Meta["version"] = c.Version
		}
	}
	for child, parents := range reverse {
		child = deps.Canonicalize(child)
		g.EnsureNode(child)
		for _, parent := range parents {
			parent = deps.Canonicalize(parent)
			g.EnsureNode(parent)
			_ = g.AddEdge(dag.Edge{From: parent, To: child})
		}
	}
	return g
}

// walker infers inherited attributes by walking parents upward from a
// package until declared dependencies are reached.
type walker struct {
	g        *dag.DAG
	declared map[string]*deps.Dependency
	pythons  map[string][]string
}

func newWalker(g *dag.DAG, declared []*deps.Dependency) *walker {
	w := &walker{g: g, declared: make(map[string]*deps.Dependency), pythons: make(map[string][]string)}
	for _, d := range declared {
		if _, ok := w.declared[d.CanonicalName()]; !ok {
			w.declared[d.CanonicalName()] = d
		}
	}
	return w
}

// category returns main if any declared ancestor is main and dev if only
// dev ancestors are found. Optionality comes from the first declared
// ancestor reached. Packages without declared ancestors are main and not
// optional.
func (w *walker) category(name string) (deps.Category, bool) {
	if d, ok := w.declared[name]; ok {
		return d.Category, d.Optional
	}

	var (
		found, main, optional bool
		visited               = map[string]bool{name: true}
		visit                 func(string)
	)
	visit = func(child string) {
		for _, parent := range w.g.Parents(child) {
			if visited[parent] {
				continue
			}
			visited[parent] = true
			if d, ok := w.declared[parent]; ok {
				if !found {
					found, optional = true, d.Optional
				}
				if d.Category == deps.Main {
					main = true
				}
				continue
			}
			visit(parent)
		}
	}
	visit(name)

	switch {
	case !found:
		return deps.Main, false
	case main:
		return deps.Main, optional
	default:
		return deps.Dev, optional
	}
}

// python returns the interpreter ranges a package applies to: its own
// declaration, or the union of its parents'. An unrestricted parent
// makes the package unrestricted.
func (w *walker) python(name string) []string {
	ranges, _ := w.pythonFor(name, map[string]bool{})
	if len(ranges) == 0 {
		return []string{constraint.Any}
	}
	return ranges
}

// pythonFor reports partial when a cycle cut the walk short. Partial
// results are not memoized and contribute nothing when empty.
func (w *walker) pythonFor(name string, visiting map[string]bool) (ranges []string, partial bool) {
	if cached, ok := w.pythons[name]; ok {
		return cached, false
	}

	if d, ok := w.declared[name]; ok {
		ranges = slices.Clone(d.Python)
	} else if parents := w.g.Parents(name); len(parents) > 0 {
		visiting[name] = true
		for _, parent := range parents {
			if visiting[parent] {
				partial = true
				continue
			}
			inherited, p := w.pythonFor(parent, visiting)
			partial = partial || p
			for _, r := range inherited {
				if !slices.Contains(ranges, r) {
					ranges = append(ranges, r)
				}
			}
		}
		delete(visiting, name)
	}

	switch {
	case len(ranges) == 0 && partial:
		return nil, true
	case len(ranges) == 0 || slices.Contains(ranges, constraint.Any):
		ranges = []string{constraint.Any}
	}
	if !partial {
		w.pythons[name] = ranges
	}
	return ranges, partial
}
