package installer

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stanza/pkg/constraint"
	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/lock"
	"github.com/matzehuels/stanza/pkg/resolve"
)

// Project is the dependency-bearing view shared by manifests and
// lock-backed projects.
type Project interface {
	Name() string
	Version() string
	LockFile() string
	IsLock() bool
	Dependencies(dev bool) []*deps.Dependency
	Features() map[string][]string
}

// Resolver pins declared dependencies. *resolve.Engine implements it.
type Resolver interface {
	Resolve(ctx context.Context, declared []*deps.Dependency) (*resolve.Resolution, error)
}

// Pip runs single-package installer operations.
type Pip interface {
	Install(ctx context.Context, spec string, upgrade bool) error
	Uninstall(ctx context.Context, spec string) error
}

// Interpreter reports the version of the target Python.
type Interpreter interface {
	Version(ctx context.Context) (string, error)
}

// Installer locks, installs and updates the dependencies of a project.
type Installer struct {
	Project  Project
	Resolver Resolver
	Pip      Pip
	Python   Interpreter

	Out     io.Writer   // Progress lines, discarded if nil
	Logger  *log.Logger // Nil discards
	Verbose bool        // Report skipped packages
	Jobs    int         // Concurrent installer operations, 1 if zero

	// Spin, when set, shows an activity indicator with msg until the
	// returned function is called.
	Spin func(msg string) (stop func())

	python     string
	pythonErr  error
	pythonOnce sync.Once
	outMu      sync.Mutex
}

// New creates an installer.
func New(project Project, resolver Resolver, pip Pip, python Interpreter) *Installer {
	return &Installer{Project: project, Resolver: resolver, Pip: pip, Python: python}
}

func (i *Installer) logger() *log.Logger {
	if i.Logger == nil {
		return log.New(io.Discard)
	}
	return i.Logger
}

func (i *Installer) line(format string, args ...any) {
	if i.Out == nil {
		return
	}
	i.outMu.Lock()
	defer i.outMu.Unlock()
	fmt.Fprintf(i.Out, format+"\n", args...)
}

func (i *Installer) spin(msg string) func() {
	if i.Spin == nil {
		i.line(" - %s", msg)
		return func() {}
	}
	return i.Spin(msg)
}

// Lock resolves the project's dependencies, optional ones included, and
// writes the lock document. It does nothing for lock-backed projects.
func (i *Installer) Lock(ctx context.Context, dev bool) error {
	if i.Project.IsLock() {
		return nil
	}
	if err := deps.CheckFeatureReferences(i.Project.Features(), i.Project.Dependencies(true)); err != nil {
		return err
	}
	i.line("")
	i.line("Locking dependencies to %s", lock.FileName)
	i.line("")

	res, err := i.resolve(ctx, i.Project.Dependencies(dev))
	if err != nil {
		return err
	}
	return i.writeLock(res.Packages)
}

// Install installs the locked packages. Without a lock document the
// project is locked first. Optional packages are installed only when one
// of features activates them.
func (i *Installer) Install(ctx context.Context, features []string, dev bool) error {
	if !lock.Exists(i.Project.LockFile()) {
		if err := checkFeatures(features, i.Project.Features()); err != nil {
			return err
		}
		if err := i.Lock(ctx, dev); err != nil {
			return err
		}
		if !lock.Exists(i.Project.LockFile()) {
			return errors.New(errors.ErrCodeInternal, "No lock file found at %s", i.Project.LockFile())
		}
		return i.Install(ctx, features, dev)
	}

	doc, err := lock.Read(i.Project.LockFile())
	if err != nil {
		return err
	}
	if err := checkFeatures(features, doc.Features); err != nil {
		return err
	}

	i.line("")
	i.line("Installing dependencies")
	i.line("")

	keep := i.installable(ctx, featured(features, doc.Features))
	var ops []operation
	for _, p := range scoped(doc, dev) {
		ok, err := keep(p)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ops = append(ops, i.installOp(p))
	}
	return i.run(ctx, ops)
}

func (i *Installer) installOp(p deps.Package) operation {
	spec := p.Specifier()
	upgrade := p.IsVCS()
	return operation{
		job:     "install",
		name:    p.Name,
		message: fmt.Sprintf(" - Installing %s (%s)", p.Name, p.Display()),
		failure: fmt.Sprintf("Error while installing [%s]", p.Name),
		run:     func(ctx context.Context) error { return i.Pip.Install(ctx, spec, upgrade) },
	}
}

// Requirements returns requirements.txt lines for the locked packages,
// resolving the manifest when no lock document exists.
func (i *Installer) Requirements(ctx context.Context, dev bool) ([]string, error) {
	var pkgs []deps.Package
	if lock.Exists(i.Project.LockFile()) {
		doc, err := lock.Read(i.Project.LockFile())
		if err != nil {
			return nil, err
		}
		pkgs = scoped(doc, dev)
	} else {
		res, err := i.resolve(ctx, i.Project.Dependencies(dev))
		if err != nil {
			return nil, err
		}
		pkgs = res.Packages
	}

	lines := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		lines = append(lines, RequirementLine(p))
	}
	return lines, nil
}

// RequirementLine renders one requirements.txt entry: "name==version"
// for registry pins, "-e git+<repo>@<rev>#egg=<name>" for VCS pins.
func RequirementLine(p deps.Package) string {
	if vcs, ok := p.Pin.(deps.VCS); ok {
		return "-e " + vcs.Specifier(p.Name)
	}
	return p.Name + "==" + p.Version()
}

func (i *Installer) resolve(ctx context.Context, declared []*deps.Dependency) (*resolve.Resolution, error) {
	stop := i.spin("Resolving dependencies")
	defer stop()
	return i.Resolver.Resolve(ctx, declared)
}

// writeLock writes packages and the project's feature map, with feature
// and package names canonicalized. Feature members that are not among
// pkgs, such as dev packages of a lock without dev dependencies or
// packages on the unsafe list, are left out.
func (i *Installer) writeLock(pkgs []deps.Package) error {
	locked := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		locked[deps.Canonicalize(p.Name)] = true
	}

	features := make(map[string][]string)
	for name, members := range i.Project.Features() {
		canonical := make([]string, 0, len(members))
		for _, m := range members {
			if !locked[deps.Canonicalize(m)] {
				i.logger().Debug("feature member not locked", "feature", name, "package", m)
				continue
			}
			canonical = append(canonical, deps.Canonicalize(m))
		}
		features[deps.Canonicalize(name)] = canonical
	}

	doc := &lock.Document{
		Root:     lock.Root{Name: i.Project.Name(), Version: i.Project.Version()},
		Packages: pkgs,
		Features: features,
	}
	if err := lock.Write(i.Project.LockFile(), doc); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "Unable to write %s", i.Project.LockFile())
	}
	i.logger().Debug("lock written", "path", i.Project.LockFile(), "packages", len(pkgs))
	return nil
}

// installable returns the filter deciding whether a locked package is
// installed: optional packages must be featured and interpreter-restricted
// packages must match the running interpreter.
func (i *Installer) installable(ctx context.Context, featured map[string]bool) func(deps.Package) (bool, error) {
	return func(p deps.Package) (bool, error) {
		if p.Optional && !featured[deps.Canonicalize(p.Name)] {
			return false, nil
		}
		if !p.IsPythonRestricted() {
			return true, nil
		}
		version, err := i.pythonVersion(ctx)
		if err != nil {
			return false, err
		}
		ok, err := constraint.MatchesAny(version, p.Python)
		if err != nil {
			return false, err
		}
		if !ok {
			msg := fmt.Sprintf(" - Skipping %s (Specifies Python %s and current Python is %s)", p.Name, strings.Join(p.Python, ","), version)
			if i.Verbose {
				i.line("%s", msg)
			}
			i.logger().Debug("skipping package", "package", p.Name, "python", p.Python, "current", version)
		}
		return ok, nil
	}
}

func (i *Installer) pythonVersion(ctx context.Context) (string, error) {
	i.pythonOnce.Do(func() {
		if i.Python == nil {
			i.pythonErr = errors.New(errors.ErrCodeInternal, "no Python interpreter configured")
			return
		}
		i.python, i.pythonErr = i.Python.Version(ctx)
	})
	return i.python, i.pythonErr
}

// checkFeatures fails with UnknownFeature for the first requested feature
// missing from available. Names are compared canonically.
func checkFeatures(requested []string, available map[string][]string) error {
	known := deps.CanonicalSet(slices.Collect(maps.Keys(available)))
	for _, f := range requested {
		if !known[deps.Canonicalize(f)] {
			return errors.New(errors.ErrCodeUnknownFeature, "Feature [%s] does not exist", f)
		}
	}
	return nil
}

// featured returns the canonical names of packages activated by the
// requested features.
func featured(requested []string, available map[string][]string) map[string]bool {
	want := deps.CanonicalSet(requested)
	out := make(map[string]bool)
	for name, members := range available {
		if !want[deps.Canonicalize(name)] {
			continue
		}
		for _, m := range members {
			out[deps.Canonicalize(m)] = true
		}
	}
	return out
}

// scoped returns the main packages of doc, followed by dev packages when
// dev is set.
func scoped(doc *lock.Document, dev bool) []deps.Package {
	out := doc.Category(deps.Main)
	if dev {
		out = append(out, doc.Category(deps.Dev)...)
	}
	return out
}
