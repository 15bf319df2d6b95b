package installer

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/diff"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/lock"
)

// Update re-resolves the manifest and applies the difference to the
// installed packages before rewriting the lock document.
//
// With packages, only those packages are updated and their new pins are
// merged into the existing lock. With features, optional packages of those
// features are installed as well. Removals happen only for a full update
// without packages or features.
func (i *Installer) Update(ctx context.Context, packages, features []string, dev bool) error {
	if i.Project.IsLock() {
		return errors.New(errors.ErrCodeUpdateNotAllowed, "Update is only available with a poetry.toml file.")
	}
	if err := CheckUpdateRequest(packages, features); err != nil {
		return err
	}
	if err := checkFeatures(features, i.Project.Features()); err != nil {
		return err
	}
	if err := deps.CheckFeatureReferences(i.Project.Features(), i.Project.Dependencies(true)); err != nil {
		return err
	}

	i.line("")
	i.line("Updating dependencies")
	i.line("")

	old := &lock.Document{}
	if lock.Exists(i.Project.LockFile()) {
		var err error
		if old, err = lock.Read(i.Project.LockFile()); err != nil {
			return err
		}
	}

	res, err := i.resolve(ctx, i.Project.Dependencies(dev))
	if err != nil {
		return err
	}

	keep := i.installable(ctx, featured(features, i.Project.Features()))
	next, err := filter(res.Packages, keep)
	if err != nil {
		return err
	}
	current, err := filter(scoped(old, dev), keep)
	if err != nil {
		return err
	}

	remove := len(packages) == 0 && len(features) == 0
	ops := diff.Compute(next, current, remove)
	if len(packages) > 0 {
		ops = diff.Scope(ops, packages)
	}

	if len(ops) == 0 {
		i.line(" - Dependencies already up-to-date!")
		return nil
	}
	i.line(" - Summary: %s", diff.Count(ops))

	run := make([]operation, 0, len(ops))
	for _, op := range ops {
		run = append(run, i.updateOp(op))
	}
	if err := i.run(ctx, run); err != nil {
		return err
	}

	return i.writeLock(merge(old.Packages, res.Packages, packages, dev))
}

// CheckUpdateRequest fails with MutuallyExclusiveRequest when both
// packages and features are given.
func CheckUpdateRequest(packages, features []string) error {
	if len(packages) > 0 && len(features) > 0 {
		return errors.New(errors.ErrCodeMutuallyExclusiveRequest, "Cannot specify packages and features when updating.")
	}
	return nil
}

func (i *Installer) updateOp(op diff.Op) operation {
	target := op.To
	version := target.Display()
	if op.From != nil {
		version = op.From.Display() + " -> " + version
	}

	o := operation{
		job:     string(op.Action),
		name:    target.Name,
		message: fmt.Sprintf(" - %s %s (%s)", op.Action.Progressive(), target.Name, version),
		failure: fmt.Sprintf("Error while %s [%s]", strings.ToLower(op.Action.Progressive()), target.Name),
	}
	switch op.Action {
	case diff.Remove:
		o.run = func(ctx context.Context) error { return i.Pip.Uninstall(ctx, target.Name) }
	case diff.Update:
		o.run = func(ctx context.Context) error { return i.Pip.Install(ctx, target.Specifier(), true) }
	default:
		o.run = func(ctx context.Context) error { return i.Pip.Install(ctx, target.Specifier(), target.IsVCS()) }
	}
	return o
}

func filter(pkgs []deps.Package, keep func(deps.Package) (bool, error)) ([]deps.Package, error) {
	var out []deps.Package
	for _, p := range pkgs {
		ok, err := keep(p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// merge computes the packages of the rewritten lock. A full update keeps
// the new resolution; old dev packages survive when dev packages were not
// resolved. A scoped update replaces only the named packages in the old
// lock.
func merge(old, resolved []deps.Package, scope []string, dev bool) []deps.Package {
	byName := make(map[string]int)
	var out []deps.Package

	add := func(p deps.Package) {
		name := deps.Canonicalize(p.Name)
		if idx, ok := byName[name]; ok {
			out[idx] = p
			return
		}
		byName[name] = len(out)
		out = append(out, p)
	}

	if len(scope) == 0 {
		for _, p := range resolved {
			add(p)
		}
		if !dev {
			for _, p := range old {
				if _, ok := byName[deps.Canonicalize(p.Name)]; !ok && p.Category == deps.Dev {
					add(p)
				}
			}
		}
	} else {
		wanted := deps.CanonicalSet(scope)
		for _, p := range old {
			add(p)
		}
		for _, p := range resolved {
			if wanted[deps.Canonicalize(p.Name)] {
				add(p)
			}
		}
	}

	deps.SortPackages(out)
	return out
}
