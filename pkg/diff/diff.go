// Package diff computes the installer actions that move an installed
// package set to a newly resolved one.
//
// The order of the returned actions is significant. New-set entries come
// first in new-set order, followed by removals in current-set order.
// Installer calls are issued in that order and progress output follows it.
package diff

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stanza/pkg/deps"
)

// Action is the kind of transition applied to one package.
type Action string

const (
	Install Action = "install"
	Update  Action = "update"
	Remove  Action = "remove"
)

// Progressive returns the verb used in progress lines, e.g. "Updating".
func (a Action) Progressive() string {
	switch a {
	case Update:
		return "Updating"
	case Remove:
		return "Removing"
	default:
		return "Installing"
	}
}

// Past returns the verb used once the action finished, e.g. "Updated".
func (a Action) Past() string {
	return strings.Replace(a.Progressive(), "ing", "ed", 1)
}

// Op is one transition. From is set only for updates.
type Op struct {
	Action Action
	From   *deps.Package
	To     deps.Package
}

func (o Op) String() string {
	if o.From != nil {
		return fmt.Sprintf("%s %s (%s -> %s)", o.Action, o.To.Name, o.From.Display(), o.To.Display())
	}
	return fmt.Sprintf("%s %s (%s)", o.Action, o.To.Name, o.To.Display())
}

// Compute diffs next against current. Packages are matched by canonical
// name and compared by pin identity. When remove is set, current entries
// missing from next produce Remove ops.
func Compute(next, current []deps.Package, remove bool) []Op {
	byName := make(map[string]int, len(current))
	for i, p := range current {
		name := deps.Canonicalize(p.Name)
		if _, ok := byName[name]; !ok {
			byName[name] = i
		}
	}

	ops := make([]Op, 0, len(next))
	seen := make(map[string]bool, len(next))
	for _, p := range next {
		name := deps.Canonicalize(p.Name)
		seen[name] = true

		i, ok := byName[name]
		switch {
		case !ok:
			ops = append(ops, Op{Action: Install, To: p})
		case current[i].Identity() != p.Identity():
			from := current[i]
			ops = append(ops, Op{Action: Update, From: &from, To: p})
		}
	}

	if remove {
		for _, p := range current {
			if !seen[deps.Canonicalize(p.Name)] {
				ops = append(ops, Op{Action: Remove, To: p})
			}
		}
	}
	return ops
}

// Scope keeps only ops whose target is one of names. Order is preserved.
func Scope(ops []Op, names []string) []Op {
	keep := deps.CanonicalSet(names)
	var out []Op
	for _, op := range ops {
		if keep[deps.Canonicalize(op.To.Name)] {
			out = append(out, op)
		}
	}
	return out
}

// Counts tallies ops per action.
type Counts struct {
	Updates, Installs, Removals int
}

// Count tallies ops.
func Count(ops []Op) Counts {
	var c Counts
	for _, op := range ops {
		switch op.Action {
		case Install:
			c.Installs++
		case Update:
			c.Updates++
		case Remove:
			c.Removals++
		}
	}
	return c
}

// String renders the summary, e.g. "2 updates, 1 installation". Zero
// counts are omitted.
func (c Counts) String() string {
	var parts []string
	for _, part := range []struct {
		n    int
		noun string
	}{
		{c.Updates, "update"},
		{c.Installs, "installation"},
		{c.Removals, "uninstallation"},
	} {
		switch {
		case part.n == 1:
			parts = append(parts, "1 "+part.noun)
		case part.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", part.n, part.noun))
		}
	}
	return strings.Join(parts, ", ")
}
