package deps

import (
	"slices"
	"strings"

	"github.com/matzehuels/stanza/pkg/constraint"
)

// Pin is the concrete, reproducible reference of a resolved package: a
// [Registry] version or a [VCS] revision.
type Pin interface {
	pin()
	String() string
}

// Registry pins a package to a released version.
type Registry struct {
	Version string
}

func (Registry) pin() {}

// String returns the version.
func (r Registry) String() string { return r.Version }

// Package is one resolved, pinned entry of a lock document.
type Package struct {
	Name     string   // Canonicalized name
	Pin      Pin      // Registry version or VCS revision
	Checksum []string // Integrity digests, "sha1:<rev>" for VCS pins
	Category Category
	Optional bool
	Python   []string // Applicable interpreter ranges, ["*"] when unrestricted
}

// IsVCS reports whether the package is pinned to a repository revision.
func (p Package) IsVCS() bool {
	_, ok := p.Pin.(VCS)
	return ok
}

// Version returns the registry version, or "" for VCS pins.
func (p Package) Version() string {
	if r, ok := p.Pin.(Registry); ok {
		return r.Version
	}
	return ""
}

// Identity returns the canonical constraint the package is pinned to. Two
// entries with the same name and identity need no transition.
func (p Package) Identity() string {
	switch pin := p.Pin.(type) {
	case Registry:
		return "==" + pin.Version
	case VCS:
		return pin.Specifier(p.Name)
	}
	return ""
}

// Specifier returns the installable requirement string.
func (p Package) Specifier() string {
	if vcs, ok := p.Pin.(VCS); ok {
		return vcs.Specifier(p.Name)
	}
	return p.Name + p.Identity()
}

// Display renders the pin for progress output: the bare version for
// registry pins, "rev X" for VCS pins.
func (p Package) Display() string {
	if p.Pin == nil {
		return ""
	}
	return p.Pin.String()
}

// Requirement re-expresses the package as an exact declared dependency.
func (p Package) Requirement() (*Dependency, error) {
	var c Constraint
	switch pin := p.Pin.(type) {
	case VCS:
		c = pin
	case Registry:
		c = Version("==" + pin.Version)
	}
	return New(p.Name, c, p.Category, WithOptional(p.Optional), WithPython(p.Python...))
}

// IsPythonRestricted reports whether the package only applies to some
// interpreter versions.
func (p Package) IsPythonRestricted() bool { return constraint.IsRestricted(p.Python) }

// SortPackages orders packages by name, case-insensitively.
func SortPackages(pkgs []Package) {
	slices.SortStableFunc(pkgs, func(a, b Package) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

// Filter returns the packages for which keep reports true.
func Filter(pkgs []Package, keep func(Package) bool) []Package {
	var out []Package
	for _, p := range pkgs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
