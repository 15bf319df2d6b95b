package deps

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/stanza/pkg/constraint"
	"github.com/matzehuels/stanza/pkg/errors"
)

// Category tells whether a dependency is required at runtime or only for
// development.
type Category string

const (
	Main Category = "main"
	Dev  Category = "dev"
)

// ParseCategory validates a category string read from a lock document.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case Main, Dev:
		return Category(s), true
	}
	return "", false
}

// Constraint is the declared requirement of a [Dependency]. It is either a
// [Version] range or a [VCS] reference.
type Constraint interface {
	constraint()
}

// Version is a version range expression such as "^1.2" or ">=2.0,!=2.1".
type Version string

func (Version) constraint() {}

// VCS references a git repository at a branch, tag or revision.
type VCS struct {
	Git    string `toml:"git"`
	Branch string `toml:"branch,omitempty"`
	Tag    string `toml:"tag,omitempty"`
	Rev    string `toml:"rev,omitempty"`
}

func (VCS) constraint() {}
func (VCS) pin()        {}

// Ref returns the revision selector handed to the installer. Branch wins
// over tag, tag over rev.
func (v VCS) Ref() string {
	switch {
	case v.Branch != "":
		return v.Branch
	case v.Tag != "":
		return v.Tag
	default:
		return v.Rev
	}
}

// Pretty renders the reference for display: "rev X", "tag X" or
// "branch X". The branch defaults to master.
func (v VCS) Pretty() string {
	switch {
	case v.Rev != "":
		return "rev " + v.Rev
	case v.Tag != "":
		return "tag " + v.Tag
	case v.Branch != "":
		return "branch " + v.Branch
	default:
		return "branch master"
	}
}

// URL returns the repository URL with the git+ scheme prefix pip expects.
func (v VCS) URL() string {
	if strings.HasPrefix(v.Git, "git+") {
		return v.Git
	}
	return "git+" + v.Git
}

// Specifier returns the editable requirement for the named package.
func (v VCS) Specifier(name string) string {
	if ref := v.Ref(); ref != "" {
		return fmt.Sprintf("%s@%s#egg=%s", v.URL(), ref, name)
	}
	return fmt.Sprintf("%s#egg=%s", v.URL(), name)
}

// String implements [Pin].
func (v VCS) String() string { return v.Pretty() }

// Validate checks that the reference names a repository and one of branch,
// tag or rev.
func (v VCS) Validate() error {
	if v.Git == "" {
		return fmt.Errorf("missing git repository")
	}
	if v.Branch == "" && v.Tag == "" && v.Rev == "" {
		return fmt.Errorf("Git constraint should have one of [branch, rev, tag]")
	}
	return nil
}

// Dependency is one declared dependency. It is immutable after construction.
type Dependency struct {
	Name       string
	Constraint Constraint
	Category   Category
	Optional   bool
	Python     []string

	normalized string
}

// Option customizes a Dependency at construction.
type Option func(*Dependency)

// WithOptional marks the dependency as activated only through a feature.
func WithOptional(optional bool) Option {
	return func(d *Dependency) { d.Optional = optional }
}

// WithPython restricts the dependency to the given interpreter ranges.
func WithPython(ranges ...string) Option {
	return func(d *Dependency) {
		if len(ranges) > 0 {
			d.Python = slices.Clone(ranges)
		}
	}
}

// New builds a Dependency and derives its canonical constraint.
func New(name string, c Constraint, category Category, opts ...Option) (*Dependency, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}
	if category == "" {
		category = Main
	}
	d := &Dependency{
		Name:       name,
		Constraint: c,
		Category:   category,
		Python:     []string{constraint.Any},
	}
	for _, opt := range opts {
		opt(d)
	}

	switch c := c.(type) {
	case Version:
		normalized, err := constraint.Normalize(string(c))
		if err != nil {
			return nil, err
		}
		d.normalized = normalized
	case VCS:
		if err := c.Validate(); err != nil {
			return nil, errors.InvalidElement(d.element(), err.Error())
		}
	default:
		return nil, errors.InvalidElement(d.element(), "unsupported constraint")
	}
	return d, nil
}

// Parse builds a Dependency from a raw manifest value. The value is either a
// constraint string or a table with "version", "git", "branch", "tag",
// "rev", "optional" and "python" keys.
func Parse(name string, raw any, category Category) (*Dependency, error) {
	switch v := raw.(type) {
	case string:
		return New(name, Version(v), category)
	case map[string]any:
		return parseTable(name, v, category)
	default:
		d := &Dependency{Name: name, Category: category}
		return nil, errors.InvalidElement(d.element(), fmt.Sprintf("unsupported value of type %T", raw))
	}
}

func parseTable(name string, t map[string]any, category Category) (*Dependency, error) {
	probe := &Dependency{Name: name, Category: category}
	var opts []Option

	if raw, ok := t["optional"]; ok {
		optional, ok := raw.(bool)
		if !ok {
			return nil, errors.InvalidElement(probe.element(), "optional must be a boolean")
		}
		opts = append(opts, WithOptional(optional))
	}

	if raw, ok := t["python"]; ok {
		ranges, err := stringList(raw)
		if err != nil {
			return nil, errors.InvalidElement(probe.element(), "python "+err.Error())
		}
		opts = append(opts, WithPython(ranges...))
	}

	if _, ok := t["git"]; ok {
		vcs := VCS{}
		for key, dst := range map[string]*string{"git": &vcs.Git, "branch": &vcs.Branch, "tag": &vcs.Tag, "rev": &vcs.Rev} {
			if raw, ok := t[key]; ok {
				s, ok := raw.(string)
				if !ok {
					return nil, errors.InvalidElement(probe.element(), key+" must be a string")
				}
				*dst = s
			}
		}
		return New(name, vcs, category, opts...)
	}

	expr := constraint.Any
	if raw, ok := t["version"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, errors.InvalidElement(probe.element(), "version must be a string")
		}
		expr = s
	}
	return New(name, Version(expr), category, opts...)
}

func stringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a string or a list of strings")
	}
}

func (d *Dependency) element() string {
	if d.Category == Dev {
		return "dev-dependencies." + d.Name
	}
	return "dependencies." + d.Name
}

// CanonicalName returns the canonicalized package name.
func (d *Dependency) CanonicalName() string { return Canonicalize(d.Name) }

// IsVCS reports whether the dependency references a repository.
func (d *Dependency) IsVCS() bool {
	_, ok := d.Constraint.(VCS)
	return ok
}

// NormalizedConstraint returns the canonical range expression. It is empty
// for VCS dependencies and for the unrestricted range.
func (d *Dependency) NormalizedConstraint() string { return d.normalized }

// PrettyConstraint renders the constraint for display. Registry
// constraints drop the "==" operator.
func (d *Dependency) PrettyConstraint() string {
	switch c := d.Constraint.(type) {
	case VCS:
		return c.Pretty()
	case Version:
		return strings.ReplaceAll(string(c), "==", "")
	}
	return ""
}

// Specifier returns the installable requirement string, e.g.
// "pendulum>=1.2.0,<2.0.0" or "git+https://...@v1#egg=pendulum".
func (d *Dependency) Specifier() string {
	if vcs, ok := d.Constraint.(VCS); ok {
		return vcs.Specifier(d.Name)
	}
	return d.Name + d.normalized
}

// AcceptsPrereleases reports whether resolution must consider prerelease
// candidates for this dependency. VCS dependencies always do.
func (d *Dependency) AcceptsPrereleases() bool {
	switch c := d.Constraint.(type) {
	case VCS:
		return true
	case Version:
		return constraint.AcceptsPrereleases(string(c))
	}
	return false
}

// IsPythonRestricted reports whether the dependency only applies to some
// interpreter versions.
func (d *Dependency) IsPythonRestricted() bool { return constraint.IsRestricted(d.Python) }

// String returns the installable specifier.
func (d *Dependency) String() string { return d.Specifier() }

// CheckFeatureReferences fails with InvalidElement for the first feature
// member that names no declared dependency. Names are compared canonically
// and features are checked in sorted order.
func CheckFeatureReferences(features map[string][]string, declared []*Dependency) error {
	known := make(map[string]bool, len(declared))
	for _, d := range declared {
		known[d.CanonicalName()] = true
	}
	for _, name := range slices.Sorted(maps.Keys(features)) {
		for _, member := range features[name] {
			if !known[Canonicalize(member)] {
				return errors.InvalidElement("features."+name, fmt.Sprintf("package [%s] is not a declared dependency", member))
			}
		}
	}
	return nil
}
