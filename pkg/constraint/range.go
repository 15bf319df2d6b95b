package constraint

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/stanza/pkg/errors"
)

// Range is a compiled constraint expression.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3 that accepts
// the canonical expressions produced by [Normalize] as well as PEP 440
// specifiers found in package metadata (~=, ===, ==1.2.*).
type Range struct {
	raw string
	c   *semver.Constraints
}

// ParseRange compiles a constraint expression. The unrestricted range ("*"
// or empty) allows every version.
func ParseRange(raw string) (*Range, error) {
	terms, err := Terms(raw)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return &Range{raw: Any}, nil
	}

	clauses := make([]string, 0, len(terms))
	for _, t := range terms {
		clauses = append(clauses, toSemver(t)...)
	}

	expr := strings.Join(clauses, ", ")
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConstraint, err, "The constraint [%s] is invalid", raw)
	}
	return &Range{raw: raw, c: c}, nil
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(raw string) *Range {
	r, err := ParseRange(raw)
	if err != nil {
		panic(err)
	}
	return r
}

func toSemver(t Term) []string {
	v := t.parsed
	switch t.Op {
	case "^":
		return []string{">=" + v.semver(), "<" + caretUpper(v)}
	case "~":
		return []string{">=" + v.semver(), "<" + tildeUpper(v)}
	case "~=":
		// Compatible release drops the last written segment.
		lower := v.semver()
		var upper string
		if v.given <= 2 {
			upper = fmt.Sprintf("%d.0.0", v.major()+1)
		} else {
			upper = fmt.Sprintf("%d.%d.0", v.major(), v.minor()+1)
		}
		return []string{">=" + lower, "<" + upper}
	case "===":
		return []string{"=" + v.semver()}
	case "==", "!=":
		op := "="
		if t.Op == "!=" {
			op = "!="
		}
		if v.wildcard {
			return []string{op + wildcard(v)}
		}
		return []string{op + v.semver()}
	default:
		return []string{t.Op + v.semver()}
	}
}

func wildcard(v *version) string {
	switch v.given {
	case 1:
		return fmt.Sprintf("%d.x", v.major())
	default:
		return fmt.Sprintf("%d.%d.x", v.major(), v.minor())
	}
}

// String returns the expression the range was parsed from.
func (r *Range) String() string { return r.raw }

// IsAny reports whether the range is unrestricted.
func (r *Range) IsAny() bool { return r.c == nil }

// Allows reports whether v satisfies the range. Prerelease versions only
// match when includePrereleases is set or the expression itself names a
// prerelease.
func (r *Range) Allows(v *semver.Version, includePrereleases bool) bool {
	if v == nil {
		return false
	}
	if r.c == nil {
		return includePrereleases || v.Prerelease() == ""
	}
	c := *r.c
	c.IncludePrerelease = includePrereleases
	return c.Check(v)
}

// Coerce parses a loosely formatted version into a semantic version.
// Missing minor and patch segments default to zero and segments beyond the
// third are dropped.
func Coerce(raw string) (*semver.Version, error) {
	pv, ok := parseVersion(raw)
	if !ok || pv.wildcard {
		return nil, errors.New(errors.ErrCodeInvalidConstraint, "invalid version %q", raw)
	}
	v, err := semver.NewVersion(pv.semver())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConstraint, err, "invalid version %q", raw)
	}
	return v, nil
}

// MatchesAny reports whether version satisfies at least one of ranges.
// The unrestricted range matches every version. Ranges that cannot be
// parsed are reported as an error.
func MatchesAny(version string, ranges []string) (bool, error) {
	v, err := Coerce(version)
	if err != nil {
		return false, err
	}
	for _, raw := range ranges {
		r, err := ParseRange(raw)
		if err != nil {
			return false, err
		}
		if r.Allows(v, true) {
			return true, nil
		}
	}
	return false, nil
}

// IsRestricted reports whether ranges narrows the applicable versions at all.
func IsRestricted(ranges []string) bool {
	if len(ranges) == 0 {
		return false
	}
	for _, r := range ranges {
		if strings.TrimSpace(r) == Any || strings.TrimSpace(r) == "" {
			return false
		}
	}
	return true
}
