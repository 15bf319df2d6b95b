// Package constraint normalizes human-friendly version constraints into a
// canonical, comma-joined range expression and evaluates versions against
// them.
//
// Caret and tilde shorthands are expanded into explicit bounds:
//
//	^1.2.3  ->  >=1.2.3,<2.0.0
//	^0.0.3  ->  >=0.0.3,<0.0.4
//	~1.2    ->  >=1.2.0,<1.3.0
//
// All other operators pass through unchanged. Version strings follow PEP 440
// loosely (1.2, 1.2.3b1, 2.0rc1, 1.0.post2); [Coerce] maps them onto semantic
// versions so they can be compared with github.com/Masterminds/semver/v3.
package constraint

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/stanza/pkg/errors"
)

// Stability classes returned by [Stability].
const (
	Stable = "stable"
	Dev    = "dev"
)

// Any is the unrestricted range.
const Any = "*"

var (
	termRE = regexp.MustCompile(`^(\^|~=|~|===|==|!=|>=|<=|>|<|=)?\s*(\S+)$`)

	versionRE = regexp.MustCompile(`(?i)^v?(\d+(?:\.\d+)*)(\.\*)?` +
		`(?:[-_.]?(a|b|c|rc|alpha|beta|pre|preview)[-_.]?(\d*))?` +
		`(?:[-_.]?(post|rev|r)[-_.]?(\d*))?` +
		`(?:[-_.]?(dev)[-_.]?(\d*))?` +
		`(?:\+([a-z0-9.]+))?$`)
)

// Term is one clause of a constraint expression, e.g. ">=1.2.0".
type Term struct {
	Op      string // Operator; empty only for the unrestricted range
	Version string // Version text as written
	parsed  *version
}

func (t Term) String() string { return t.Op + t.Version }

// version is the decomposed form of a PEP 440 style version string.
type version struct {
	release  []int  // numeric release segments
	given    int    // number of release segments written
	wildcard bool   // trailing .*
	pre      string // normalized prerelease tag, e.g. "b1", "dev0"
	post     string // post release number, if any
	local    string
}

func parseVersion(raw string) (*version, bool) {
	m := versionRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, false
	}
	v := &version{wildcard: m[2] != "", local: m[9]}
	for _, part := range strings.Split(m[1], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		v.release = append(v.release, n)
	}
	v.given = len(v.release)
	for len(v.release) < 3 {
		v.release = append(v.release, 0)
	}

	switch tag := strings.ToLower(m[3]); tag {
	case "":
	case "alpha":
		v.pre = "a" + zeroIfEmpty(m[4])
	case "beta":
		v.pre = "b" + zeroIfEmpty(m[4])
	case "c", "pre", "preview":
		v.pre = "rc" + zeroIfEmpty(m[4])
	default:
		v.pre = tag + zeroIfEmpty(m[4])
	}
	if m[5] != "" {
		v.post = zeroIfEmpty(m[6])
	}
	if m[7] != "" {
		dev := "dev" + zeroIfEmpty(m[8])
		if v.pre != "" {
			v.pre += "." + dev
		} else {
			v.pre = dev
		}
	}
	return v, true
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func (v *version) major() int { return v.release[0] }
func (v *version) minor() int { return v.release[1] }
func (v *version) patch() int { return v.release[2] }

// triple renders major.minor.patch followed by the prerelease tag as written
// in PEP 440 form (no separator), matching how manifests spell versions.
func (v *version) triple() string {
	return fmt.Sprintf("%d.%d.%d%s", v.major(), v.minor(), v.patch(), v.pre)
}

// semver renders the version in a form Masterminds/semver accepts.
func (v *version) semver() string {
	s := fmt.Sprintf("%d.%d.%d", v.major(), v.minor(), v.patch())
	if v.pre != "" {
		s += "-" + v.pre
	}
	var build []string
	if v.post != "" {
		build = append(build, "post"+v.post)
	}
	if v.local != "" {
		build = append(build, strings.ReplaceAll(v.local, "_", "."))
	}
	if len(build) > 0 {
		s += "+" + strings.Join(build, ".")
	}
	return s
}

// Terms splits a constraint expression into its clauses. Clauses are
// separated by commas; ", " is accepted as well.
func Terms(raw string) ([]Term, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == Any {
		return nil, nil
	}

	var terms []Term
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, invalid(raw, "empty clause")
		}
		m := termRE.FindStringSubmatch(part)
		if m == nil {
			return nil, invalid(raw, "cannot parse "+strconv.Quote(part))
		}
		v, ok := parseVersion(m[2])
		if !ok {
			return nil, invalid(raw, "invalid version "+strconv.Quote(m[2]))
		}
		op := m[1]
		switch op {
		case "", "=":
			op = "=="
		case "^", "~", "~=", ">=", "<=", ">", "<", "===":
			if v.wildcard {
				return nil, invalid(raw, "wildcard not allowed with "+op)
			}
		}
		terms = append(terms, Term{Op: op, Version: m[2], parsed: v})
	}
	return terms, nil
}

func invalid(raw, info string) error {
	return errors.New(errors.ErrCodeInvalidConstraint, "The constraint [%s] is invalid (%s)", raw, info)
}

// Normalize expands caret and tilde clauses of a constraint expression and
// joins all clauses with commas. Other clauses pass through in the order
// given. The unrestricted range ("*" or empty) normalizes to "".
func Normalize(raw string) (string, error) {
	terms, err := Terms(raw)
	if err != nil {
		return "", err
	}

	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		switch t.Op {
		case "^":
			normalized = append(normalized, caret(t.parsed))
		case "~":
			normalized = append(normalized, tilde(t.parsed))
		default:
			normalized = append(normalized, t.String())
		}
	}
	return strings.Join(normalized, ","), nil
}

// caretUpper bumps the first nonzero component from the left. When every
// given component is zero the last given component is bumped.
func caretUpper(v *version) string {
	switch {
	case v.major() != 0 || v.given < 2:
		return fmt.Sprintf("%d.0.0", v.major()+1)
	case v.minor() != 0 || v.given < 3:
		return fmt.Sprintf("%d.%d.0", v.major(), v.minor()+1)
	default:
		return fmt.Sprintf("%d.%d.%d", v.major(), v.minor(), v.patch()+1)
	}
}

// tildeUpper allows patch changes once a minor is given, minor changes
// otherwise.
func tildeUpper(v *version) string {
	if v.given < 2 {
		return fmt.Sprintf("%d.0.0", v.major()+1)
	}
	return fmt.Sprintf("%d.%d.0", v.major(), v.minor()+1)
}

func caret(v *version) string { return ">=" + v.triple() + ",<" + caretUpper(v) }
func tilde(v *version) string { return ">=" + v.triple() + ",<" + tildeUpper(v) }

// AcceptsPrereleases reports whether any clause of the expression names a
// prerelease version. Malformed expressions report false.
func AcceptsPrereleases(raw string) bool {
	terms, err := Terms(raw)
	if err != nil {
		return false
	}
	for _, t := range terms {
		if t.parsed.pre != "" {
			return true
		}
	}
	return false
}

// CompareRelease compares the full numeric release segments of two
// versions, padding the shorter one with zeros: "2017.7.27.2" is greater
// than "2017.7.27.1", which [Coerce] cannot tell apart. Versions that do
// not parse compare as equal.
func CompareRelease(a, b string) int {
	va, okA := parseVersion(a)
	vb, okB := parseVersion(b)
	if !okA || !okB {
		return 0
	}
	for i := 0; i < max(len(va.release), len(vb.release)); i++ {
		var x, y int
		if i < len(va.release) {
			x = va.release[i]
		}
		if i < len(vb.release) {
			y = vb.release[i]
		}
		if x != y {
			return cmp.Compare(x, y)
		}
	}
	return 0
}

// Stability classifies a version as [Stable] or [Dev]. A version carrying a
// prerelease or development tag is Dev.
func Stability(v string) string {
	if pv, ok := parseVersion(v); ok && pv.pre != "" {
		return Dev
	}
	return Stable
}
