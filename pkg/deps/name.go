package deps

import (
	"regexp"
	"strings"
)

var separatorRE = regexp.MustCompile(`[-_.]+`)

// Canonicalize converts a package name to its canonical form following
// PEP 503: lowercase, runs of "-", "_" and "." collapsed to a single "-".
func Canonicalize(name string) string {
	return separatorRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// CanonicalSet canonicalizes every name and returns them as a set.
func CanonicalSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[Canonicalize(n)] = true
	}
	return set
}

var pairRE = regexp.MustCompile(`^([^=:@ ]+)[=:@ ](.*)$`)

// NameVersion is a package name with an optional requested version.
type NameVersion struct {
	Name    string
	Version string
}

// ParseNameVersionPairs splits command-line package arguments of the form
// "name@version", "name=version", "name:version" or "name version". A bare
// name requests any version ("*").
func ParseNameVersionPairs(pairs []string) []NameVersion {
	result := make([]NameVersion, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if m := pairRE.FindStringSubmatch(pair); m != nil && strings.TrimSpace(m[2]) != "" {
			result = append(result, NameVersion{Name: m[1], Version: strings.TrimSpace(m[2])})
			continue
		}
		result = append(result, NameVersion{Name: strings.TrimRight(pair, "=:@ "), Version: "*"})
	}
	return result
}
