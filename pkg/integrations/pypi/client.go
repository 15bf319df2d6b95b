package pypi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/stanza/pkg/buildinfo"
	"github.com/matzehuels/stanza/pkg/cache"
	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/integrations"
)

// DefaultIndexURL is the PyPI JSON API root.
const DefaultIndexURL = "https://pypi.org/pypi"

var (
	requirementRE = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*\(?([^;()]*)\)?\s*(?:;\s*(.*))?$`)
	extraRE       = regexp.MustCompile(`\bextra\b`)
)

// Project lists the releases published for a package.
type Project struct {
	Name     string   `json:"name"`     // Name as published
	Versions []string `json:"versions"` // Releases with at least one non-yanked file
}

// Requirement is one entry of a release's requires_dist.
type Requirement struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"` // PEP 440 specifier, empty for any
	Marker     string `json:"marker,omitempty"`
}

// Release describes one published version of a package.
type Release struct {
	Name           string        `json:"name"`
	Version        string        `json:"version"`
	RequiresPython string        `json:"requires_python,omitempty"`
	Requirements   []Requirement `json:"requirements,omitempty"` // Runtime requirements, extras removed
	Digests        []string      `json:"digests,omitempty"`      // "sha256:<hex>" per distribution file, sorted
}

// Client provides access to the PyPI JSON API.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client. Responses are cached in backend for
// cacheTTL; a nil backend disables caching. An empty baseURL uses
// [DefaultIndexURL].
func NewClient(backend cache.Cache, baseURL string, cacheTTL time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultIndexURL
	}
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", cacheTTL, map[string]string{"User-Agent": buildinfo.UserAgent()}),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchProject retrieves the release list of a package.
//
// Returns [integrations.ErrNotFound] if the package doesn't exist.
func (c *Client) FetchProject(ctx context.Context, name string, refresh bool) (*Project, error) {
	name = deps.Canonicalize(name)

	var p Project
	err := c.Cached(ctx, name, refresh, &p, func() error {
		var data projectResponse
		if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, name), &data); err != nil {
			if errors.Is(err, integrations.ErrNotFound) {
				return fmt.Errorf("%w: pypi package %s", err, name)
			}
			return err
		}
		p = Project{Name: data.Info.Name, Versions: availableVersions(data.Releases)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchRelease retrieves the requirements and file digests of one release.
func (c *Client) FetchRelease(ctx context.Context, name, version string, refresh bool) (*Release, error) {
	name = deps.Canonicalize(name)

	var r Release
	err := c.Cached(ctx, name+"@"+version, refresh, &r, func() error {
		var data releaseResponse
		if err := c.Get(ctx, fmt.Sprintf("%s/%s/%s/json", c.baseURL, name, version), &data); err != nil {
			if errors.Is(err, integrations.ErrNotFound) {
				return fmt.Errorf("%w: pypi release %s %s", err, name, version)
			}
			return err
		}
		r = Release{
			Name:           data.Info.Name,
			Version:        data.Info.Version,
			RequiresPython: data.Info.RequiresPython,
			Requirements:   runtimeRequirements(data.Info.RequiresDist),
			Digests:        digests(data.URLs),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseRequirement splits a PEP 508 requirement string such as
// "idna (<3,>=2.5) ; python_version < '3'". It reports false for strings it
// cannot read, including direct URL references.
func ParseRequirement(raw string) (Requirement, bool) {
	m := requirementRE.FindStringSubmatch(raw)
	if m == nil {
		return Requirement{}, false
	}
	constraint := strings.ReplaceAll(strings.TrimSpace(m[3]), " ", "")
	if strings.HasPrefix(constraint, "@") {
		return Requirement{}, false
	}
	return Requirement{
		Name:       m[1],
		Constraint: constraint,
		Marker:     strings.TrimSpace(m[4]),
	}, true
}

func runtimeRequirements(requires []string) []Requirement {
	seen := make(map[string]bool)
	var out []Requirement
	for _, raw := range requires {
		req, ok := ParseRequirement(raw)
		if !ok || extraRE.MatchString(req.Marker) {
			continue
		}
		key := deps.Canonicalize(req.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, req)
	}
	return out
}

func availableVersions(releases map[string][]fileInfo) []string {
	versions := make([]string, 0, len(releases))
	for v, files := range releases {
		if len(files) == 0 {
			continue
		}
		yanked := true
		for _, f := range files {
			if !f.Yanked {
				yanked = false
				break
			}
		}
		if !yanked {
			versions = append(versions, v)
		}
	}
	return versions
}

func digests(files []fileInfo) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range files {
		if f.Digests.SHA256 == "" {
			continue
		}
		d := "sha256:" + f.Digests.SHA256
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}

type projectResponse struct {
	Info     apiInfo               `json:"info"`
	Releases map[string][]fileInfo `json:"releases"`
}

type releaseResponse struct {
	Info apiInfo    `json:"info"`
	URLs []fileInfo `json:"urls"`
}

type apiInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	RequiresDist   []string `json:"requires_dist"`
	RequiresPython string   `json:"requires_python"`
}

type fileInfo struct {
	Filename string `json:"filename"`
	Yanked   bool   `json:"yanked"`
	Digests  struct {
		SHA256 string `json:"sha256"`
	} `json:"digests"`
}
