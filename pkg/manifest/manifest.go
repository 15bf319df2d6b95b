// Package manifest reads poetry.toml project manifests.
//
// A manifest declares the project metadata under [package], runtime
// dependencies under [dependencies], development dependencies under
// [dev-dependencies] and optional dependency bundles under [features]:
//
//	[package]
//	name = "my-package"
//	version = "0.1.0"
//	authors = ["Jane Doe <jane@example.com>"]
//	readme = "README.rst"
//
//	[dependencies]
//	requests = "^2.13"
//	pendulum = { git = "https://github.com/sdispater/pendulum.git", branch = "develop", optional = true }
//
//	[dev-dependencies]
//	pytest = "^3.5"
//
//	[features]
//	time = ["pendulum"]
package manifest

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/lock"
)

// FileName is the manifest name inside a project directory.
const FileName = "poetry.toml"

var readmeExtensions = []string{".md", ".rst", ".txt"}

// Metadata is the [package] table.
type Metadata struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description string   `toml:"description"`
	Authors     []string `toml:"-"`
	License     string   `toml:"license"`
	Readme      string   `toml:"readme"`
	Homepage    string   `toml:"homepage"`
	Repository  string   `toml:"repository"`
	Keywords    []string `toml:"keywords"`
	Python      []string `toml:"-"`
}

// Manifest is a loaded poetry.toml.
type Manifest struct {
	Metadata Metadata
	Scripts  map[string]string

	path     string
	raw      map[string]any
	main     []*deps.Dependency
	dev      []*deps.Dependency
	features map[string][]string
}

// Load reads and parses the manifest at path. Dependencies are parsed
// eagerly, so malformed constraints fail here.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse parses manifest content. path locates the project directory.
func Parse(path string, data []byte) (*Manifest, error) {
	m := &Manifest{path: path}
	if err := toml.Unmarshal(data, &m.raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidElement, err, "The poetry.toml file is not valid TOML")
	}

	var doc struct {
		Package  *Metadata           `toml:"package"`
		Features map[string][]string `toml:"features"`
		Scripts  map[string]string   `toml:"scripts"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidElement, err, "The poetry.toml file is invalid")
	}
	if doc.Package == nil {
		return nil, errors.MissingElement("package")
	}
	m.Metadata = *doc.Package
	pkg, _ := m.raw["package"].(map[string]any)
	m.Metadata.Authors = stringItems(pkg["authors"])
	m.Metadata.Python = stringItems(pkg["python"])
	m.Scripts = doc.Scripts
	m.features = doc.Features
	if m.features == nil {
		m.features = map[string][]string{}
	}

	var err error
	m.main, err = parseDependencies(m.raw, "dependencies", deps.Main)
	if err != nil {
		return nil, err
	}
	m.dev, err = parseDependencies(m.raw, "dev-dependencies", deps.Dev)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// stringItems collects the string items of a TOML array, or a single string.
func stringItems(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// parseDependencies reads one dependency table. Entries are returned
// sorted by name.
func parseDependencies(raw map[string]any, key string, category deps.Category) ([]*deps.Dependency, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	table, ok := v.(map[string]any)
	if !ok {
		return nil, errors.InvalidElement(key, "it must be a table")
	}

	out := make([]*deps.Dependency, 0, len(table))
	for _, name := range slices.Sorted(maps.Keys(table)) {
		d, err := deps.Parse(name, table[name], category)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *Manifest) Name() string     { return m.Metadata.Name }
func (m *Manifest) Version() string  { return m.Metadata.Version }
func (m *Manifest) Path() string     { return m.path }
func (m *Manifest) Dir() string      { return filepath.Dir(m.path) }
func (m *Manifest) LockFile() string { return filepath.Join(m.Dir(), lock.FileName) }

// IsLock reports false; a manifest is the authoritative declaration.
func (m *Manifest) IsLock() bool { return false }

// Dependencies returns the declared main dependencies, followed by the
// dev dependencies when dev is set.
func (m *Manifest) Dependencies(dev bool) []*deps.Dependency {
	out := append([]*deps.Dependency{}, m.main...)
	if dev {
		out = append(out, m.dev...)
	}
	return out
}

// Features returns the feature map as declared.
func (m *Manifest) Features() map[string][]string { return maps.Clone(m.features) }

// Check validates the manifest beyond what loading requires: the package
// metadata, the readme file and the feature references.
func (m *Manifest) Check() error {
	pkg, ok := m.raw["package"].(map[string]any)
	if !ok {
		return errors.MissingElement("package")
	}
	for _, key := range []string{"name", "version"} {
		if s, _ := pkg[key].(string); s == "" {
			return errors.MissingElement("package." + key)
		}
	}

	authors, ok := pkg["authors"]
	if !ok {
		return errors.MissingElement("package.authors")
	}
	list, ok := authors.([]any)
	if !ok {
		return errors.InvalidElement("package.authors", "it must be a list")
	}
	if len(list) == 0 {
		return errors.MissingElement("package.authors")
	}

	if err := m.checkReadme(); err != nil {
		return err
	}

	for _, name := range slices.Sorted(maps.Keys(m.features)) {
		if err := errors.ValidateFeatureName(name); err != nil {
			return err
		}
	}
	return deps.CheckFeatureReferences(m.features, m.Dependencies(true))
}

func (m *Manifest) checkReadme() error {
	readme := m.Metadata.Readme
	if readme == "" {
		return errors.MissingElement("package.readme")
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), readme)); err != nil {
		return errors.InvalidElement("package.readme", "invalid path provided")
	}
	if ext := filepath.Ext(readme); !slices.Contains(readmeExtensions, ext) {
		return errors.InvalidElement("package.readme", fmt.Sprintf("extension [%s] is not supported", ext))
	}
	return nil
}
