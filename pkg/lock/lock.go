// Package lock reads and writes poetry.lock documents.
//
// A lock document records the owning project, every resolved package
// with its pin, digests, category, optionality and interpreter ranges,
// and the feature map:
//
//	[root]
//	name = "my-package"
//	version = "0.1.0"
//
//	[[package]]
//	name = "requests"
//	version = "2.13.0"
//	checksum = ["sha256:..."]
//	category = "main"
//	optional = false
//	python = ["*"]
//
//	[features]
//	my-feature = ["requests"]
//
// VCS pins store version as a table with git and rev keys. Documents are
// always rewritten whole; [Write] replaces the file atomically.
package lock

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stanza/pkg/constraint"
	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
)

// FileName is the lock document name inside a project directory.
const FileName = "poetry.lock"

// Root identifies the project that owns a lock document.
type Root struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Document is a decoded lock document.
type Document struct {
	Root     Root
	Packages []deps.Package
	Features map[string][]string // Feature name -> canonical package names
}

// Find returns the package with the given name, compared canonically.
func (d *Document) Find(name string) (deps.Package, bool) {
	name = deps.Canonicalize(name)
	for _, p := range d.Packages {
		if deps.Canonicalize(p.Name) == name {
			return p, true
		}
	}
	return deps.Package{}, false
}

// Category returns the packages of one category in document order.
func (d *Document) Category(c deps.Category) []deps.Package {
	return deps.Filter(d.Packages, func(p deps.Package) bool { return p.Category == c })
}

type file struct {
	Root     *Root               `toml:"root"`
	Packages []filePackage       `toml:"package"`
	Features map[string][]string `toml:"features"`
}

type filePackage struct {
	Name     string   `toml:"name"`
	Version  any      `toml:"version"`
	Checksum []string `toml:"checksum"`
	Category string   `toml:"category"`
	Optional bool     `toml:"optional"`
	Python   []string `toml:"python"`
}

// Read loads and validates the lock document at path.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses and validates a lock document.
func Decode(r io.Reader) (*Document, error) {
	var f file
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidElement, err, "The poetry.lock file is not valid TOML")
	}
	if err := f.check(); err != nil {
		return nil, err
	}

	doc := &Document{Root: *f.Root, Features: make(map[string][]string, len(f.Features))}
	for _, fp := range f.Packages {
		doc.Packages = append(doc.Packages, fp.pkg())
	}
	for name, pkgs := range f.Features {
		doc.Features[name] = slices.Clone(pkgs)
	}
	return doc, nil
}

// Check validates the lock document at path without keeping it.
func Check(path string) error {
	_, err := Read(path)
	return err
}

// check validates the root record, every scalar version and the feature
// references.
func (f *file) check() error {
	switch {
	case f.Root == nil:
		return errors.MissingLockElement("root")
	case f.Root.Name == "":
		return errors.MissingLockElement("root.name")
	case f.Root.Version == "":
		return errors.MissingLockElement("root.version")
	}

	locked := make(map[string]bool, len(f.Packages))
	for i, p := range f.Packages {
		if p.Name == "" {
			return errors.MissingLockElement(fmt.Sprintf("package.%d.name", i))
		}
		locked[deps.Canonicalize(p.Name)] = true

		element := "package." + p.Name
		switch v := p.Version.(type) {
		case string:
			if _, err := constraint.Coerce(v); err != nil {
				return errors.InvalidElement(element, fmt.Sprintf("version [%s] is not a valid version", v))
			}
		case map[string]any:
			if _, ok := v["git"].(string); !ok {
				return errors.InvalidElement(element, "VCS version must have a git key")
			}
		case nil:
			return errors.MissingLockElement(element + ".version")
		default:
			return errors.InvalidElement(element, "version must be a string or a table")
		}
		if p.Category != "" {
			if _, ok := deps.ParseCategory(p.Category); !ok {
				return errors.InvalidElement(element, fmt.Sprintf("unknown category [%s]", p.Category))
			}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(f.Features)) {
		for _, pkg := range f.Features[name] {
			if !locked[deps.Canonicalize(pkg)] {
				return errors.InvalidElement("features."+name, fmt.Sprintf("package [%s] is not locked", pkg))
			}
		}
	}
	return nil
}

func (fp filePackage) pkg() deps.Package {
	p := deps.Package{
		Name:     fp.Name,
		Checksum: slices.Clone(fp.Checksum),
		Category: deps.Main,
		Optional: fp.Optional,
		Python:   slices.Clone(fp.Python),
	}
	if fp.Category != "" {
		p.Category = deps.Category(fp.Category)
	}
	if len(p.Python) == 0 {
		p.Python = []string{constraint.Any}
	}

	switch v := fp.Version.(type) {
	case string:
		p.Pin = deps.Registry{Version: v}
	case map[string]any:
		vcs := deps.VCS{}
		for key, dst := range map[string]*string{"git": &vcs.Git, "branch": &vcs.Branch, "tag": &vcs.Tag, "rev": &vcs.Rev} {
			if s, ok := v[key].(string); ok {
				*dst = s
			}
		}
		p.Pin = vcs
	}
	return p
}

// Encode writes doc as TOML. Packages are written sorted by name. A
// feature naming a package missing from doc.Packages is rejected with
// InvalidElement before anything is written.
func Encode(w io.Writer, doc *Document) error {
	pkgs := slices.Clone(doc.Packages)
	deps.SortPackages(pkgs)

	locked := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		locked[deps.Canonicalize(p.Name)] = true
	}
	for _, name := range slices.Sorted(maps.Keys(doc.Features)) {
		for _, member := range doc.Features[name] {
			if !locked[deps.Canonicalize(member)] {
				return errors.InvalidElement("features."+name, fmt.Sprintf("package [%s] is not locked", member))
			}
		}
	}

	root := doc.Root
	f := file{Root: &root, Features: doc.Features}
	for _, p := range pkgs {
		fp := filePackage{
			Name:     p.Name,
			Checksum: append([]string{}, p.Checksum...),
			Category: string(p.Category),
			Optional: p.Optional,
			Python:   append([]string{}, p.Python...),
		}
		if fp.Category == "" {
			fp.Category = string(deps.Main)
		}
		if len(fp.Python) == 0 {
			fp.Python = []string{constraint.Any}
		}
		switch pin := p.Pin.(type) {
		case deps.VCS:
			fp.Version = pin
		case deps.Registry:
			fp.Version = pin.Version
		default:
			return errors.New(errors.ErrCodeInternal, "package [%s] has no pin", p.Name)
		}
		f.Packages = append(f.Packages, fp)
	}
	if f.Features == nil {
		f.Features = map[string][]string{}
	}
	return toml.NewEncoder(w).Encode(f)
}

// Write replaces the lock document at path. The content is written to a
// temporary file in the same directory first and renamed into place.
func Write(path string, doc *Document) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".poetry-lock-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Exists reports whether a lock document exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
