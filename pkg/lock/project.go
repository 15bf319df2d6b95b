package lock

import (
	"maps"
	"path/filepath"

	"github.com/matzehuels/stanza/pkg/deps"
)

// Project is a project backed only by its lock document. It presents the
// locked packages as exact dependencies.
type Project struct {
	path string
	doc  *Document
	main []*deps.Dependency
	dev  []*deps.Dependency
}

// OpenProject reads the lock document at path as a project.
func OpenProject(path string) (*Project, error) {
	doc, err := Read(path)
	if err != nil {
		return nil, err
	}
	return NewProject(path, doc)
}

// NewProject wraps an already decoded document.
func NewProject(path string, doc *Document) (*Project, error) {
	p := &Project{path: path, doc: doc}
	for _, pkg := range doc.Packages {
		d, err := pkg.Requirement()
		if err != nil {
			return nil, err
		}
		if pkg.Category == deps.Dev {
			p.dev = append(p.dev, d)
		} else {
			p.main = append(p.main, d)
		}
	}
	return p, nil
}

func (p *Project) Name() string     { return p.doc.Root.Name }
func (p *Project) Version() string  { return p.doc.Root.Version }
func (p *Project) Dir() string      { return filepath.Dir(p.path) }
func (p *Project) LockFile() string { return p.path }

// IsLock always reports true.
func (p *Project) IsLock() bool { return true }

// Document returns the underlying lock document.
func (p *Project) Document() *Document { return p.doc }

// Dependencies returns the locked main packages, plus dev packages when
// dev is set.
func (p *Project) Dependencies(dev bool) []*deps.Dependency {
	out := append([]*deps.Dependency{}, p.main...)
	if dev {
		out = append(out, p.dev...)
	}
	return out
}

// Features returns the locked feature map.
func (p *Project) Features() map[string][]string { return maps.Clone(p.doc.Features) }
