package cli

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/installer"
	"github.com/matzehuels/stanza/pkg/lock"
	"github.com/matzehuels/stanza/pkg/manifest"
)

// openProject loads the manifest at path. When only a lock document sits
// next to where the manifest would be, the project is lock-backed.
func openProject(path string) (installer.Project, error) {
	if path == "" {
		path = manifest.FileName
	}
	if _, err := os.Stat(path); err == nil {
		m, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	lockPath := filepath.Join(filepath.Dir(path), lock.FileName)
	if lock.Exists(lockPath) {
		p, err := lock.OpenProject(lockPath)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "Unable to find %s or %s in %s", filepath.Base(path), lock.FileName, dirName(path))
}

func projectDir(p installer.Project) string {
	return filepath.Dir(p.LockFile())
}

func dirName(path string) string {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return filepath.Dir(path)
	}
	return dir
}
