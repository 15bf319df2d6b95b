// Package vcs pins version-control references to exact revisions.
//
// A manifest may reference a git repository at a branch, tag or revision.
// Resolution needs the commit that reference currently points to, so the
// repository is cloned into a scratch directory, the reference is checked
// out and the resulting commit id is read back. Git operations go through
// github.com/Masterminds/vcs.
package vcs

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"
	"time"

	mvcs "github.com/Masterminds/vcs"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/observability"
)

// Fetcher resolves a VCS reference to a revision.
type Fetcher interface {
	// Fetch returns the pin for ref: the same repository with Rev set to the
	// commit the reference resolves to and Branch and Tag cleared.
	Fetch(ctx context.Context, name string, ref deps.VCS) (deps.VCS, error)
}

// Git fetches references by cloning with the git command line tool.
type Git struct {
	// WorkDir is the parent of scratch clones. Empty uses the system
	// temporary directory.
	WorkDir string
	Logger  *log.Logger
}

// NewGit creates a git fetcher logging to logger. A nil logger discards.
func NewGit(logger *log.Logger) *Git {
	return &Git{Logger: logger}
}

// Fetch clones ref, checks out its branch, tag or rev and reports the
// checked out commit. The scratch clone is removed afterwards.
//
// The underlying git commands are not interruptible; ctx is checked between
// steps.
func (g *Git) Fetch(ctx context.Context, name string, ref deps.VCS) (pin deps.VCS, err error) {
	start := time.Now()
	defer func() {
		observability.Resolve().OnFetch(ctx, name, ref.Git, pin.Rev, time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return deps.VCS{}, err
	}

	dir, err := os.MkdirTemp(g.WorkDir, "stanza-vcs-")
	if err != nil {
		return deps.VCS{}, errors.Wrap(errors.ErrCodeInternal, err, "create scratch directory for [%s]", name)
	}
	defer os.RemoveAll(dir)

	// Masterminds/vcs expects to create the clone target itself.
	local := dir + string(os.PathSeparator) + "src"
	repo, err := mvcs.NewGitRepo(RemoteURL(ref.Git), local)
	if err != nil {
		return deps.VCS{}, errors.Wrap(errors.ErrCodeInvalidElement, err, "invalid git repository for [%s]", name)
	}

	g.logger().Debug("cloning", "package", name, "repo", repo.Remote())
	if err := repo.Get(); err != nil {
		return deps.VCS{}, fetchError(name, err)
	}
	if err := ctx.Err(); err != nil {
		return deps.VCS{}, err
	}

	if target := ref.Ref(); target != "" {
		if err := repo.UpdateVersion(target); err != nil {
			return deps.VCS{}, fetchError(name, err)
		}
	}

	rev, err := repo.Version()
	if err != nil {
		return deps.VCS{}, fetchError(name, err)
	}
	rev = strings.TrimSpace(rev)
	g.logger().Debug("pinned", "package", name, "ref", ref.Pretty(), "rev", rev)

	return deps.VCS{Git: ref.Git, Rev: rev}, nil
}

func (g *Git) logger() *log.Logger {
	if g.Logger == nil {
		return log.New(io.Discard)
	}
	return g.Logger
}

// RemoteURL strips the git+ scheme prefix pip uses so git can clone the URL.
func RemoteURL(repo string) string {
	return strings.TrimPrefix(strings.TrimSpace(repo), "git+")
}

func fetchError(name string, err error) error {
	var remote *mvcs.RemoteError
	var local *mvcs.LocalError
	switch {
	case stderrors.As(err, &remote):
		return errors.Wrap(errors.ErrCodeNetwork, err, "Unable to fetch [%s]: %s", name, strings.TrimSpace(remote.Out()))
	case stderrors.As(err, &local):
		return errors.Wrap(errors.ErrCodeResolutionInconsistency, err, "Unable to check out [%s]: %s", name, strings.TrimSpace(local.Out()))
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, "Unable to fetch [%s]", name)
	}
}
