package lock

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/matzehuels/stanza/pkg/errors"
)

// GuardFileName is the advisory lock taken in a project directory while
// a command mutates its lock document or environment.
const GuardFileName = ".stanza.lock"

const guardRetry = 100 * time.Millisecond

// Guard serializes mutating commands within one project directory.
type Guard struct {
	fl *flock.Flock
}

// Acquire blocks until the project guard in dir is held or ctx is done.
func Acquire(ctx context.Context, dir string) (*Guard, error) {
	fl := flock.New(filepath.Join(dir, GuardFileName))
	ok, err := fl.TryLockContext(ctx, guardRetry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "Could not lock project directory %s", dir)
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, "Could not lock project directory %s", dir)
	}
	return &Guard{fl: fl}, nil
}

// Release drops the guard. It is safe to call more than once.
func (g *Guard) Release() error {
	if g == nil || g.fl == nil {
		return nil
	}
	return g.fl.Unlock()
}
