package installer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/observability"
)

// operation is one installer process invocation.
type operation struct {
	job     string // install, update or remove
	name    string
	message string // Progress line
	failure string // Error message on failure
	run     func(ctx context.Context) error
}

// run executes ops in order, or up to Jobs at a time. The first failure
// cancels the remaining operations and is returned as an
// InstallationError.
func (i *Installer) run(ctx context.Context, ops []operation) error {
	jobs := i.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	if jobs == 1 {
		for _, op := range ops {
			if err := i.exec(ctx, op, true); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, op := range ops {
		g.Go(func() error { return i.exec(gctx, op, false) })
	}
	return g.Wait()
}

func (i *Installer) exec(ctx context.Context, op operation, spin bool) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	observability.Operation().OnOperationStart(ctx, op.job, op.name)
	defer func() {
		observability.Operation().OnOperationComplete(ctx, op.job, op.name, time.Since(start), err)
	}()

	i.line("%s", op.message)
	if spin && i.Spin != nil {
		stop := i.Spin(op.message[3:])
		defer stop()
	}

	if err := op.run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(errors.ErrCodeInstallation, err, "%s", op.failure)
	}
	i.logger().Debug("operation complete", "job", op.job, "package", op.name, "duration", time.Since(start))
	return nil
}
