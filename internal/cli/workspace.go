package cli

import (
	"context"
	"strings"

	"github.com/matzehuels/stanza/pkg/deps"
)

// withWorkspace opens the project workspace, runs fn and releases the
// workspace. Mutating commands hold the project guard while fn runs.
func (c *CLI) withWorkspace(ctx context.Context, mutating bool, fn func(context.Context, *workspace) error) error {
	ws, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	if mutating {
		g, err := c.guard(ctx, ws)
		if err != nil {
			return err
		}
		defer g.Release()
	}
	return fn(ctx, ws)
}

// spin shows a spinner with msg until the returned function is called.
func (c *CLI) spin(ctx context.Context, msg string) func() {
	if c.flags.noProgress {
		return func() {}
	}
	s := newSpinnerWithContext(ctx, c.Err, msg)
	s.Start()
	return s.Stop
}

// splitFeatures accepts repeated and space-separated feature flags and
// canonicalizes each name.
func splitFeatures(raw []string) []string {
	var out []string
	for _, value := range raw {
		for _, name := range strings.Fields(value) {
			out = append(out, deps.Canonicalize(name))
		}
	}
	return out
}
