package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stanza/pkg/constraint"
	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/installer"
	"github.com/matzehuels/stanza/pkg/lock"
)

func (c *CLI) installCommand() *cobra.Command {
	var (
		features []string
		noDev    bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install and lock the dependencies declared in poetry.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd.Context(), true, func(ctx context.Context, ws *workspace) error {
				prog := newProgress(c.Logger)
				if err := ws.installer.Install(ctx, splitFeatures(features), !noDev); err != nil {
					return err
				}
				prog.done("installed")
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&features, "features", "F", nil, "features to install (repeatable, space-separated)")
	cmd.Flags().BoolVar(&noDev, "no-dev", false, "do not install dev dependencies")
	return cmd
}

func (c *CLI) updateCommand() *cobra.Command {
	var features []string

	cmd := &cobra.Command{
		Use:   "update [packages...]",
		Short: "Update dependencies according to poetry.toml",
		Long: `Update re-resolves the declared dependencies, applies the difference to the
environment and rewrites poetry.lock. Naming packages limits the update to
them; "name@*" is accepted as well. Without a lock file this is the same
as install.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd.Context(), true, func(ctx context.Context, ws *workspace) error {
				features := splitFeatures(features)
				packages, err := updateTargets(args)
				if err != nil {
					return err
				}
				if err := installer.CheckUpdateRequest(packages, features); err != nil {
					return err
				}
				if !lock.Exists(ws.project.LockFile()) {
					return ws.installer.Install(ctx, features, true)
				}
				prog := newProgress(c.Logger)
				if err := ws.installer.Update(ctx, packages, features, true); err != nil {
					return err
				}
				prog.done("updated")
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&features, "features", "F", nil, "features to install (repeatable, space-separated)")
	return cmd
}

// updateTargets reads package arguments such as "requests" or
// "requests@*". Versions are declared in poetry.toml, so an argument
// requesting a specific one is rejected.
func updateTargets(args []string) ([]string, error) {
	pairs := deps.ParseNameVersionPairs(args)
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.Version != constraint.Any {
			return nil, errors.New(errors.ErrCodeInvalidConstraint,
				"Cannot update [%s] to [%s]: change its constraint in poetry.toml", p.Name, p.Version)
		}
		names = append(names, p.Name)
	}
	return names, nil
}
