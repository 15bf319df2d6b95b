package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stanza/pkg/lock"
)

func (c *CLI) lockCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock the dependencies declared in poetry.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd.Context(), true, func(ctx context.Context, ws *workspace) error {
				if lock.Exists(ws.project.LockFile()) && !force {
					printInfo(c.Out, "%s already exists, use --force to lock again", lock.FileName)
					return nil
				}
				prog := newProgress(c.Logger)
				if err := ws.installer.Lock(ctx, true); err != nil {
					return err
				}
				prog.done("locked")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "lock even if "+lock.FileName+" exists")
	return cmd
}
