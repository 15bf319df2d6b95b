package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/stanza/pkg/lock"
	"github.com/matzehuels/stanza/pkg/manifest"
)

func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate poetry.toml and poetry.lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := openProject(c.flags.manifest)
			if err != nil {
				return err
			}
			if m, ok := project.(*manifest.Manifest); ok {
				if err := m.Check(); err != nil {
					return err
				}
			}
			if path := project.LockFile(); lock.Exists(path) {
				if err := lock.Check(path); err != nil {
					return err
				}
			}
			printSuccess(c.Out, "No errors found")
			return nil
		},
	}
}
