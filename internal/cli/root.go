package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/stanza/internal/config"
	"github.com/matzehuels/stanza/pkg/buildinfo"
	"github.com/matzehuels/stanza/pkg/manifest"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Stanza locks and installs Python project dependencies",
		Long:          `Stanza reads the dependencies declared in poetry.toml, pins them into poetry.lock and installs exactly the locked set with pip.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			registerHooks(c.metrics)
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.flags.manifest, "manifest", manifest.FileName, "path to the project manifest")
	flags.BoolVar(&c.flags.noCache, "no-cache", false, "disable the index response cache")
	flags.IntVarP(&c.flags.jobs, "jobs", "j", 0, "concurrent installer operations (default $"+config.EnvJobs+" or 1)")
	flags.BoolVar(&c.flags.noProgress, "no-progress", false, "do not show progress indicators")

	root.AddCommand(c.lockCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.requirementsCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
