package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const requirementsFile = "requirements.txt"

func (c *CLI) requirementsCommand() *cobra.Command {
	var (
		output string
		noDev  bool
	)

	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "Export the locked packages as " + requirementsFile,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withWorkspace(cmd.Context(), false, func(ctx context.Context, ws *workspace) error {
				if output == "-" {
					ws.installer.Out = c.Err
				}
				lines, err := ws.installer.Requirements(ctx, !noDev)
				if err != nil {
					return err
				}
				content := strings.Join(lines, "\n")
				if len(lines) > 0 {
					content += "\n"
				}

				if output == "-" {
					_, err := fmt.Fprint(c.Out, content)
					return err
				}
				path := output
				if path == "" {
					path = filepath.Join(projectDir(ws.project), requirementsFile)
				}
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				printSuccess(c.Out, "Wrote %d requirements", len(lines))
				printFile(c.Out, path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default "+requirementsFile+" next to the manifest)")
	cmd.Flags().BoolVar(&noDev, "no-dev", false, "do not write dev dependencies")
	return cmd
}
