package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stanza/pkg/render"
)

const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatJSON = "json"
)

func (c *CLI) graphCommand() *cobra.Command {
	var (
		format   string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Draw the resolved dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatDOT && format != formatSVG && format != formatJSON {
				return fmt.Errorf("invalid format %q: must be %s, %s or %s", format, formatDOT, formatSVG, formatJSON)
			}
			return c.withWorkspace(cmd.Context(), false, func(ctx context.Context, ws *workspace) error {
				stop := c.spin(ctx, "Resolving dependencies")
				res, err := ws.engine.Resolve(ctx, ws.project.Dependencies(true))
				stop()
				if err != nil {
					return err
				}
				if err := res.Graph.Validate(); err != nil {
					c.Logger.Warn("dependency graph is not acyclic", "error", err)
				}

				var data []byte
				switch format {
				case formatJSON:
					var buf bytes.Buffer
					if err := render.WriteJSON(res.Graph, &buf); err != nil {
						return err
					}
					data = buf.Bytes()
				case formatSVG:
					dot := render.ToDOT(res.Graph, render.Options{Root: ws.project.Name(), Detailed: detailed})
					if data, err = render.RenderSVG(ctx, dot); err != nil {
						return err
					}
				default:
					data = []byte(render.ToDOT(res.Graph, render.Options{Root: ws.project.Name(), Detailed: detailed}))
				}

				if output == "" || output == "-" {
					_, err := c.Out.Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				printSuccess(c.Out, "Graph of %d packages", res.Graph.NodeCount())
				printFile(c.Out, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatDOT, "output format: dot, svg, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show package metadata in node labels")
	return cmd
}
