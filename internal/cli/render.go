package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
)

const (
	formatSVG = "svg"
	formatDOT = "dot"
)

// renderCommand creates the render command, which draws a stored map with
// Graphviz.
func (c *CLI) renderCommand() *cobra.Command {
	var output, format, direction string

	cmd := &cobra.Command{
		Use:   "render <subject>",
		Short: "Render a learning map to SVG or DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatSVG && format != formatDOT {
				return fmt.Errorf("unknown format %q (want svg or dot)", format)
			}
			dir := c.cfg.Direction()
			if direction != "" {
				d, err := layout.ParseDirection(direction)
				if err != nil {
					return err
				}
				dir = d
			}
			if output == "" {
				output = args[0] + "." + format
			}
			return c.runRender(cmd.Context(), args[0], output, format, dir)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <subject>.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", formatSVG, "output format: svg, dot")
	cmd.Flags().StringVarP(&direction, "direction", "d", "", "rank direction: TB, LR, BT or RL (default from config)")
	return cmd
}

func (c *CLI) runRender(ctx context.Context, subject, output, format string, dir layout.Direction) error {
	sess, closeSession, err := c.openSession(ctx, subject, false)
	if err != nil {
		return err
	}
	defer closeSession()

	spinner := newSpinnerWithContext(ctx, "Waiting for generation...")
	spinner.Start()
	sess.Wait()
	spinner.Update("Rendering...")

	vis := sess.Visualization()
	data := []byte(projection.ToDOT(vis, projection.DOTOptions{Direction: dir}))
	if format == formatSVG {
		if data, err = projection.RenderSVG(ctx, string(data)); err != nil {
			spinner.StopWithError("Render failed")
			return fmt.Errorf("render svg: %w", err)
		}
	}
	spinner.Stop()

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Rendered %s", subject)
	printFile(output)
	printStats(countType(vis, projection.NodeArticle), countType(vis, projection.NodeQuestion), 0)
	return nil
}

func countType(vis projection.Visualization, t projection.NodeType) int {
	n := 0
	for _, node := range vis.Nodes {
		if node.Type == t {
			n++
		}
	}
	return n
}
