package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
)

// layoutCommand creates the layout command, which positions every node of a
// stored map and saves the positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "layout <subject>",
		Short: "Compute and store node positions for a learning map",
		Long: `Compute node positions for a learning map with Graphviz and save them.

Node sizes are estimated from their labels. Results are cached (see 'cache'),
so laying out an unchanged map again is instant.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if direction != "" {
				d, err := layout.ParseDirection(direction)
				if err != nil {
					return err
				}
				c.cfg.Layout.Direction = string(d)
			}
			return c.runLayout(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", "", "rank direction: TB, LR, BT or RL (default from config)")
	return cmd
}

func (c *CLI) runLayout(ctx context.Context, subject string) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %s...", subject))
	spinner.Start()

	sess, closeSession, err := c.openSession(ctx, subject, true)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	defer closeSession()

	sess.Wait()
	spinner.Stop()
	if spinner.Cancelled() {
		return ctx.Err()
	}

	vis := sess.Visualization()
	unplaced := 0
	for _, n := range vis.Nodes {
		if n.Position == nil {
			unplaced++
		}
	}
	if unplaced > 0 {
		printError("%d of %d nodes could not be placed", unplaced, len(vis.Nodes))
		return fmt.Errorf("layout of %s incomplete", subject)
	}
	prog.done(fmt.Sprintf("Laid out %d nodes", len(vis.Nodes)))

	printSuccess("Layout saved")
	fmt.Println(positionsTable(vis))
	printNewline()
	printNextStep("Render", appName+" render "+subject)
	return nil
}

// positionsTable renders node positions as a bordered table.
func positionsTable(vis projection.Visualization) string {
	rows := make([][]string, 0, len(vis.Nodes))
	for _, n := range vis.Nodes {
		x, y := "-", "-"
		if n.Position != nil {
			x = strconv.FormatFloat(n.Position.X, 'f', 0, 64)
			y = strconv.FormatFloat(n.Position.Y, 'f', 0, 64)
		}
		rows = append(rows, []string{string(n.Type), truncateLabel(n.Label, 48), x, y})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Type", "Label", "X", "Y").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col >= 2 {
				return StyleValue.Align(lipgloss.Right)
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

func truncateLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
