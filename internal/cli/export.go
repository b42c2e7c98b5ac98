package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
)

// exportCommand creates the export command, which writes the visualization
// of a stored map as JSON.
func (c *CLI) exportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <subject>",
		Short: "Export the visualization of a learning map as JSON",
		Long: `Export the nodes and edges of a learning map as JSON, the same document
the HTTP API serves at /api/maps/<subject>/visualization.

With -o - (the default) the JSON is written to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), args[0], output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, or - for stdout")
	return cmd
}

func (c *CLI) runExport(ctx context.Context, subject, output string, stdout io.Writer) error {
	sess, closeSession, err := c.openSession(ctx, subject, true)
	if err != nil {
		return err
	}
	defer closeSession()
	sess.Wait()

	vis := sess.Visualization()
	if output == "-" {
		return projection.WriteJSON(stdout, vis)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := projection.WriteJSON(f, vis); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess("Exported %s", subject)
	printFile(output)
	return nil
}
