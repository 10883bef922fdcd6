package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"todosync/internal/markdown"
)

// newExportCmd creates the 'export' subcommand
func newExportCmd(stdout io.Writer, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks as a markdown checklist",
		Long:  "Write all tasks, grouped by category, as a markdown checklist to stdout or a file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			a, err := openApp(opts, configFlag)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.load(ctx); err != nil {
				return err
			}

			cats, err := a.local.GetAllCategories(ctx)
			if err != nil {
				return err
			}
			out := markdown.Render(a.cache.GetAllTasks(), cats)

			outPath, _ := cmd.Flags().GetString("output")
			if outPath == "" {
				_, _ = fmt.Fprint(stdout, out)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
				return fmt.Errorf("could not write %s: %w", outPath, err)
			}
			_, _ = fmt.Fprintf(stdout, "Exported %d tasks to %s\n", a.cache.Len(), outPath)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	return cmd
}
