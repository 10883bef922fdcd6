package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	tasksync "todosync/internal/sync"
	"todosync/store"
)

// newCategoryCmd creates the 'category' subcommand for category management
func newCategoryCmd(stdout io.Writer, opts *Options) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage categories",
		Long:    "List categories or manage them with subcommands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			a, err := openApp(opts, configFlag)
			if err != nil {
				return err
			}
			defer a.close()

			cats, err := a.local.GetAllCategories(cmd.Context())
			if err != nil {
				return err
			}

			if len(cats) == 0 {
				_, _ = fmt.Fprintln(stdout, "No categories. Create one with: todosync category add \"Work\"")
			} else {
				_, _ = fmt.Fprintf(stdout, "%-20s %-10s\n", "NAME", "COLOR")
				for _, c := range cats {
					_, _ = fmt.Fprintf(stdout, "%-20s %-10s\n", c.Name, c.Color)
				}
			}
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	categoryCmd.AddCommand(newCategoryAddCmd(stdout, opts))
	categoryCmd.AddCommand(newCategoryDeleteCmd(stdout, opts))

	return categoryCmd
}

// newCategoryAddCmd creates the 'category add' subcommand
func newCategoryAddCmd(stdout io.Writer, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			a, err := openApp(opts, configFlag)
			if err != nil {
				return err
			}
			defer a.close()

			color, _ := cmd.Flags().GetString("color")
			now := time.Now().Format(store.DateLayout)
			cat := store.Category{
				ID:        store.GenerateID(),
				Name:      args[0],
				Color:     color,
				CreatedAt: now,
				UpdatedAt: now,
			}

			done := make(chan error, 1)
			a.coord.PerformCategory(cat, tasksync.OpAdd, func(err error) {
				done <- err
			})
			if err := <-done; err != nil {
				return err
			}

			_, _ = fmt.Fprintf(stdout, "Created category: %s\n", cat.Name)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("color", "", "Display color for the category")
	return cmd
}

// newCategoryDeleteCmd creates the 'category delete' subcommand
func newCategoryDeleteCmd(stdout io.Writer, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			a, err := openApp(opts, configFlag)
			if err != nil {
				return err
			}
			defer a.close()

			cat, err := resolveCategory(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}

			done := make(chan error, 1)
			a.coord.PerformCategory(cat, tasksync.OpDelete, func(err error) {
				done <- err
			})
			if err := <-done; err != nil {
				return err
			}

			_, _ = fmt.Fprintf(stdout, "Deleted category: %s\n", cat.Name)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
