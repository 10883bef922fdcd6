package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"todosync/internal/utils"
	"todosync/store"
)

// newShareCmd creates the 'share' subcommand for shared task management
func newShareCmd(stdout io.Writer, opts *Options) *cobra.Command {
	shareCmd := &cobra.Command{
		Use:   "share",
		Short: "Share tasks with other accounts",
		Long:  "Invite other accounts to a task, revoke access, or inspect a shared task. Requires sync to be enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	shareCmd.AddCommand(newShareAddCmd(stdout, opts))
	shareCmd.AddCommand(newShareRevokeCmd(stdout, opts))
	shareCmd.AddCommand(newShareShowCmd(stdout, opts))

	return shareCmd
}

// sharingApp opens the app and ensures the sharing coordinator is available.
func sharingApp(cmd *cobra.Command, opts *Options) (*app, error) {
	configFlag, _ := cmd.Flags().GetString("config")
	a, err := openApp(opts, configFlag)
	if err != nil {
		return nil, err
	}
	if a.share == nil {
		a.close()
		return nil, utils.ErrSyncNotEnabled()
	}
	return a, nil
}

// newShareAddCmd creates the 'share add' subcommand
func newShareAddCmd(stdout io.Writer, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title] [email]",
		Short: "Invite an account to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := sharingApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.load(ctx); err != nil {
				return err
			}

			task, err := a.findTask(args[0], opts != nil && opts.NoPrompt)
			if err != nil {
				return err
			}

			canEdit, _ := cmd.Flags().GetBool("edit")
			name, _ := cmd.Flags().GetString("name")
			user := store.SharedUser{
				Email:     args[1],
				Name:      name,
				CanEdit:   canEdit,
				Status:    store.StatusPending,
				InvitedAt: time.Now().Format(store.DateTimeLayout),
			}

			if err := a.share.ShareTask(ctx, task, user); err != nil {
				return err
			}

			access := "view"
			if canEdit {
				access = "edit"
			}
			_, _ = fmt.Fprintf(stdout, "Shared '%s' with %s (%s access)\n", task.Title, user.Email, access)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Bool("edit", false, "Allow the invited account to edit the task")
	cmd.Flags().String("name", "", "Display name for the invited account")
	return cmd
}

// newShareRevokeCmd creates the 'share revoke' subcommand
func newShareRevokeCmd(stdout io.Writer, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [title] [email]",
		Short: "Remove an account from a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := sharingApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.load(ctx); err != nil {
				return err
			}

			task, err := a.findTask(args[0], opts != nil && opts.NoPrompt)
			if err != nil {
				return err
			}

			if err := a.share.RevokeShare(ctx, task.ID, args[1]); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(stdout, "Revoked access to '%s' for %s\n", task.Title, args[1])
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newShareShowCmd creates the 'share show' subcommand
func newShareShowCmd(stdout io.Writer, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show [task-id]",
		Short: "Show a shared task from its owner's replica",
		Long:  "Fetch a shared task by id from the owner's copy in the remote tree. Works for tasks shared with you by other accounts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := sharingApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			task, err := a.share.LoadSharedTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(stdout, "Title:  %s\n", task.Title)
			if task.Description != "" {
				_, _ = fmt.Fprintf(stdout, "Notes:  %s\n", task.Description)
			}
			if task.DueDate != "" {
				_, _ = fmt.Fprintf(stdout, "Due:    %s %s\n", task.DueDate, task.DueTime)
			}
			_, _ = fmt.Fprintf(stdout, "Done:   %v\n", task.Completed)
			for _, st := range task.SubTasks {
				marker := "[ ]"
				if st.Completed {
					marker = "[x]"
				}
				_, _ = fmt.Fprintf(stdout, "  %s %s\n", marker, st.Title)
			}
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
