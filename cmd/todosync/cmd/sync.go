package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	tasksync "todosync/internal/sync"
)

// newSyncCmd creates the 'sync' subcommand
func newSyncCmd(stdout io.Writer, opts *Options) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Push and pull all tasks",
		Long:  "Upload every local task to the remote tree and pull down tasks that exist only remotely. Local records win when the same id exists on both sides.",
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

			if err := a.coord.SyncAll(ctx); err != nil {
				return err
			}
			if err := tasksync.RecordLastSync(a.syncStateDir(), time.Now()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(stdout, "Synced %d tasks with %s\n", a.cache.Len(), a.cfg.Sync.Host)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	syncCmd.AddCommand(newSyncStatusCmd(stdout, opts))
	return syncCmd
}

// newSyncStatusCmd creates the 'sync status' subcommand
func newSyncStatusCmd(stdout io.Writer, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state",
		Long:  "Display connectivity, the configured account, pending retries, and the time of the last full sync.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			a, err := openApp(opts, configFlag)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(cmd.Context()); err != nil {
				return err
			}

			state := "disabled"
			if a.monitor.ShouldSync() {
				state = "enabled"
			} else if a.cfg.IsSyncEnabled() {
				state = "enabled (offline)"
			}

			_, _ = fmt.Fprintf(stdout, "Sync:     %s\n", state)
			if account := a.monitor.Account(); account != "" {
				_, _ = fmt.Fprintf(stdout, "Account:  %s\n", account)
			}
			_, _ = fmt.Fprintf(stdout, "Tasks:    %d\n", a.cache.Len())
			_, _ = fmt.Fprintf(stdout, "Pending:  %d\n", a.coord.Pending().Len())

			last, err := tasksync.ReadLastSync(a.syncStateDir())
			if err != nil {
				return err
			}
			if last.IsZero() {
				_, _ = fmt.Fprintln(stdout, "Last sync: never")
			} else {
				_, _ = fmt.Fprintf(stdout, "Last sync: %s\n", last.Format("2006-01-02 15:04"))
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
