package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"todosync/internal/notification"
	"todosync/internal/reminder"
	"todosync/internal/shutdown"
	tasksync "todosync/internal/sync"
	"todosync/internal/utils"
	"todosync/internal/watcher"
)

// shutdownGrace is how long cleanup may take after a signal.
const shutdownGrace = 10 * time.Second

// newWatchCmd creates the 'watch' subcommand
func newWatchCmd(stdout io.Writer, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run in the foreground and sync continuously",
		Long:  "Watch the local database for changes made by other processes and push them to the remote tree. Also subscribes to live updates for tasks shared with other accounts. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			a, err := openApp(opts, configFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.load(ctx); err != nil {
				a.close()
				return err
			}

			blog := utils.NewBackgroundLogger(a.cfg.GetWatcherLogPath(), a.cfg.IsBackgroundLoggingEnabled())

			mgr := shutdown.NewManager()
			mgr.HandleSignals()
			mgr.RegisterCleanup("app", func(context.Context) error {
				a.close()
				return nil
			})
			mgr.RegisterCleanup("background-log", func(context.Context) error {
				blog.Close()
				return nil
			})

			dbPath := a.cfg.GetDatabasePath()
			if opts != nil && opts.DBPath != "" {
				dbPath = opts.DBPath
			}
			w, err := watcher.New(&watcher.Config{
				DBPath:           dbPath,
				DebounceDuration: a.cfg.GetWatcherDebounce(),
				QuietPeriod:      a.cfg.GetWatcherQuietPeriod(),
				OnChange: func() {
					blog.Printf("database changed, syncing")
					syncOnChange(mgr.Context(), a, blog)
				},
			})
			if err != nil {
				mgr.Shutdown()
				cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				_ = mgr.Wait(cleanupCtx)
				return err
			}
			if err := w.Start(); err != nil {
				mgr.Shutdown()
				cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				_ = mgr.Wait(cleanupCtx)
				return err
			}
			mgr.RegisterCleanup("watcher", func(context.Context) error {
				w.Stop()
				return nil
			})

			listenSharedTasks(mgr.Context(), a, blog)
			startReminderLoop(mgr, a, blog)

			_, _ = fmt.Fprintf(stdout, "Watching %s (Ctrl-C to stop)\n", dbPath)
			if blog.IsEnabled() {
				_, _ = fmt.Fprintf(stdout, "Logging to %s\n", blog.GetLogPath())
			}

			cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := mgr.Wait(cleanupCtx); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "Stopped.")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// syncOnChange pushes local state after an external database change. A full
// sync needs connectivity; offline it retries only the pending set so the
// queue keeps draining once the monitor flips back online.
func syncOnChange(ctx context.Context, a *app, blog *utils.BackgroundLogger) {
	if a.monitor.ShouldSync() {
		if err := a.coord.SyncAll(ctx); err != nil {
			blog.Printf("sync failed: %v", err)
			return
		}
		if err := tasksync.RecordLastSync(a.syncStateDir(), time.Now()); err != nil {
			blog.Printf("could not record sync time: %v", err)
		}
		blog.Printf("synced %d tasks", a.cache.Len())
		return
	}
	a.coord.SyncPendingTasks()
}

// reminderInterval is how often due reminders are evaluated.
const reminderInterval = time.Minute

// startReminderLoop checks cached tasks for due reminders until shutdown.
func startReminderLoop(mgr *shutdown.Manager, a *app, blog *utils.BackgroundLogger) {
	channels := []notification.Channel{notification.NewDesktopChannel()}
	if blog.IsEnabled() {
		channels = append(channels, notification.NewLogChannel(blog.GetLogPath()))
	}
	notifier := notification.NewManager(channels...)
	svc := reminder.NewService(notifier)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(reminderInterval)
		defer ticker.Stop()
		for {
			select {
			case <-mgr.Context().Done():
				return
			case now := <-ticker.C:
				for _, t := range svc.Check(a.cache.GetAllTasks(), now) {
					blog.Printf("reminder fired for %q", t.Title)
				}
			}
		}
	}()

	mgr.RegisterCleanup("reminders", func(context.Context) error {
		<-done
		return notifier.Close()
	})
}

// listenSharedTasks subscribes to live updates for every cached shared task.
func listenSharedTasks(ctx context.Context, a *app, blog *utils.BackgroundLogger) {
	if a.share == nil {
		return
	}
	a.share.SetErrorHandler(func(taskID string, err error) {
		blog.Printf("shared task %s: %v", taskID, err)
	})
	for _, t := range a.cache.GetAllTasks() {
		if !t.Shared {
			continue
		}
		if err := a.share.StartListeningForTaskUpdates(ctx, t.ID); err != nil {
			blog.Printf("could not subscribe to shared task %s: %v", t.ID, err)
		}
	}
}
