package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"todosync/internal/calendar"
	"todosync/internal/reminder"
	tasksync "todosync/internal/sync"
	"todosync/internal/utils"
	"todosync/store"
)

// newAddCmd creates the 'add' subcommand
func newAddCmd(stdout io.Writer, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Long:  "Add a task to the local database. When sync is enabled the task is pushed to the remote tree; offline it queues for retry.",
		Args:  cobra.ExactArgs(1),
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

			description, _ := cmd.Flags().GetString("description")
			dueDate, _ := cmd.Flags().GetString("due-date")
			dueTime, _ := cmd.Flags().GetString("due-time")
			important, _ := cmd.Flags().GetBool("important")
			categoryName, _ := cmd.Flags().GetString("category")
			repeat, _ := cmd.Flags().GetString("repeat")
			remind, _ := cmd.Flags().GetString("reminder")

			dueDate, err = calendar.ParseDueDate(dueDate, time.Now())
			if err != nil {
				return err
			}
			if dueTime != "" {
				if _, err := time.Parse(store.TimeLayout, dueTime); err != nil {
					return fmt.Errorf("time must be in HH:MM format, got %q", dueTime)
				}
			}

			task := store.NewTask(args[0], description, dueDate, dueTime)
			task.Important = important
			if repeat != "" {
				rt, err := parseRepeat(repeat)
				if err != nil {
					return err
				}
				task.RepeatType = rt
				task.Repeating = true
			}
			if categoryName != "" {
				cat, err := resolveCategory(ctx, a, categoryName)
				if err != nil {
					return err
				}
				task.Category = cat.ID
			}
			if cmd.Flags().Changed("reminder") {
				if _, err := reminder.ParseInterval(remind); err != nil {
					return err
				}
				task.HasReminder = true
				task.ReminderType = remind
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			return performTask(a, task, tasksync.OpAdd, "Added", opts, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("description", "d", "", "Task description")
	cmd.Flags().String("due-date", "", "Due date (DD/MM/YYYY, today, tomorrow, +7d, +2w, +1m)")
	cmd.Flags().String("due-time", "", "Due time in HH:MM format")
	cmd.Flags().BoolP("important", "i", false, "Mark as important")
	cmd.Flags().String("category", "", "Category name")
	cmd.Flags().String("repeat", "", "Repeat interval (daily, weekly, monthly)")
	cmd.Flags().String("reminder", "", "Remind before the due time (e.g. 15m, 2h, 1d; empty for at due time)")
	return cmd
}

// newListCmd creates the 'list' subcommand
func newListCmd(stdout io.Writer, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"get", "ls"},
		Short:   "List tasks",
		Long:    "List tasks from the cache. By default shows incomplete tasks; filter by date or include completed ones.",
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

			date, _ := cmd.Flags().GetString("date")
			today, _ := cmd.Flags().GetBool("today")
			all, _ := cmd.Flags().GetBool("all")
			jsonOutput, _ := cmd.Flags().GetBool("json")

			if today {
				date = "today"
			}
			date, err = calendar.ParseDueDate(date, time.Now())
			if err != nil {
				return err
			}

			var tasks []store.Task
			if date != "" {
				tasks = a.cache.GetTasksForDate(date)
			} else {
				tasks = a.cache.GetAllTasks()
			}
			if !all {
				var open []store.Task
				for _, t := range tasks {
					if !t.Completed {
						open = append(open, t)
					}
				}
				tasks = open
			}

			sort.Slice(tasks, func(i, j int) bool {
				if tasks[i].DueDate != tasks[j].DueDate {
					return tasks[i].DueDate < tasks[j].DueDate
				}
				return tasks[i].Title < tasks[j].Title
			})

			if jsonOutput {
				return outputTaskListJSON(tasks, stdout)
			}
			printTaskTable(tasks, stdout)
			if opts != nil && opts.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("date", "", "Show tasks due on a date (DD/MM/YYYY or relative like +7d)")
	cmd.Flags().Bool("today", false, "Show tasks due today")
	cmd.Flags().BoolP("all", "a", false, "Include completed tasks")
	return cmd
}

// newDoneCmd creates the 'done' subcommand
func newDoneCmd(stdout io.Writer, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "done [title]",
		Short: "Complete a task",
		Long:  "Mark a task as completed. Repeating tasks advance to their next occurrence instead.",
		Args:  cobra.ExactArgs(1),
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

			task, err := a.findTask(args[0], opts != nil && opts.NoPrompt)
			if err != nil {
				return err
			}

			verb := "Completed"
			if task.Repeating && task.RepeatType != store.RepeatNone {
				task.DueDate = calendar.NextDueDate(task.DueDate, task.RepeatType)
				verb = "Rescheduled"
			} else {
				task.Completed = true
				task.CompletionDate = time.Now().Format(store.DateLayout)
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			return performTask(a, task, tasksync.OpUpdate, verb, opts, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newUpdateCmd creates the 'update' subcommand
func newUpdateCmd(stdout io.Writer, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [title]",
		Short: "Update a task",
		Long:  "Modify fields of an existing task. Only flags that are set change; pass \"\" to clear a date or time.",
		Args:  cobra.ExactArgs(1),
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

			task, err := a.findTask(args[0], opts != nil && opts.NoPrompt)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("title") {
				title, _ := cmd.Flags().GetString("title")
				if title == "" {
					return fmt.Errorf("task title cannot be empty")
				}
				task.Title = title
			}
			if cmd.Flags().Changed("description") {
				task.Description, _ = cmd.Flags().GetString("description")
			}
			if cmd.Flags().Changed("due-date") {
				raw, _ := cmd.Flags().GetString("due-date")
				dueDate, err := calendar.ParseDueDate(raw, time.Now())
				if err != nil {
					return err
				}
				task.DueDate = dueDate
			}
			if cmd.Flags().Changed("due-time") {
				dueTime, _ := cmd.Flags().GetString("due-time")
				if dueTime != "" {
					if _, err := time.Parse(store.TimeLayout, dueTime); err != nil {
						return fmt.Errorf("time must be in HH:MM format, got %q", dueTime)
					}
				}
				task.DueTime = dueTime
			}
			if cmd.Flags().Changed("important") {
				task.Important, _ = cmd.Flags().GetBool("important")
			}
			if cmd.Flags().Changed("category") {
				name, _ := cmd.Flags().GetString("category")
				if name == "" {
					task.Category = ""
				} else {
					cat, err := resolveCategory(ctx, a, name)
					if err != nil {
						return err
					}
					task.Category = cat.ID
				}
			}
			if cmd.Flags().Changed("repeat") {
				repeat, _ := cmd.Flags().GetString("repeat")
				if repeat == "" {
					task.RepeatType = store.RepeatNone
					task.Repeating = false
				} else {
					rt, err := parseRepeat(repeat)
					if err != nil {
						return err
					}
					task.RepeatType = rt
					task.Repeating = true
				}
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			return performTask(a, task, tasksync.OpUpdate, "Updated", opts, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("title", "", "New task title")
	cmd.Flags().StringP("description", "d", "", "Task description")
	cmd.Flags().String("due-date", "", "Due date (DD/MM/YYYY or relative, \"\" to clear)")
	cmd.Flags().String("due-time", "", "Due time in HH:MM format (\"\" to clear)")
	cmd.Flags().BoolP("important", "i", false, "Mark as important")
	cmd.Flags().String("category", "", "Category name (\"\" to clear)")
	cmd.Flags().String("repeat", "", "Repeat interval (daily, weekly, monthly, \"\" to clear)")
	return cmd
}

// newDeleteCmd creates the 'delete' subcommand
func newDeleteCmd(stdout io.Writer, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete [title]",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
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

			noPrompt := opts != nil && opts.NoPrompt
			task, err := a.findTask(args[0], noPrompt)
			if err != nil {
				return err
			}

			if !noPrompt {
				q := fmt.Sprintf("Delete task %q?", task.Title)
				if !utils.PromptYesNoWithReader(q, cmd.InOrStdin(), stdout) {
					_, _ = fmt.Fprintln(stdout, "Cancelled.")
					return nil
				}
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			return performTask(a, task, tasksync.OpDelete, "Deleted", opts, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// performTask runs a mutation through the coordinator and reports the result.
// The callback fires after the local persist and the remote attempt, so by
// the time it returns the change is durable or rolled back.
func performTask(a *app, task store.Task, op tasksync.Op, verb string, opts *Options, stdout io.Writer, jsonOutput bool) error {
	results := make(chan tasksync.Result, 1)
	a.coord.Perform(task, op, func(r tasksync.Result) {
		results <- r
	})
	r := <-results

	if r.Err != nil {
		return r.Err
	}

	if jsonOutput {
		return outputActionJSON(strings.ToLower(verb), r, stdout)
	}

	_, _ = fmt.Fprintf(stdout, "%s task: %s\n", verb, r.Task.Title)
	if r.Queued {
		_, _ = fmt.Fprintf(stdout, "Saved locally; will sync when online.\n")
	}
	if opts != nil && opts.NoPrompt {
		_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
	}
	return nil
}

// resolveCategory finds a category by name, case-insensitively.
func resolveCategory(ctx context.Context, a *app, name string) (store.Category, error) {
	cats, err := a.local.GetAllCategories(ctx)
	if err != nil {
		return store.Category{}, err
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return store.Category{}, utils.ErrCategoryNotFound(name)
}

func parseRepeat(s string) (store.RepeatType, error) {
	switch strings.ToLower(s) {
	case "daily":
		return store.RepeatDaily, nil
	case "weekly":
		return store.RepeatWeekly, nil
	case "monthly":
		return store.RepeatMonthly, nil
	default:
		return store.RepeatNone, fmt.Errorf("repeat must be daily, weekly, or monthly, got %q", s)
	}
}

// printTaskTable renders tasks in a fixed-width table with status markers.
func printTaskTable(tasks []store.Task, stdout io.Writer) {
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(stdout, "No tasks.")
		return
	}

	now := time.Now()
	today := now.Format(store.DateLayout)
	_, _ = fmt.Fprintf(stdout, "%-3s %-40s %-12s %-7s\n", "", "TITLE", "DUE", "TIME")
	for _, t := range tasks {
		marker := "[ ]"
		if t.Completed {
			marker = "[x]"
		} else if t.DueDate == today && t.DueTime != "" && calendar.IsTimeOverdue(t.DueTime, now) {
			marker = "[!]"
		}
		title := t.Title
		if t.Important {
			title = "* " + title
		}
		if t.Shared {
			title = title + " (shared)"
		}
		_, _ = fmt.Fprintf(stdout, "%-3s %-40s %-12s %-7s\n", marker, title, t.DueDate, t.DueTime)
	}
}

// JSON output structures
type taskJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	DueTime     string `json:"dueTime,omitempty"`
	Completed   bool   `json:"completed"`
	Important   bool   `json:"important"`
	Category    string `json:"category,omitempty"`
	Repeat      string `json:"repeat,omitempty"`
	Shared      bool   `json:"shared,omitempty"`
	SubTasks    int    `json:"subTasks,omitempty"`
}

type listTasksResponse struct {
	Tasks  []taskJSON `json:"tasks"`
	Count  int        `json:"count"`
	Result string     `json:"result"`
}

type actionResponse struct {
	Action string   `json:"action"`
	Task   taskJSON `json:"task"`
	Queued bool     `json:"queued"`
	Result string   `json:"result"`
}

func taskToJSON(t store.Task) taskJSON {
	return taskJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		DueTime:     t.DueTime,
		Completed:   t.Completed,
		Important:   t.Important,
		Category:    t.Category,
		Repeat:      string(t.RepeatType),
		Shared:      t.Shared,
		SubTasks:    len(t.SubTasks),
	}
}

func outputTaskListJSON(tasks []store.Task, stdout io.Writer) error {
	jsonTasks := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		jsonTasks = append(jsonTasks, taskToJSON(t))
	}

	response := listTasksResponse{
		Tasks:  jsonTasks,
		Count:  len(jsonTasks),
		Result: ResultInfoOnly,
	}

	jsonBytes, err := json.Marshal(response)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

func outputActionJSON(action string, r tasksync.Result, stdout io.Writer) error {
	response := actionResponse{
		Action: action,
		Task:   taskToJSON(r.Task),
		Queued: r.Queued,
		Result: ResultActionCompleted,
	}

	jsonBytes, err := json.Marshal(response)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}
