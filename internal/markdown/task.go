// Package markdown renders tasks as a portable checklist for export.
package markdown

import (
	"strings"

	"todosync/store"
)

// Render formats tasks as a markdown checklist grouped by category.
// Categories resolve ids to display names; tasks with no category (or an
// unknown id) land in a trailing unfiled section.
func Render(tasks []store.Task, categories []store.Category) string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	grouped := make(map[string][]store.Task)
	var order []string
	for _, t := range tasks {
		name := names[t.Category]
		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], t)
	}

	var sb strings.Builder
	sb.WriteString("# Tasks\n")
	for _, name := range order {
		sb.WriteString("\n")
		if name == "" {
			sb.WriteString("## Unfiled\n")
		} else {
			sb.WriteString("## " + name + "\n")
		}
		for _, t := range grouped[name] {
			writeTask(&sb, t)
		}
	}
	return sb.String()
}

func writeTask(sb *strings.Builder, t store.Task) {
	sb.WriteString("- [")
	sb.WriteString(statusChar(t.Completed))
	sb.WriteString("] ")
	sb.WriteString(FormatTaskText(t))
	sb.WriteString("\n")
	for _, st := range t.SubTasks {
		sb.WriteString("  - [")
		sb.WriteString(statusChar(st.Completed))
		sb.WriteString("] ")
		sb.WriteString(st.Title)
		sb.WriteString("\n")
	}
}

func statusChar(completed bool) string {
	if completed {
		return "x"
	}
	return " "
}

// FormatTaskText renders one task line with inline markers: @due date,
// ! for important, (interval) for repeats.
func FormatTaskText(t store.Task) string {
	parts := []string{t.Title}

	if t.Important {
		parts = append(parts, "!")
	}
	if t.DueDate != "" {
		due := "@" + t.DueDate
		if t.DueTime != "" {
			due += " " + t.DueTime
		}
		parts = append(parts, due)
	}
	if t.Repeating && t.RepeatType != store.RepeatNone {
		parts = append(parts, "("+string(t.RepeatType)+")")
	}

	return strings.Join(parts, " ")
}
