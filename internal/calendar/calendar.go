// Package calendar provides the pure date/recurrence predicates used by the
// cache's date-filtered reads. These run for every task on every calendar
// render, so they are side-effect-free and never touch I/O.
package calendar

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"todosync/internal/utils"
	"todosync/store"
)

// relativePattern matches offsets like +7d, -3d, +2w, +1m.
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// ParseDueDate resolves a user-supplied due date into store.DateLayout.
// Accepts absolute dates (dd/MM/yyyy), the keywords today, tomorrow and
// yesterday, and signed offsets from today (+7d, -3d, +2w, +1m). Keywords
// and offsets resolve against now. Empty input returns an empty string,
// which callers treat as "no due date".
func ParseDueDate(input string, now time.Time) (string, error) {
	if input == "" {
		return "", nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lower := strings.ToLower(input)

	switch lower {
	case "today":
		return today.Format(store.DateLayout), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1).Format(store.DateLayout), nil
	case "yesterday":
		return today.AddDate(0, 0, -1).Format(store.DateLayout), nil
	}

	if m := relativePattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", utils.ErrInvalidDate(input)
		}
		if m[1] == "-" {
			n = -n
		}
		switch m[3] {
		case "d":
			today = today.AddDate(0, 0, n)
		case "w":
			today = today.AddDate(0, 0, n*7)
		case "m":
			today = today.AddDate(0, n, 0)
		}
		return today.Format(store.DateLayout), nil
	}

	parsed, err := time.ParseInLocation(store.DateLayout, input, now.Location())
	if err != nil {
		return "", utils.ErrInvalidDate(input)
	}
	return parsed.Format(store.DateLayout), nil
}

// IsTaskOnDate reports whether a task occurs on targetDate (store.DateLayout).
// Non-repeating tasks match only their exact due date. Repeating tasks match
// any qualifying date on or after the due date. Malformed date strings
// degrade to direct string comparison.
func IsTaskOnDate(task store.Task, targetDate string) bool {
	if task.DueDate == "" {
		return false
	}

	due, err := time.Parse(store.DateLayout, task.DueDate)
	if err != nil {
		return task.DueDate == targetDate
	}
	target, err := time.Parse(store.DateLayout, targetDate)
	if err != nil {
		return task.DueDate == targetDate
	}

	if target.Before(due) {
		return false
	}

	if !task.Repeating || task.RepeatType == store.RepeatNone {
		return task.DueDate == targetDate
	}

	switch task.RepeatType {
	case store.RepeatDaily:
		return true
	case store.RepeatWeekly:
		if target.Weekday() != due.Weekday() {
			return false
		}
		days := int(target.Sub(due).Hours() / 24)
		return days >= 0 && days%7 == 0
	case store.RepeatMonthly:
		if target.Day() != due.Day() {
			return false
		}
		months := (target.Year()-due.Year())*12 + int(target.Month()) - int(due.Month())
		return months >= 0
	default:
		return task.DueDate == targetDate
	}
}

// IsTimeOverdue reports whether taskTime (store.TimeLayout) is earlier than
// the current wall-clock time of day. Malformed times are never overdue.
func IsTimeOverdue(taskTime string, now time.Time) bool {
	t, err := time.Parse(store.TimeLayout, taskTime)
	if err != nil {
		return false
	}
	taskMinutes := t.Hour()*60 + t.Minute()
	nowMinutes := now.Hour()*60 + now.Minute()
	return taskMinutes < nowMinutes
}

// NextDueDate returns the due date of the next occurrence after completing a
// repeating task. Returns the input unchanged for non-repeating tasks or
// malformed dates.
func NextDueDate(dueDate string, repeat store.RepeatType) string {
	due, err := time.Parse(store.DateLayout, dueDate)
	if err != nil {
		return dueDate
	}
	switch repeat {
	case store.RepeatDaily:
		due = due.AddDate(0, 0, 1)
	case store.RepeatWeekly:
		due = due.AddDate(0, 0, 7)
	case store.RepeatMonthly:
		due = due.AddDate(0, 1, 0)
	default:
		return dueDate
	}
	return due.Format(store.DateLayout)
}

// IsSameDay reports whether two times fall on the same calendar day.
func IsSameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
