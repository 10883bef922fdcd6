// Package reminder decides when due tasks should trigger notifications.
package reminder

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"todosync/internal/notification"
	"todosync/store"
)

// Notifier receives reminders that come due.
type Notifier interface {
	Send(n notification.Notification) error
}

// Service tracks which reminders already fired so periodic checks do not
// notify twice for the same occurrence. State is per-process; a restart
// re-fires reminders that are still due, which is the safer failure mode.
type Service struct {
	mu       sync.Mutex
	notifier Notifier
	fired    map[string]bool
}

// NewService creates a reminder service delivering through notifier.
func NewService(notifier Notifier) *Service {
	return &Service{
		notifier: notifier,
		fired:    make(map[string]bool),
	}
}

// Check fires notifications for tasks whose reminder window has been
// reached and returns the tasks that fired.
func (s *Service) Check(tasks []store.Task, now time.Time) []store.Task {
	var due []store.Task
	for _, t := range tasks {
		if !shouldRemind(t, now) {
			continue
		}
		key := t.ID + "|" + t.DueDate

		s.mu.Lock()
		seen := s.fired[key]
		if !seen {
			s.fired[key] = true
		}
		s.mu.Unlock()
		if seen {
			continue
		}

		n := notification.Notification{Title: "Task due", Message: t.Title}
		if t.DueTime != "" {
			n.Message = fmt.Sprintf("%s at %s", t.Title, t.DueTime)
		}
		if err := s.notifier.Send(n); err != nil {
			// Leave the key marked; a broken notifier should not
			// produce a notification storm on recovery.
			continue
		}
		due = append(due, t)
	}
	return due
}

// Dismiss suppresses the reminder for one occurrence of a task.
func (s *Service) Dismiss(taskID, dueDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[taskID+"|"+dueDate] = true
}

// shouldRemind reports whether the task's reminder moment has arrived.
// The reminder type is a lead interval before the due time; tasks with a
// date but no time remind at the start of the due day.
func shouldRemind(t store.Task, now time.Time) bool {
	if !t.HasReminder || t.Completed || t.DueDate == "" {
		return false
	}

	var due time.Time
	var err error
	if t.DueTime != "" {
		due, err = time.ParseInLocation(store.DateTimeLayout, t.DueDate+" "+t.DueTime, time.Local)
	} else {
		due, err = time.ParseInLocation(store.DateLayout, t.DueDate, time.Local)
	}
	if err != nil {
		return false
	}

	lead, err := ParseInterval(t.ReminderType)
	if err != nil {
		lead = 0
	}
	return !now.Before(due.Add(-lead))
}

// ParseInterval parses a lead interval like "15m", "2h", or "1d". The empty
// string is zero lead (remind exactly at the due time).
func ParseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid reminder interval %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid reminder interval %q", s)
	}
	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid reminder interval %q", s)
	}
}
