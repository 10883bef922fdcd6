// Package store defines the task records shared by every layer and the two
// persistence boundaries the sync core depends on: a durable LocalStore and
// a remote, tree-structured RemoteGateway.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Date layouts used for the locale date strings carried on records.
const (
	DateLayout     = "02/01/2006"
	DateTimeLayout = "02/01/2006 15:04"
	TimeLayout     = "15:04"
)

// RepeatType describes how a task recurs after its due date.
type RepeatType string

const (
	RepeatNone    RepeatType = ""
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
)

// Task is the canonical task record. ID is assigned once (client-generated
// offline, server-confirmed otherwise) and is the sole cache key.
type Task struct {
	ID             string
	Title          string
	Description    string
	DueDate        string // DateLayout
	DueTime        string // TimeLayout
	Completed      bool
	CompletionDate string
	Important      bool
	Category       string // Category.ID reference
	ReminderType   string
	HasReminder    bool
	Attachments    string
	RepeatType     RepeatType
	Repeating      bool
	SubTasks       []SubTask
	Shared         bool
	LastModified   int64 // unix milliseconds
	CreatedAt      string
	UpdatedAt      string
}

// NewTask returns a task with creation timestamps set and no ID assigned.
func NewTask(title, description, dueDate, dueTime string) Task {
	now := time.Now().Format(DateLayout)
	return Task{
		Title:       title,
		Description: description,
		DueDate:     dueDate,
		DueTime:     dueTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy. Records crossing async boundaries are always
// cloned so no goroutine observes a mutation in place.
func (t Task) Clone() Task {
	c := t
	if t.SubTasks != nil {
		c.SubTasks = make([]SubTask, len(t.SubTasks))
		copy(c.SubTasks, t.SubTasks)
	}
	return c
}

// Touch refreshes UpdatedAt and LastModified.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().Format(DateLayout)
	t.LastModified = time.Now().UnixMilli()
}

// SetCompleted flips the completion flag and keeps CompletionDate in step.
func (t *Task) SetCompleted(done bool) {
	t.Completed = done
	if done {
		t.CompletionDate = time.Now().Format(DateLayout)
	} else {
		t.CompletionDate = ""
	}
	t.Touch()
}

// SubTask is a child item of a task. TaskID references the parent task.
type SubTask struct {
	ID        string
	TaskID    string
	Title     string
	Completed bool
	CreatedAt string
}

// NewSubTask returns a subtask bound to the given parent task.
func NewSubTask(title, taskID string) SubTask {
	return SubTask{
		ID:        GenerateID(),
		TaskID:    taskID,
		Title:     title,
		CreatedAt: time.Now().Format(DateTimeLayout),
	}
}

// Category groups tasks. Name uniqueness (case-insensitive) is enforced at
// the write boundary, not here.
type Category struct {
	ID        string
	Name      string
	Color     string
	SortOrder int
	Default   bool
	CreatedAt string
	UpdatedAt string
}

// SharedUser invitation status values.
const (
	StatusPending  = "PENDING"
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
)

// SharedUser is a non-owner identity on a TaskShare, keyed by email.
type SharedUser struct {
	Email      string
	Name       string
	CanEdit    bool
	Status     string
	InvitedAt  string
	AcceptedAt string
}

// IsAccepted reports whether the invitation was accepted.
func (u SharedUser) IsAccepted() bool { return u.Status == StatusAccepted }

// TaskShare records who a task is shared with. The owner is implicitly
// full-access and never appears in SharedUsers.
type TaskShare struct {
	ID          string
	TaskID      string
	OwnerID     string
	OwnerEmail  string
	OwnerName   string
	SharedUsers []SharedUser
	Active      bool
	CreatedAt   string
	UpdatedAt   string
}

// IsOwner reports whether email is the owning identity.
func (s TaskShare) IsOwner(email string) bool {
	return s.OwnerEmail != "" && strings.EqualFold(s.OwnerEmail, email)
}

// IsUserShared reports whether email appears in the shared-user list.
func (s TaskShare) IsUserShared(email string) bool {
	for _, u := range s.SharedUsers {
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// User returns the SharedUser entry for email, or nil.
func (s TaskShare) User(email string) *SharedUser {
	for i := range s.SharedUsers {
		if strings.EqualFold(s.SharedUsers[i].Email, email) {
			return &s.SharedUsers[i]
		}
	}
	return nil
}

// CanUserEdit reports whether email may write the shared task: the owner
// always can, everyone else needs the edit flag.
func (s TaskShare) CanUserEdit(email string) bool {
	if s.IsOwner(email) {
		return true
	}
	u := s.User(email)
	return u != nil && u.CanEdit
}

// AddSharedUser inserts or replaces the entry for user.Email, keeping at
// most one SharedUser per email. The owner is never added.
func (s *TaskShare) AddSharedUser(user SharedUser) {
	if s.IsOwner(user.Email) {
		return
	}
	for i := range s.SharedUsers {
		if strings.EqualFold(s.SharedUsers[i].Email, user.Email) {
			s.SharedUsers[i] = user
			return
		}
	}
	s.SharedUsers = append(s.SharedUsers, user)
}

// RemoveSharedUser drops the entry for email, if present.
func (s *TaskShare) RemoveSharedUser(email string) {
	for i := range s.SharedUsers {
		if strings.EqualFold(s.SharedUsers[i].Email, email) {
			s.SharedUsers = append(s.SharedUsers[:i], s.SharedUsers[i+1:]...)
			return
		}
	}
}

// LocalStore is the durable local tier. Implementations must survive
// process restarts and surface failures as ordinary errors.
type LocalStore interface {
	InsertTask(ctx context.Context, task Task) error
	UpdateTask(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, taskID string) error
	GetTask(ctx context.Context, taskID string) (*Task, error)
	GetAllTasks(ctx context.Context) ([]Task, error)

	// SubTasksByParent serves cascade lookups without scanning the full
	// subtask collection.
	SubTasksByParent(ctx context.Context, taskID string) ([]SubTask, error)

	InsertCategory(ctx context.Context, cat Category) error
	UpdateCategory(ctx context.Context, cat Category) error
	DeleteCategory(ctx context.Context, categoryID string) error
	GetAllCategories(ctx context.Context) ([]Category, error)

	Close() error
}

// Snapshot is one full-state value pushed by a subscription.
type Snapshot struct {
	Path  string
	Value map[string]any
}

// LeafValueKey wraps a scalar leaf write arriving on a subscription, so
// snapshot values are always keyed maps.
const LeafValueKey = ".value"

// Subscription is a long-lived watch on a remote path. Transport failures
// are reported on Errors without tearing the subscription down.
type Subscription interface {
	Updates() <-chan Snapshot
	Errors() <-chan error
	Close() error
}

// RemoteGateway abstracts the remote multi-writer record tree. Paths are
// slash-delimited, keyed by sanitized account identity and record id.
type RemoteGateway interface {
	// Write sets the value at path, creating it if absent.
	Write(ctx context.Context, path string, value any) error
	// Push stores value under a server-assigned child key of path and
	// returns that key.
	Push(ctx context.Context, path string, value any) (string, error)
	// ReadOnce fetches the current value at path. A missing node yields a
	// nil map and no error.
	ReadOnce(ctx context.Context, path string) (map[string]any, error)
	// Subscribe opens a long-lived stream of full snapshots of path.
	Subscribe(ctx context.Context, path string) (Subscription, error)
	// RemovePath deletes the node at path.
	RemovePath(ctx context.Context, path string) error

	Close() error
}

// GenerateID generates a unique identifier using UUID v4. Used for records
// created while offline; the remote may later assign its own key.
func GenerateID() string {
	return uuid.New().String()
}

// FindCategoryByName searches categories by name, case-insensitive.
// Returns nil if no match is found.
func FindCategoryByName(cats []Category, name string) *Category {
	for _, c := range cats {
		if strings.EqualFold(c.Name, name) {
			return &c
		}
	}
	return nil
}
