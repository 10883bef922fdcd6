package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the sync core. Callers branch on these with errors.Is
// rather than matching message text.
var (
	ErrNotFound         = errors.New("not found")
	ErrNotShared        = errors.New("not shared")
	ErrNoPermission     = errors.New("no permission")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTransport        = errors.New("remote transport failure")
	ErrLocalStore       = errors.New("local store failure")
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrTaskNotFound returns an error for when a task is not found.
func ErrTaskNotFound(taskID string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task %w: %s", ErrNotFound, taskID),
		Suggestion: "Check the task id or use 'todosync list' to see all tasks",
	}
}

// ErrCategoryNotFound returns an error for when a category is not found.
func ErrCategoryNotFound(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("category %w: %s", ErrNotFound, name),
		Suggestion: fmt.Sprintf("Create the category with 'todosync category create %s'", name),
	}
}

// ErrCategoryExists returns an error when a category name is already taken.
// Name comparison is case-insensitive.
func ErrCategoryExists(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("category already exists: %s", name),
		Suggestion: "Category names are unique ignoring case; pick a different name",
	}
}

// ErrTaskNotShared returns a distinct error when a task has no active
// sharing record, so callers can fall back to the local-only task.
func ErrTaskNotShared(taskID string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task is %w: %s", ErrNotShared, taskID),
		Suggestion: "Share the task first or operate on the local copy",
	}
}

// ErrEditNotPermitted returns a permission error for shared-task writes.
// This is a deliberate block, never retried or queued.
func ErrEditNotPermitted(email string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w to edit this task: %s", ErrNoPermission, email),
		Suggestion: "Ask the task owner to grant you edit access",
	}
}

// ErrSyncNotEnabled returns an error when remote sync is not configured.
func ErrSyncNotEnabled() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("sync is not enabled"),
		Suggestion: "Enable sync in your config file or run 'todosync config edit'",
	}
}

// ErrNoAccount returns an error when no signed-in account is available.
func ErrNoAccount() error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: no account configured", ErrNotAuthenticated),
		Suggestion: "Run 'todosync setup' to configure your account",
	}
}

// ErrRemoteOffline returns a transport error with a context-aware suggestion.
func ErrRemoteOffline(reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %s", ErrTransport, reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// ErrLocalPersistence returns an error for a failed local-store write.
// The coordinator rolls back the optimistic cache mutation on this error.
func ErrLocalPersistence(err error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %v", ErrLocalStore, err),
		Suggestion: "Check that the database file is writable and not corrupted",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format dd/MM/yyyy (e.g., 15/01/2026)",
	}
}

// ErrCredentialsNotFound returns an error when credentials are missing.
func ErrCredentialsNotFound(account string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials %w for account %s", ErrNotFound, account),
		Suggestion: "Run 'todosync setup' to store credentials",
	}
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNotShared reports whether err means the task has no sharing record.
func IsNotShared(err error) bool { return errors.Is(err, ErrNotShared) }

// IsPermission reports whether err is a permission denial.
func IsPermission(err error) bool { return errors.Is(err, ErrNoPermission) }

// IsTransport reports whether err is a remote transport failure.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}
