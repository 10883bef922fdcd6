package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorWithSuggestionMessage(t *testing.T) {
	err := WrapWithSuggestion(errors.New("something broke"), "try again")

	msg := err.Error()
	if !strings.Contains(msg, "something broke") {
		t.Errorf("message missing cause: %q", msg)
	}
	if !strings.Contains(msg, "Suggestion: try again") {
		t.Errorf("message missing suggestion: %q", msg)
	}
}

func TestErrorWithSuggestionUnwrap(t *testing.T) {
	base := errors.New("base failure")
	err := WrapWithSuggestion(base, "hint")

	if !errors.Is(err, base) {
		t.Error("wrapped error should match base with errors.Is")
	}

	var sugg *ErrorWithSuggestion
	if !errors.As(err, &sugg) {
		t.Fatal("expected ErrorWithSuggestion in chain")
	}
	if sugg.GetSuggestion() != "hint" {
		t.Errorf("GetSuggestion() = %q, want %q", sugg.GetSuggestion(), "hint")
	}
}

func TestErrTaskNotFound(t *testing.T) {
	err := ErrTaskNotFound("abc-123")

	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("message missing task id: %q", err.Error())
	}
}

func TestErrCategoryNotFound(t *testing.T) {
	err := ErrCategoryNotFound("Work")

	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	if !strings.Contains(err.Error(), "Work") {
		t.Errorf("message missing category name: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "category create Work") {
		t.Errorf("suggestion missing create command: %q", err.Error())
	}
}

func TestErrCategoryExistsIsNotANotFound(t *testing.T) {
	err := ErrCategoryExists("Home")

	if IsNotFound(err) {
		t.Error("category-exists should not match IsNotFound")
	}
	if !strings.Contains(err.Error(), "Home") {
		t.Errorf("message missing category name: %q", err.Error())
	}
}

func TestErrTaskNotShared(t *testing.T) {
	err := ErrTaskNotShared("task-9")

	if !IsNotShared(err) {
		t.Error("expected IsNotShared to be true")
	}
	if IsNotFound(err) {
		t.Error("not-shared should not match IsNotFound")
	}
}

func TestErrEditNotPermitted(t *testing.T) {
	err := ErrEditNotPermitted("viewer@example.com")

	if !IsPermission(err) {
		t.Error("expected IsPermission to be true")
	}
	if !strings.Contains(err.Error(), "viewer@example.com") {
		t.Errorf("message missing email: %q", err.Error())
	}
}

func TestErrNoAccount(t *testing.T) {
	err := ErrNoAccount()

	if !errors.Is(err, ErrNotAuthenticated) {
		t.Error("expected chain to include ErrNotAuthenticated")
	}
	if !strings.Contains(err.Error(), "todosync setup") {
		t.Errorf("suggestion should point to setup: %q", err.Error())
	}
}

func TestErrSyncNotEnabled(t *testing.T) {
	err := ErrSyncNotEnabled()

	if !strings.Contains(err.Error(), "sync is not enabled") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestErrRemoteOffline(t *testing.T) {
	err := ErrRemoteOffline("connection refused")

	if !IsTransport(err) {
		t.Error("expected IsTransport to be true")
	}
}

func TestErrLocalPersistence(t *testing.T) {
	err := ErrLocalPersistence(errors.New("disk full"))

	if !errors.Is(err, ErrLocalStore) {
		t.Error("expected chain to include ErrLocalStore")
	}
	if IsTransport(err) {
		t.Error("local-store failure should not match IsTransport")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("message missing cause: %q", err.Error())
	}
}

func TestErrCredentialsNotFound(t *testing.T) {
	err := ErrCredentialsNotFound("user@example.com")

	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	if !strings.Contains(err.Error(), "user@example.com") {
		t.Errorf("message missing account: %q", err.Error())
	}
}

func TestErrInvalidDate(t *testing.T) {
	err := ErrInvalidDate("2026-01-15")

	if !strings.Contains(err.Error(), "2026-01-15") {
		t.Errorf("message missing input: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "dd/MM/yyyy") {
		t.Errorf("suggestion missing format hint: %q", err.Error())
	}
}

func TestSmartSuggestions(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"lookup firebase.example: no such host", "DNS"},
		{"dial tcp: connection refused", "server"},
		{"context deadline exceeded: i/o timeout", "slow or unreachable"},
		{"tls handshake failed", "internet connection"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			err := ErrRemoteOffline(tt.reason)
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("suggestion for %q missing %q: %q", tt.reason, tt.want, err.Error())
			}
		})
	}
}
