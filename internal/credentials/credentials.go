// Package credentials stores the remote auth token in the OS-native keyring
// with fallback to an environment variable.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Source indicates where a credential was retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// EnvToken is the fallback environment variable for the remote auth token.
const EnvToken = "TODOSYNC_FIREBASE_TOKEN"

const service = "todosync"

// Info contains the credential lookup result.
type Info struct {
	Source  Source
	Account string
	Token   string
	Found   bool
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// NewManager creates a new credential manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// Set stores the account's auth token in the keyring
func (m *Manager) Set(_ context.Context, account, token string) error {
	account = normalizeAccount(account)
	if account == "" {
		return fmt.Errorf("account is required")
	}
	return m.keyring.Set(service, account, token)
}

// Get retrieves the auth token, keyring first, then the environment.
func (m *Manager) Get(_ context.Context, account string) (*Info, error) {
	account = normalizeAccount(account)

	token, err := m.keyring.Get(service, account)
	if err == nil && token != "" {
		return &Info{
			Source:  SourceKeyring,
			Account: account,
			Token:   token,
			Found:   true,
		}, nil
	}

	if envToken := os.Getenv(EnvToken); envToken != "" {
		return &Info{
			Source:  SourceEnvironment,
			Account: account,
			Token:   envToken,
			Found:   true,
		}, nil
	}

	return &Info{
		Source:  SourceNone,
		Account: account,
		Found:   false,
	}, nil
}

// Delete removes the account's token from the keyring. Idempotent: deleting
// an absent entry is not an error.
func (m *Manager) Delete(_ context.Context, account string) error {
	account = normalizeAccount(account)
	err := m.keyring.Delete(service, account)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil
	}
	return err
}
