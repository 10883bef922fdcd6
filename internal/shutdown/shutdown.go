// Package shutdown coordinates graceful teardown for long-running commands.
// Cleanup functions run in LIFO order so dependencies close after their
// dependents (subscriptions before the gateway, the gateway before the store).
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"todosync/internal/utils"
)

// CleanupFunc performs one teardown step. The context is cancelled when the
// overall shutdown deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager coordinates signal handling and cleanup ordering.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// NewManager creates a shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{ctx: ctx, cancel: cancel}
}

// RegisterCleanup adds a teardown step. Steps run in reverse registration
// order during Wait.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// HandleSignals installs SIGINT/SIGTERM handlers that trigger Shutdown.
func (m *Manager) HandleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			utils.Debugf("shutdown: received %v", sig)
			m.Shutdown()
		case <-m.ctx.Done():
		}
		signal.Stop(sigCh)
	}()
}

// Shutdown initiates teardown. Safe to call more than once; only the first
// call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(m.cancel)
}

// IsShutdown reports whether shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	select {
	case <-m.ctx.Done():
		return true
	default:
		return false
	}
}

// Context is cancelled when shutdown begins. Long-running operations should
// derive from it.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Wait blocks until shutdown is initiated, then runs every registered
// cleanup in LIFO order. Cleanup errors are logged and do not stop the
// remaining steps. Returns ctx.Err() if the deadline passes first.
func (m *Manager) Wait(ctx context.Context) error {
	<-m.ctx.Done()

	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger := utils.GetLogger()
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i].fn(ctx); err != nil {
				logger.Warn("shutdown: cleanup %q failed: %v", cleanups[i].name, err)
			}
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
