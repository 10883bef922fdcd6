// Package connectivity tracks whether remote sync is currently possible:
// network reachability plus a signed-in account that opted into sync.
package connectivity

import (
	"sync"

	"todosync/internal/utils"
)

// Monitor answers whether remote sync is currently possible. State
// transitions come from the gateway call sites (a transport failure marks
// offline, any success marks online) and from config.
type Monitor struct {
	mu          sync.RWMutex
	online      bool
	account     string
	syncEnabled bool
	callbacks   []func()
}

// NewMonitor starts optimistic: reachability is assumed until a transport
// failure proves otherwise.
func NewMonitor(account string, syncEnabled bool) *Monitor {
	return &Monitor{
		online:      true,
		account:     account,
		syncEnabled: syncEnabled,
	}
}

// IsOnline reports the current reachability belief.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// ShouldSync reports whether remote pushes should be attempted now.
func (m *Monitor) ShouldSync() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online && m.account != "" && m.syncEnabled
}

// Account returns the signed-in account email, or "" when signed out.
func (m *Monitor) Account() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.account
}

// OnChange registers a callback for sync-state transitions. Callbacks run
// on the goroutine that caused the transition and must not block.
func (m *Monitor) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// SetOnline records a reachability change observed at a gateway call site.
func (m *Monitor) SetOnline(online bool) {
	m.transition(func() bool {
		if m.online == online {
			return false
		}
		m.online = online
		return true
	})
}

// SetAccount records a sign-in or sign-out.
func (m *Monitor) SetAccount(account string) {
	m.transition(func() bool {
		if m.account == account {
			return false
		}
		m.account = account
		return true
	})
}

// SetSyncEnabled records the user's sync opt-in preference.
func (m *Monitor) SetSyncEnabled(enabled bool) {
	m.transition(func() bool {
		if m.syncEnabled == enabled {
			return false
		}
		m.syncEnabled = enabled
		return true
	})
}

// transition applies a state mutation and notifies callbacks when the
// ShouldSync answer flips to true. Only the off-to-on edge triggers
// retries; going offline needs no action.
func (m *Monitor) transition(mutate func() bool) {
	m.mu.Lock()
	before := m.shouldSyncLocked()
	changed := mutate()
	after := m.shouldSyncLocked()
	var callbacks []func()
	if changed && !before && after {
		callbacks = append(callbacks, m.callbacks...)
	}
	m.mu.Unlock()

	if len(callbacks) > 0 {
		utils.Debugf("connectivity: sync became available, notifying %d listeners", len(callbacks))
	}
	for _, fn := range callbacks {
		fn()
	}
}

func (m *Monitor) shouldSyncLocked() bool {
	return m.online && m.account != "" && m.syncEnabled
}
