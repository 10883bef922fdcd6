package sync

import (
	"sync"
	"time"
)

// Suppression windows for the local-edit-wins heuristic. A remote-origin
// update for a task arriving within LocalPriorityWindow of a local mutation
// of the same task is dropped; applying remote updates waits RemoteApplyDelay
// so an in-flight local write settles first. This is last-writer-wins with
// bounded staleness, not a conflict resolution.
const (
	LocalPriorityWindow = 1000 * time.Millisecond
	RemoteApplyDelay    = 500 * time.Millisecond
)

// RecencyTracker records the last local mutation time per task id so
// remote-origin updates can be suppressed while a local edit is fresh.
type RecencyTracker struct {
	mu      sync.Mutex
	updates map[string]time.Time
	now     func() time.Time
}

func NewRecencyTracker() *RecencyTracker {
	return &RecencyTracker{
		updates: map[string]time.Time{},
		now:     time.Now,
	}
}

// MarkLocal records a local mutation of the task happening now.
func (r *RecencyTracker) MarkLocal(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[taskID] = r.now()
}

// SuppressRemote reports whether a remote-origin update for the task should
// be dropped because a local mutation is still inside the priority window.
func (r *RecencyTracker) SuppressRemote(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.updates[taskID]
	if !ok {
		return false
	}
	if r.now().Sub(last) < LocalPriorityWindow {
		return true
	}
	delete(r.updates, taskID)
	return false
}
