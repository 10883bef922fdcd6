package sync

import (
	"sync"

	"todosync/store"
)

// PendingEntry is one mutation that succeeded locally but has not been
// confirmed remotely.
type PendingEntry struct {
	Task store.Task
	Op   Op
}

// PendingSet maps task id to the entry awaiting remote sync. Entries stay
// until a retry succeeds; there is no backoff and no TTL.
type PendingSet struct {
	mu      sync.Mutex
	entries map[string]PendingEntry
}

func NewPendingSet() *PendingSet {
	return &PendingSet{entries: map[string]PendingEntry{}}
}

// Add records (or replaces) the pending mutation for the task. A later
// mutation of the same id supersedes the earlier one.
func (p *PendingSet) Add(task store.Task, op Op) {
	if task.ID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[task.ID] = PendingEntry{Task: task.Clone(), Op: op}
}

// Remove drops the pending entry after a successful remote push.
func (p *PendingSet) Remove(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, taskID)
}

// Contains reports whether the task still awaits remote sync.
func (p *PendingSet) Contains(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[taskID]
	return ok
}

// Len returns the number of pending entries.
func (p *PendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Snapshot returns a copy of the current entries for independent retry.
func (p *PendingSet) Snapshot() []PendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out
}
