// Package cache provides the authoritative in-memory task cache. Every UI
// read is served from here; mutations go through the optimistic methods and
// fan out to listeners via a single dispatch goroutine.
package cache

import (
	"sync"

	"todosync/internal/calendar"
	"todosync/internal/utils"
	"todosync/store"
)

// TaskCache is a concurrency-safe mapping from task id to task. It is pure
// memory: no operation here blocks on I/O, and logical errors (empty id,
// missing record) are absorbed and logged rather than returned.
//
// One cache instance is constructed by the composition root and passed to
// every consumer; Close releases the dispatch goroutine.
type TaskCache struct {
	mu          sync.RWMutex
	tasks       map[string]store.Task
	initialized bool
	closed      bool

	dispatch *dispatcher
	logger   *utils.Logger
}

// New creates an empty cache and starts its dispatch goroutine.
func New() *TaskCache {
	return &TaskCache{
		tasks:    make(map[string]store.Task),
		dispatch: newDispatcher(),
		logger:   utils.GetLogger(),
	}
}

// AddListener registers l for change notifications. Registering the same
// listener twice is a no-op.
func (c *TaskCache) AddListener(l Listener) {
	c.dispatch.addListener(l)
}

// RemoveListener unregisters l. This stops future notifications only; it
// does not abort in-flight sync I/O.
func (c *TaskCache) RemoveListener(l Listener) {
	c.dispatch.removeListener(l)
}

// AddOptimistic inserts or replaces the task by id. A task with an empty id
// never enters the cache; the call is logged and dropped.
func (c *TaskCache) AddOptimistic(task store.Task) {
	if task.ID == "" {
		c.logger.Warn("cache: dropping add for task with empty id (%q)", task.Title)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.tasks[task.ID] = task.Clone()
	c.emit(event{kind: eventTaskAdded, task: task.Clone()})
	c.emit(event{kind: eventTasksUpdated, all: c.allLocked()})
}

// UpdateOptimistic replaces the task by id. Semantically an update, but like
// AddOptimistic it upserts; callers need not check existence first.
func (c *TaskCache) UpdateOptimistic(task store.Task) {
	if task.ID == "" {
		c.logger.Warn("cache: dropping update for task with empty id (%q)", task.Title)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.tasks[task.ID] = task.Clone()
	c.emit(event{kind: eventTaskUpdated, task: task.Clone()})
	c.emit(event{kind: eventTasksUpdated, all: c.allLocked()})
}

// DeleteOptimistic removes the task by id. Notifications fire only if a
// record actually existed.
func (c *TaskCache) DeleteOptimistic(taskID string) {
	if taskID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.tasks[taskID]; !ok {
		return
	}
	delete(c.tasks, taskID)
	c.emit(event{kind: eventTaskDeleted, taskID: taskID})
	c.emit(event{kind: eventTasksUpdated, all: c.allLocked()})
}

// LoadFromRemote replaces the entire cache contents with tasks and marks the
// cache initialized. Used for the first cold load.
func (c *TaskCache) LoadFromRemote(tasks []store.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.tasks = make(map[string]store.Task, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			c.logger.Warn("cache: dropping remote task with empty id (%q)", t.Title)
			continue
		}
		c.tasks[t.ID] = t.Clone()
	}
	c.initialized = true
	c.emit(event{kind: eventTasksUpdated, all: c.allLocked()})
}

// SyncFromRemote reconciles the cache against an authoritative remote
// snapshot: every incoming task overwrites the local entry by id, and any
// cached id absent from the snapshot is removed. This is a full-state diff
// with remote-wins semantics, not a merge.
func (c *TaskCache) SyncFromRemote(tasks []store.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	incoming := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		incoming[t.ID] = struct{}{}
		c.tasks[t.ID] = t.Clone()
	}
	for id := range c.tasks {
		if _, ok := incoming[id]; !ok {
			delete(c.tasks, id)
		}
	}
	c.emit(event{kind: eventTasksUpdated, all: c.allLocked()})
}

// GetAllTasks returns a copy of every cached task.
func (c *TaskCache) GetAllTasks() []store.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allLocked()
}

// GetTask returns the task by id, or false if absent.
func (c *TaskCache) GetTask(taskID string) (store.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[taskID]
	if !ok {
		return store.Task{}, false
	}
	return t.Clone(), true
}

// GetTasksForDate returns every task occurring on date (store.DateLayout),
// including repeating tasks whose recurrence lands on it.
func (c *TaskCache) GetTasksForDate(date string) []store.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []store.Task
	for _, t := range c.tasks {
		if calendar.IsTaskOnDate(t, date) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Initialized reports whether a cold load has completed.
func (c *TaskCache) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Len returns the number of cached tasks.
func (c *TaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tasks)
}

// Close stops the dispatch goroutine after draining queued notifications.
// Mutations after Close are ignored.
func (c *TaskCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.dispatch.stop()
}

// allLocked snapshots the task map. Callers hold at least a read lock.
func (c *TaskCache) allLocked() []store.Task {
	out := make([]store.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// emit queues an event for the dispatch goroutine. Callers hold the write
// lock, which keeps event order consistent with mutation order.
func (c *TaskCache) emit(ev event) {
	c.dispatch.enqueue(ev)
}
