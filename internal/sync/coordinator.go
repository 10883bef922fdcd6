// Package sync orchestrates the three-tier write path: optimistic cache
// mutation, durable local persistence, then remote push. Local durability is
// the recovery point; the remote tree is eventually consistent.
package sync

import (
	"context"
	"fmt"

	"todosync/internal/cache"
	"todosync/internal/utils"
	"todosync/store"
)

// Op is a mutation kind flowing through the coordinator.
type Op int

const (
	OpAdd Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Result is delivered to the Perform callback exactly once.
type Result struct {
	// Task carries the final record, including a reconciled id when the
	// remote assigned a new one on add.
	Task store.Task
	// Err is set only when the mutation failed locally and was rolled
	// back. A remote failure is not an error here.
	Err error
	// Queued means the mutation is durable locally and awaits remote
	// retry via the pending set.
	Queued bool
	// Message is informational, e.g. "persisted locally, will sync".
	Message string
}

// Gate answers whether remote sync is currently possible and for whom.
// *connectivity.Monitor satisfies it.
type Gate interface {
	IsOnline() bool
	ShouldSync() bool
	Account() string
	OnChange(fn func())
	SetOnline(online bool)
}

// Coordinator owns the write path for tasks and categories. All store and
// gateway I/O runs on one background worker goroutine; cache mutation is
// synchronous so reads issued right after Perform observe the new state.
type Coordinator struct {
	cache   *cache.TaskCache
	local   store.LocalStore
	remote  store.RemoteGateway
	gate    Gate
	pending *PendingSet
	recency *RecencyTracker
	logger  *utils.Logger

	jobs chan func(ctx context.Context)
	done chan struct{}
}

// New wires a coordinator and starts its worker. The gate's change
// notifications trigger pending retries.
func New(c *cache.TaskCache, local store.LocalStore, remote store.RemoteGateway, gate Gate) *Coordinator {
	co := &Coordinator{
		cache:   c,
		local:   local,
		remote:  remote,
		gate:    gate,
		pending: NewPendingSet(),
		recency: NewRecencyTracker(),
		logger:  utils.GetLogger(),
		jobs:    make(chan func(ctx context.Context), 64),
		done:    make(chan struct{}),
	}
	go co.worker()
	gate.OnChange(co.SyncPendingTasks)
	return co
}

// Pending exposes the retry set for status reporting.
func (co *Coordinator) Pending() *PendingSet { return co.pending }

// Recency exposes the local-edit tracker so the shared-task coordinator can
// suppress racing remote updates.
func (co *Coordinator) Recency() *RecencyTracker { return co.recency }

// Close drains queued work and stops the worker.
func (co *Coordinator) Close() {
	close(co.jobs)
	<-co.done
}

func (co *Coordinator) worker() {
	defer close(co.done)
	ctx := context.Background()
	for job := range co.jobs {
		job(ctx)
	}
}

func (co *Coordinator) enqueue(job func(ctx context.Context)) {
	defer func() {
		// A mutation racing Close loses; the cache state it produced
		// is still valid, only the persistence step is skipped.
		if recover() != nil {
			co.logger.Warn("sync: mutation dropped, coordinator closed")
		}
	}()
	co.jobs <- job
}

// Perform runs the three-tier write for one task. The callback is invoked
// exactly once, from the worker goroutine.
func (co *Coordinator) Perform(task store.Task, op Op, fn func(Result)) {
	if fn == nil {
		fn = func(Result) {}
	}
	if task.ID == "" {
		if op != OpAdd {
			fn(Result{Task: task, Err: utils.ErrTaskNotFound("")})
			return
		}
		task.ID = store.GenerateID()
	}
	task = task.Clone()

	// Tier 1: the cache, synchronously. Capture the prior state first so
	// a failed local persist can be undone.
	prior, existed := co.cache.GetTask(task.ID)
	switch op {
	case OpAdd:
		co.cache.AddOptimistic(task)
	case OpUpdate:
		co.cache.UpdateOptimistic(task)
	case OpDelete:
		if !existed {
			fn(Result{Task: task, Err: utils.ErrTaskNotFound(task.ID)})
			return
		}
		co.cache.DeleteOptimistic(task.ID)
		task = prior.Clone()
	}
	co.recency.MarkLocal(task.ID)

	co.enqueue(func(ctx context.Context) {
		co.persistAndPush(ctx, task, op, prior, existed, fn)
	})
}

// persistAndPush is tiers 2 and 3, run on the worker.
func (co *Coordinator) persistAndPush(ctx context.Context, task store.Task, op Op, prior store.Task, existed bool, fn func(Result)) {
	if err := co.persistLocal(ctx, task, op); err != nil {
		co.rollback(task, op, prior, existed)
		fn(Result{Task: task, Err: utils.ErrLocalPersistence(err)})
		return
	}

	if !co.gate.ShouldSync() {
		co.pending.Add(task, op)
		utils.Debugf("sync: %s of %s deferred, remote sync unavailable", op, task.ID)
		fn(Result{Task: task, Queued: true, Message: "persisted locally, will sync"})
		return
	}

	final, err := co.pushRemote(ctx, task, op)
	if err != nil {
		co.gate.SetOnline(false)
		co.pending.Add(task, op)
		co.logger.Warn("sync: remote %s of %s failed, queued: %v", op, task.ID, err)
		fn(Result{Task: task, Queued: true, Message: "persisted locally, will sync"})
		return
	}
	co.gate.SetOnline(true)
	fn(Result{Task: final})
}

func (co *Coordinator) persistLocal(ctx context.Context, task store.Task, op Op) error {
	switch op {
	case OpAdd:
		return co.local.InsertTask(ctx, task)
	case OpUpdate:
		return co.local.UpdateTask(ctx, task)
	case OpDelete:
		return co.local.DeleteTask(ctx, task.ID)
	default:
		return fmt.Errorf("unknown operation %v", op)
	}
}

// rollback undoes the optimistic cache mutation after a local persistence
// failure. Each operation has a defined inverse.
func (co *Coordinator) rollback(task store.Task, op Op, prior store.Task, existed bool) {
	co.logger.Warn("sync: rolling back %s of %s", op, task.ID)
	switch op {
	case OpAdd:
		if existed {
			co.cache.UpdateOptimistic(prior)
		} else {
			co.cache.DeleteOptimistic(task.ID)
		}
	case OpUpdate:
		if existed {
			co.cache.UpdateOptimistic(prior)
		} else {
			co.cache.DeleteOptimistic(task.ID)
		}
	case OpDelete:
		co.cache.AddOptimistic(task)
	}
}

// pushRemote sends the mutation to the account's namespace. For adds the
// server assigns the key; when it differs from the client-generated id the
// cache and local store are re-keyed (id reconciliation).
func (co *Coordinator) pushRemote(ctx context.Context, task store.Task, op Op) (store.Task, error) {
	account := co.gate.Account()
	switch op {
	case OpAdd:
		key, err := co.remote.Push(ctx, store.UserTasksPath(account), store.TaskToValue(task))
		if err != nil {
			return task, err
		}
		if key == task.ID {
			return task, nil
		}
		return co.reconcileID(ctx, task, account, key)
	case OpUpdate:
		return task, co.remote.Write(ctx, store.TaskPath(account, task.ID), store.TaskToValue(task))
	case OpDelete:
		return task, co.remote.RemovePath(ctx, store.TaskPath(account, task.ID))
	default:
		return task, fmt.Errorf("unknown operation %v", op)
	}
}

// reconcileID re-keys a freshly-added task under the server-assigned id:
// the old cache entry and local row are replaced, and the stored remote
// value is rewritten so its embedded id matches its key.
func (co *Coordinator) reconcileID(ctx context.Context, task store.Task, account, newID string) (store.Task, error) {
	oldID := task.ID
	utils.Infof("sync: remote assigned id %s to task %s", newID, oldID)

	renamed := task.Clone()
	renamed.ID = newID
	for i := range renamed.SubTasks {
		renamed.SubTasks[i].TaskID = newID
	}

	co.cache.DeleteOptimistic(oldID)
	co.cache.AddOptimistic(renamed)
	co.recency.MarkLocal(newID)

	if err := co.local.DeleteTask(ctx, oldID); err != nil {
		co.logger.Warn("sync: removing stale row %s: %v", oldID, err)
	}
	if err := co.local.InsertTask(ctx, renamed); err != nil {
		return renamed, utils.ErrLocalPersistence(err)
	}

	return renamed, co.remote.Write(ctx, store.TaskPath(account, newID), store.TaskToValue(renamed))
}

// SyncPendingTasks retries every pending entry independently; one entry's
// failure does not block the others. Safe to call from any goroutine.
func (co *Coordinator) SyncPendingTasks() {
	co.enqueue(func(ctx context.Context) {
		entries := co.pending.Snapshot()
		if len(entries) == 0 {
			return
		}
		if !co.gate.ShouldSync() {
			utils.Debugf("sync: %d pending, remote sync still unavailable", len(entries))
			return
		}
		utils.Infof("sync: retrying %d pending mutations", len(entries))
		for _, e := range entries {
			if _, err := co.pushRemote(ctx, e.Task, e.Op); err != nil {
				co.logger.Warn("sync: retry of %s %s failed: %v", e.Op, e.Task.ID, err)
				continue
			}
			co.pending.Remove(e.Task.ID)
		}
	})
}

// PerformCategory runs the same three-tier write for a category. Categories
// have no pending retry; a failed remote push is logged and the next full
// sync repairs it.
func (co *Coordinator) PerformCategory(cat store.Category, op Op, fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	if cat.ID == "" {
		if op != OpAdd {
			fn(utils.ErrCategoryNotFound(cat.Name))
			return
		}
		cat.ID = store.GenerateID()
	}

	co.enqueue(func(ctx context.Context) {
		var err error
		switch op {
		case OpAdd:
			err = co.local.InsertCategory(ctx, cat)
		case OpUpdate:
			err = co.local.UpdateCategory(ctx, cat)
		case OpDelete:
			err = co.local.DeleteCategory(ctx, cat.ID)
		}
		if err != nil {
			fn(err)
			return
		}

		if co.gate.ShouldSync() {
			account := co.gate.Account()
			var remoteErr error
			if op == OpDelete {
				remoteErr = co.remote.RemovePath(ctx, store.CategoryPath(account, cat.ID))
			} else {
				remoteErr = co.remote.Write(ctx, store.CategoryPath(account, cat.ID), store.CategoryToValue(cat))
			}
			if remoteErr != nil {
				co.logger.Warn("sync: remote category %s failed: %v", op, remoteErr)
			}
		}
		fn(nil)
	})
}
