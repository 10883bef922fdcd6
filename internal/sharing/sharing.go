// Package sharing coordinates tasks shared between accounts. The owner's
// copy under users/<owner>/tasks is the single writable replica; everyone
// else reads it through the sharing record and writes back only with edit
// permission.
package sharing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todosync/internal/cache"
	tasksync "todosync/internal/sync"
	"todosync/internal/utils"
	"todosync/store"
)

// Identity answers who is acting and whether remote sync is possible.
// *connectivity.Monitor satisfies it.
type Identity interface {
	Account() string
	ShouldSync() bool
}

// Coordinator maintains per-task remote subscriptions and the permission
// gate for shared-task writes.
type Coordinator struct {
	cache   *cache.TaskCache
	local   store.LocalStore
	remote  store.RemoteGateway
	id      Identity
	recency *tasksync.RecencyTracker
	logger  *utils.Logger

	// applyDelay defers remote-origin updates so an in-flight local write
	// settles first.
	applyDelay time.Duration

	mu      sync.Mutex
	subs    map[string]*subscriptionState
	onError func(taskID string, err error)
	closed  bool

	wg sync.WaitGroup
}

type subscriptionState struct {
	sub    store.Subscription
	cancel context.CancelFunc
}

// New wires a sharing coordinator. The recency tracker must be the one the
// optimistic coordinator marks, so local edits suppress racing remote
// updates.
func New(c *cache.TaskCache, local store.LocalStore, remote store.RemoteGateway, id Identity, recency *tasksync.RecencyTracker) *Coordinator {
	return &Coordinator{
		cache:      c,
		local:      local,
		remote:     remote,
		id:         id,
		recency:    recency,
		logger:     utils.GetLogger(),
		applyDelay: tasksync.RemoteApplyDelay,
		subs:       map[string]*subscriptionState{},
	}
}

// SetErrorHandler registers the callback for transport errors on active
// subscriptions. Errors never tear a subscription down.
func (co *Coordinator) SetErrorHandler(fn func(taskID string, err error)) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.onError = fn
}

// Close stops every subscription and waits for in-flight work.
func (co *Coordinator) Close() {
	co.mu.Lock()
	co.closed = true
	states := make([]*subscriptionState, 0, len(co.subs))
	for _, st := range co.subs {
		states = append(states, st)
	}
	co.subs = map[string]*subscriptionState{}
	co.mu.Unlock()

	for _, st := range states {
		st.cancel()
		_ = st.sub.Close()
	}
	co.wg.Wait()
}

// StartListeningForTaskUpdates opens a subscription on the owner's copy of
// the task. Idempotent: re-subscribing an already-listened task is a no-op.
func (co *Coordinator) StartListeningForTaskUpdates(ctx context.Context, taskID string) error {
	co.mu.Lock()
	if co.closed {
		co.mu.Unlock()
		return fmt.Errorf("sharing coordinator is closed")
	}
	if _, ok := co.subs[taskID]; ok {
		co.mu.Unlock()
		return nil
	}
	co.mu.Unlock()

	share, err := co.fetchShare(ctx, taskID)
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	path := store.TaskPath(share.OwnerEmail, taskID)
	sub, err := co.remote.Subscribe(subCtx, path)
	if err != nil {
		cancel()
		return err
	}

	co.mu.Lock()
	if co.closed {
		co.mu.Unlock()
		cancel()
		_ = sub.Close()
		return fmt.Errorf("sharing coordinator is closed")
	}
	if _, ok := co.subs[taskID]; ok {
		// Lost the race against a concurrent subscribe for the same id.
		co.mu.Unlock()
		cancel()
		_ = sub.Close()
		return nil
	}
	co.subs[taskID] = &subscriptionState{sub: sub, cancel: cancel}
	co.mu.Unlock()

	co.wg.Add(1)
	go co.consume(taskID, path, sub)
	utils.Debugf("sharing: listening for updates on %s", taskID)
	return nil
}

// StopListeningForTaskUpdates closes the task's subscription. A no-op for
// tasks not listened to.
func (co *Coordinator) StopListeningForTaskUpdates(taskID string) {
	co.mu.Lock()
	st, ok := co.subs[taskID]
	delete(co.subs, taskID)
	co.mu.Unlock()
	if !ok {
		return
	}
	st.cancel()
	_ = st.sub.Close()
	utils.Debugf("sharing: stopped listening on %s", taskID)
}

// Listening reports whether the task currently has an active subscription.
func (co *Coordinator) Listening(taskID string) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	_, ok := co.subs[taskID]
	return ok
}

// consume drains one subscription, applying snapshots to the cache and the
// local store.
func (co *Coordinator) consume(taskID, basePath string, sub store.Subscription) {
	defer co.wg.Done()
	updates := sub.Updates()
	errs := sub.Errors()
	for updates != nil || errs != nil {
		select {
		case snap, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			co.handleSnapshot(taskID, basePath, snap)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			co.reportError(taskID, err)
		}
	}
}

// handleSnapshot converts one remote snapshot into a deferred cache apply.
// Subtree patches trigger a full re-read so the cache only ever sees whole
// tasks.
func (co *Coordinator) handleSnapshot(taskID, basePath string, snap store.Snapshot) {
	value := snap.Value
	if snap.Path != basePath {
		full, err := co.remote.ReadOnce(context.Background(), basePath)
		if err != nil {
			co.reportError(taskID, err)
			return
		}
		value = full
	}

	if value == nil {
		co.scheduleApply(taskID, store.Task{}, true)
		return
	}

	task, err := store.TaskFromValue(taskID, value)
	if err != nil {
		utils.Debugf("sharing: dropping malformed update for %s: %v", taskID, err)
		return
	}
	if task.ID == "" {
		return
	}
	task.Shared = true
	co.scheduleApply(taskID, task, false)
}

// scheduleApply applies a remote-origin change after the settling delay,
// unless a fresh local edit claims priority.
func (co *Coordinator) scheduleApply(taskID string, task store.Task, deleted bool) {
	co.wg.Add(1)
	time.AfterFunc(co.applyDelay, func() {
		defer co.wg.Done()
		if co.recency.SuppressRemote(taskID) {
			utils.Debugf("sharing: suppressing remote update for %s, local edit is fresh", taskID)
			return
		}
		ctx := context.Background()
		if deleted {
			co.cache.DeleteOptimistic(taskID)
			if err := co.local.DeleteTask(ctx, taskID); err != nil {
				co.logger.Warn("sharing: removing %s locally: %v", taskID, err)
			}
			return
		}
		co.cache.UpdateOptimistic(task)
		if err := co.local.UpdateTask(ctx, task); err != nil {
			co.logger.Warn("sharing: persisting remote update for %s: %v", taskID, err)
		}
	})
}

func (co *Coordinator) reportError(taskID string, err error) {
	co.mu.Lock()
	fn := co.onError
	co.mu.Unlock()
	if fn != nil {
		fn(taskID, err)
		return
	}
	co.logger.Warn("sharing: subscription error on %s: %v", taskID, err)
}

// fetchShare reads the sharing record for the task. A missing or inactive
// record is reported as "not shared", distinct from transport errors.
func (co *Coordinator) fetchShare(ctx context.Context, taskID string) (store.TaskShare, error) {
	node, err := co.remote.ReadOnce(ctx, store.SharePath(taskID))
	if err != nil {
		return store.TaskShare{}, err
	}
	if node == nil {
		return store.TaskShare{}, utils.ErrTaskNotShared(taskID)
	}
	share, err := store.ShareFromValue(node)
	if err != nil {
		return store.TaskShare{}, utils.ErrTaskNotShared(taskID)
	}
	if !share.Active {
		return store.TaskShare{}, utils.ErrTaskNotShared(taskID)
	}
	return share, nil
}

// LoadSharedTask resolves the owning account from the sharing record and
// reads the task from the owner's namespace. "not shared" and "task not
// found" are distinct so callers can fall back to a local-only copy.
func (co *Coordinator) LoadSharedTask(ctx context.Context, taskID string) (store.Task, error) {
	share, err := co.fetchShare(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}

	node, err := co.remote.ReadOnce(ctx, store.TaskPath(share.OwnerEmail, taskID))
	if err != nil {
		return store.Task{}, err
	}
	if node == nil {
		return store.Task{}, utils.ErrTaskNotFound(taskID)
	}

	task, err := store.TaskFromValue(taskID, node)
	if err != nil {
		return store.Task{}, err
	}
	if task.ID == "" {
		return store.Task{}, utils.ErrTaskNotFound(taskID)
	}
	task.Shared = true
	return task, nil
}

// UpdateSharedTask verifies the acting identity against a freshly-fetched
// sharing record and writes the task under the owner's namespace. The
// callback is invoked exactly once. Fails closed: no record, inactive
// record or missing edit flag all block the write.
func (co *Coordinator) UpdateSharedTask(ctx context.Context, task store.Task, fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	if task.ID == "" {
		fn(utils.ErrTaskNotFound(""))
		return
	}
	task = task.Clone()

	co.wg.Add(1)
	go func() {
		defer co.wg.Done()
		fn(co.updateShared(ctx, task))
	}()
}

func (co *Coordinator) updateShared(ctx context.Context, task store.Task) error {
	share, err := co.fetchShare(ctx, task.ID)
	if err != nil {
		return err
	}

	actor := co.id.Account()
	if !share.CanUserEdit(actor) {
		return utils.ErrEditNotPermitted(actor)
	}

	task.Shared = true
	task.Touch()
	if err := co.remote.Write(ctx, store.TaskPath(share.OwnerEmail, task.ID), store.TaskToValue(task)); err != nil {
		return err
	}

	co.recency.MarkLocal(task.ID)
	co.cache.UpdateOptimistic(task)
	if err := co.local.UpdateTask(ctx, task); err != nil {
		co.logger.Warn("sharing: persisting %s locally: %v", task.ID, err)
	}
	return nil
}

// ShareTask creates or extends the sharing record for a task the acting
// identity owns, inviting user. The local copy is flagged shared.
func (co *Coordinator) ShareTask(ctx context.Context, task store.Task, user store.SharedUser) error {
	owner := co.id.Account()
	if owner == "" {
		return utils.ErrNoAccount()
	}

	share, err := co.fetchShare(ctx, task.ID)
	if utils.IsNotShared(err) {
		now := time.Now().Format(store.DateTimeLayout)
		share = store.TaskShare{
			ID:         store.GenerateID(),
			TaskID:     task.ID,
			OwnerEmail: owner,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	} else if err != nil {
		return err
	} else if !share.IsOwner(owner) {
		return utils.ErrEditNotPermitted(owner)
	}

	if user.Status == "" {
		user.Status = store.StatusPending
	}
	if user.InvitedAt == "" {
		user.InvitedAt = time.Now().Format(store.DateTimeLayout)
	}
	share.AddSharedUser(user)
	share.UpdatedAt = time.Now().Format(store.DateTimeLayout)

	if err := co.remote.Write(ctx, store.SharePath(task.ID), store.ShareToValue(share)); err != nil {
		return err
	}

	task = task.Clone()
	task.Shared = true
	if err := co.remote.Write(ctx, store.TaskPath(owner, task.ID), store.TaskToValue(task)); err != nil {
		return err
	}
	co.cache.UpdateOptimistic(task)
	if err := co.local.UpdateTask(ctx, task); err != nil {
		co.logger.Warn("sharing: persisting %s locally: %v", task.ID, err)
	}
	return nil
}

// RevokeShare removes user from the sharing record. Only the owner may
// revoke; removing the last user deletes the record and clears the shared
// flag.
func (co *Coordinator) RevokeShare(ctx context.Context, taskID, email string) error {
	share, err := co.fetchShare(ctx, taskID)
	if err != nil {
		return err
	}
	owner := co.id.Account()
	if !share.IsOwner(owner) {
		return utils.ErrEditNotPermitted(owner)
	}

	share.RemoveSharedUser(email)
	if len(share.SharedUsers) == 0 {
		if err := co.remote.RemovePath(ctx, store.SharePath(taskID)); err != nil {
			return err
		}
		if task, ok := co.cache.GetTask(taskID); ok {
			task.Shared = false
			co.cache.UpdateOptimistic(task)
			if err := co.local.UpdateTask(ctx, task); err != nil {
				co.logger.Warn("sharing: persisting %s locally: %v", taskID, err)
			}
		}
		return nil
	}

	share.UpdatedAt = time.Now().Format(store.DateTimeLayout)
	return co.remote.Write(ctx, store.SharePath(taskID), store.ShareToValue(share))
}
