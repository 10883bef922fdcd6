package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todosync/internal/utils"
	"todosync/store"
)

// InitialLoad populates the cache on cold start. Local rows load first so
// the cache is usable offline; when remote sync is available the remote set
// is merged in and remote-only tasks are inserted into the local store.
func (co *Coordinator) InitialLoad(ctx context.Context) error {
	local, err := co.local.GetAllTasks(ctx)
	if err != nil {
		return utils.ErrLocalPersistence(err)
	}

	if !co.gate.ShouldSync() {
		co.cache.LoadFromRemote(local)
		utils.Debugf("sync: cold start with %d local tasks, remote unavailable", len(local))
		return nil
	}

	remote, err := co.fetchRemoteTasks(ctx)
	if err != nil {
		co.gate.SetOnline(false)
		co.cache.LoadFromRemote(local)
		co.logger.Warn("sync: cold-start remote read failed, serving local only: %v", err)
		return nil
	}
	co.gate.SetOnline(true)

	merged := mergeByID(local, remote)
	co.cache.LoadFromRemote(merged)

	// Remote-only tasks become durable locally.
	known := map[string]bool{}
	for _, t := range local {
		known[t.ID] = true
	}
	for _, t := range remote {
		if known[t.ID] {
			continue
		}
		if err := co.local.InsertTask(ctx, t); err != nil {
			co.logger.Warn("sync: persisting remote task %s: %v", t.ID, err)
		}
	}
	return nil
}

// SyncAll is the explicit full upload/merge pass behind `todosync sync`:
// union of local and remote sets with local winning per id, every record
// written back to the remote tree, categories included.
func (co *Coordinator) SyncAll(ctx context.Context) error {
	if !co.gate.ShouldSync() {
		return utils.ErrSyncNotEnabled()
	}
	account := co.gate.Account()

	local, err := co.local.GetAllTasks(ctx)
	if err != nil {
		return utils.ErrLocalPersistence(err)
	}
	remote, err := co.fetchRemoteTasks(ctx)
	if err != nil {
		co.gate.SetOnline(false)
		return err
	}

	merged := mergeByID(remote, local)
	for _, t := range merged {
		if err := co.remote.Write(ctx, store.TaskPath(account, t.ID), store.TaskToValue(t)); err != nil {
			co.gate.SetOnline(false)
			return err
		}
		co.pending.Remove(t.ID)
	}

	known := map[string]bool{}
	for _, t := range local {
		known[t.ID] = true
	}
	for _, t := range remote {
		if known[t.ID] {
			continue
		}
		if err := co.local.InsertTask(ctx, t); err != nil {
			co.logger.Warn("sync: persisting remote task %s: %v", t.ID, err)
		}
	}
	co.cache.SyncFromRemote(merged)

	if err := co.syncCategories(ctx, account); err != nil {
		co.logger.Warn("sync: category pass failed: %v", err)
	}

	co.gate.SetOnline(true)
	utils.Infof("sync: full sync complete, %d tasks", len(merged))
	return nil
}

// syncCategories uploads every local category and pulls down remote-only
// ones.
func (co *Coordinator) syncCategories(ctx context.Context, account string) error {
	local, err := co.local.GetAllCategories(ctx)
	if err != nil {
		return utils.ErrLocalPersistence(err)
	}
	for _, c := range local {
		if err := co.remote.Write(ctx, store.CategoryPath(account, c.ID), store.CategoryToValue(c)); err != nil {
			return err
		}
	}

	node, err := co.remote.ReadOnce(ctx, store.UserCategoriesPath(account))
	if err != nil {
		return err
	}
	known := map[string]bool{}
	for _, c := range local {
		known[c.ID] = true
	}
	for id, raw := range node {
		data, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		cat, err := store.CategoryFromValue(id, data)
		if err != nil {
			utils.Debugf("sync: dropping malformed remote category %s: %v", id, err)
			continue
		}
		if known[cat.ID] {
			continue
		}
		if err := co.local.InsertCategory(ctx, cat); err != nil {
			co.logger.Warn("sync: persisting remote category %s: %v", cat.ID, err)
		}
	}
	return nil
}

// fetchRemoteTasks reads the account's whole tasks node, converting each
// child. Records without an id are dropped, never cached.
func (co *Coordinator) fetchRemoteTasks(ctx context.Context) ([]store.Task, error) {
	node, err := co.remote.ReadOnce(ctx, store.UserTasksPath(co.gate.Account()))
	if err != nil {
		return nil, err
	}
	tasks := make([]store.Task, 0, len(node))
	for id, raw := range node {
		data, ok := raw.(map[string]any)
		if !ok {
			utils.Debugf("sync: dropping malformed remote node %s", id)
			continue
		}
		task, err := store.TaskFromValue(id, data)
		if err != nil {
			utils.Debugf("sync: dropping remote task %s: %v", id, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// mergeByID unions two sets; entries in winners replace same-id entries in
// base.
func mergeByID(base, winners []store.Task) []store.Task {
	index := map[string]int{}
	out := make([]store.Task, 0, len(base)+len(winners))
	for _, t := range base {
		index[t.ID] = len(out)
		out = append(out, t)
	}
	for _, t := range winners {
		if i, ok := index[t.ID]; ok {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

const lastSyncFile = "last_sync"

// RecordLastSync persists the timestamp of the last successful full sync.
func RecordLastSync(dir string, at time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, lastSyncFile), []byte(at.UTC().Format(time.RFC3339)+"\n"), 0o644)
}

// ReadLastSync returns the last recorded sync time, or the zero time when
// none exists.
func ReadLastSync(dir string) (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(dir, lastSyncFile))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
}
