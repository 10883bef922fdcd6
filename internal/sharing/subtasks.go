package sharing

import (
	"context"

	"todosync/internal/utils"
	"todosync/store"
)

// Subtask edits on a shared task all follow the same path: load the owner's
// copy, mutate the subtask list, write the whole task back through the
// permission gate. Each edit is reported independently, never aggregated.

// AddSubTaskToSharedTask appends a new subtask and reports the created
// record through the callback.
func (co *Coordinator) AddSubTaskToSharedTask(ctx context.Context, taskID, title string, fn func(store.SubTask, error)) {
	if fn == nil {
		fn = func(store.SubTask, error) {}
	}
	co.wg.Add(1)
	go func() {
		defer co.wg.Done()
		task, err := co.LoadSharedTask(ctx, taskID)
		if err != nil {
			fn(store.SubTask{}, err)
			return
		}
		sub := store.NewSubTask(title, taskID)
		task.SubTasks = append(task.SubTasks, sub)
		fn(sub, co.updateShared(ctx, task))
	}()
}

// UpdateSubTaskInSharedTask replaces the matching subtask by id.
func (co *Coordinator) UpdateSubTaskInSharedTask(ctx context.Context, taskID string, sub store.SubTask, fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	co.wg.Add(1)
	go func() {
		defer co.wg.Done()
		task, err := co.LoadSharedTask(ctx, taskID)
		if err != nil {
			fn(err)
			return
		}
		replaced := false
		for i := range task.SubTasks {
			if task.SubTasks[i].ID == sub.ID {
				sub.TaskID = taskID
				task.SubTasks[i] = sub
				replaced = true
				break
			}
		}
		if !replaced {
			fn(utils.ErrTaskNotFound(sub.ID))
			return
		}
		fn(co.updateShared(ctx, task))
	}()
}

// RemoveSubTaskFromSharedTask drops the matching subtask by id. Removing an
// absent subtask succeeds.
func (co *Coordinator) RemoveSubTaskFromSharedTask(ctx context.Context, taskID, subTaskID string, fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	co.wg.Add(1)
	go func() {
		defer co.wg.Done()
		task, err := co.LoadSharedTask(ctx, taskID)
		if err != nil {
			fn(err)
			return
		}
		kept := task.SubTasks[:0]
		for _, st := range task.SubTasks {
			if st.ID != subTaskID {
				kept = append(kept, st)
			}
		}
		task.SubTasks = kept
		fn(co.updateShared(ctx, task))
	}()
}
