package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"todosync/internal/utils"
	"todosync/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := store.NewTask("Buy groceries", "", "", "")
	task.ID = store.GenerateID()
	task.Description = "milk, eggs"
	task.DueDate = "15/03/2026"
	task.Important = true
	task.RepeatType = store.RepeatWeekly
	task.Repeating = true
	task.SubTasks = []store.SubTask{
		store.NewSubTask("milk", task.ID),
		store.NewSubTask("eggs", task.ID),
	}

	if err := s.InsertTask(ctx, task); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected task, got nil")
	}
	if got.Title != task.Title {
		t.Errorf("title = %q, want %q", got.Title, task.Title)
	}
	if got.DueDate != task.DueDate {
		t.Errorf("due date = %q, want %q", got.DueDate, task.DueDate)
	}
	if !got.Important {
		t.Error("important flag lost")
	}
	if got.RepeatType != store.RepeatWeekly {
		t.Errorf("repeat type = %q, want weekly", got.RepeatType)
	}
	if len(got.SubTasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(got.SubTasks))
	}
}

func TestGetTaskMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetTask(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing task, got %+v", got)
	}
}

func TestInsertTaskRequiresID(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertTask(context.Background(), store.Task{Title: "no id"})
	if err == nil {
		t.Fatal("expected error for task without id")
	}
}

func TestUpdateTaskReplacesSubtasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := store.NewTask("Plan trip", "", "", "")
	task.ID = store.GenerateID()
	task.SubTasks = []store.SubTask{
		store.NewSubTask("book flight", task.ID),
		store.NewSubTask("book hotel", task.ID),
	}
	if err := s.InsertTask(ctx, task); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}

	task.Title = "Plan trip to Oslo"
	task.SubTasks = []store.SubTask{store.NewSubTask("renew passport", task.ID)}
	if err := s.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "Plan trip to Oslo" {
		t.Errorf("title = %q after update", got.Title)
	}
	if len(got.SubTasks) != 1 || got.SubTasks[0].Title != "renew passport" {
		t.Errorf("subtasks not replaced: %+v", got.SubTasks)
	}
}

func TestDeleteTaskCascadesSubtasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := store.NewTask("Clean house", "", "", "")
	task.ID = store.GenerateID()
	task.SubTasks = []store.SubTask{store.NewSubTask("vacuum", task.ID)}
	if err := s.InsertTask(ctx, task); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	subs, err := s.SubTasksByParent(ctx, task.ID)
	if err != nil {
		t.Fatalf("SubTasksByParent failed: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expected subtasks to cascade, found %d", len(subs))
	}
}

func TestDeleteMissingTaskIsNoError(t *testing.T) {
	s := newTestStore(t)

	if err := s.DeleteTask(context.Background(), "ghost"); err != nil {
		t.Fatalf("delete of missing task returned error: %v", err)
	}
}

func TestGetAllTasksAttachesSubtasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := store.NewTask("A", "", "", "")
	a.ID = store.GenerateID()
	a.SubTasks = []store.SubTask{store.NewSubTask("a1", a.ID)}
	b := store.NewTask("B", "", "", "")
	b.ID = store.GenerateID()

	for _, task := range []store.Task{a, b} {
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	}

	tasks, err := s.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("GetAllTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	byID := map[string]store.Task{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	if len(byID[a.ID].SubTasks) != 1 {
		t.Errorf("task A should carry its subtask, got %+v", byID[a.ID].SubTasks)
	}
	if len(byID[b.ID].SubTasks) != 0 {
		t.Errorf("task B should have no subtasks")
	}
}

func TestCategoryNameUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	work := store.Category{ID: store.GenerateID(), Name: "Work"}
	if err := s.InsertCategory(ctx, work); err != nil {
		t.Fatalf("InsertCategory failed: %v", err)
	}

	dup := store.Category{ID: store.GenerateID(), Name: "work"}
	err := s.InsertCategory(ctx, dup)
	if err == nil {
		t.Fatal("expected case-insensitive duplicate name to be rejected")
	}
	if _, ok := err.(*utils.ErrorWithSuggestion); !ok {
		t.Errorf("expected ErrorWithSuggestion, got %T", err)
	}

	// Updating a category under its own name must stay legal.
	work.Color = "#ff0000"
	if err := s.UpdateCategory(ctx, work); err != nil {
		t.Fatalf("UpdateCategory with same name failed: %v", err)
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cats := []store.Category{
		{ID: store.GenerateID(), Name: "Personal", SortOrder: 2},
		{ID: store.GenerateID(), Name: "Work", SortOrder: 1, Default: true},
	}
	for _, c := range cats {
		if err := s.InsertCategory(ctx, c); err != nil {
			t.Fatalf("InsertCategory failed: %v", err)
		}
	}

	got, err := s.GetAllCategories(ctx)
	if err != nil {
		t.Fatalf("GetAllCategories failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got))
	}
	if got[0].Name != "Work" {
		t.Errorf("expected sort order to put Work first, got %q", got[0].Name)
	}
	if !got[0].Default {
		t.Error("default flag lost")
	}

	if err := s.DeleteCategory(ctx, got[0].ID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	got, err = s.GetAllCategories(ctx)
	if err != nil {
		t.Fatalf("GetAllCategories failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 category after delete, got %d", len(got))
	}
}
