// Package sqlite implements store.LocalStore using SQLite. It is the
// durable tier of the three-tier write path and must survive process
// restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
	"todosync/internal/utils"
	"todosync/store"
)

// Store implements store.LocalStore backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and initializes the
// schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the database tables if they don't exist
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			due_date TEXT DEFAULT '',
			due_time TEXT DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			completion_date TEXT DEFAULT '',
			important INTEGER NOT NULL DEFAULT 0,
			category TEXT DEFAULT '',
			reminder_type TEXT DEFAULT '',
			has_reminder INTEGER NOT NULL DEFAULT 0,
			attachments TEXT DEFAULT '',
			repeat_type TEXT DEFAULT '',
			repeating INTEGER NOT NULL DEFAULT 0,
			shared INTEGER NOT NULL DEFAULT 0,
			last_modified INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT '',
			updated_at TEXT DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS subtasks (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT '',
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			is_default INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT '',
			updated_at TEXT DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_subtasks_task_id ON subtasks(task_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
	`

	// Enable foreign keys so subtask rows cascade with their parent task
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	_, err := s.db.Exec(schema)
	return err
}

// InsertTask stores a new task and its subtasks.
func (s *Store) InsertTask(ctx context.Context, task store.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks
		(id, title, description, due_date, due_time, completed, completion_date,
		 important, category, reminder_type, has_reminder, attachments,
		 repeat_type, repeating, shared, last_modified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.DueDate, task.DueTime,
		boolToInt(task.Completed), task.CompletionDate, boolToInt(task.Important),
		task.Category, task.ReminderType, boolToInt(task.HasReminder),
		task.Attachments, string(task.RepeatType), boolToInt(task.Repeating),
		boolToInt(task.Shared), task.LastModified, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err := replaceSubTasks(ctx, tx, task); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateTask replaces the stored task and its subtasks. Inserts if the task
// is not yet present, matching the cache's upsert semantics.
func (s *Store) UpdateTask(ctx context.Context, task store.Task) error {
	return s.InsertTask(ctx, task)
}

// DeleteTask removes the task; subtask rows cascade via the foreign key.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		utils.Debugf("sqlite: delete of %s matched no rows", taskID)
	}
	return nil
}

// GetTask returns the task by id with its subtasks, or nil if absent.
func (s *Store) GetTask(ctx context.Context, taskID string) (*store.Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+" WHERE id = ?", taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	subs, err := s.SubTasksByParent(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.SubTasks = subs
	return &task, nil
}

// GetAllTasks returns all stored tasks. Subtask rows whose parent no longer
// exists are skipped, so orphans never surface on load.
func (s *Store) GetAllTasks(ctx context.Context) ([]store.Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := []store.Task{}
	index := map[string]int{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		index[task.ID] = len(tasks)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := s.db.QueryContext(ctx,
		"SELECT id, task_id, title, completed, created_at FROM subtasks")
	if err != nil {
		return nil, err
	}
	defer func() { _ = subRows.Close() }()

	for subRows.Next() {
		st, err := scanSubTask(subRows)
		if err != nil {
			return nil, err
		}
		i, ok := index[st.TaskID]
		if !ok {
			utils.Debugf("sqlite: dropping orphaned subtask %s (parent %s)", st.ID, st.TaskID)
			continue
		}
		tasks[i].SubTasks = append(tasks[i].SubTasks, st)
	}
	return tasks, subRows.Err()
}

// SubTasksByParent returns the subtasks of one task via the parent index.
func (s *Store) SubTasksByParent(ctx context.Context, taskID string) ([]store.SubTask, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, task_id, title, completed, created_at FROM subtasks WHERE task_id = ?", taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []store.SubTask
	for rows.Next() {
		st, err := scanSubTask(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, st)
	}
	return subs, rows.Err()
}

// InsertCategory stores a new category. Name uniqueness is enforced here,
// case-insensitive.
func (s *Store) InsertCategory(ctx context.Context, cat store.Category) error {
	if cat.ID == "" {
		return fmt.Errorf("category id is required")
	}
	taken, err := s.categoryNameTaken(ctx, cat.Name, "")
	if err != nil {
		return err
	}
	if taken {
		return utils.ErrCategoryExists(cat.Name)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, color, sort_order, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cat.ID, cat.Name, cat.Color, cat.SortOrder, boolToInt(cat.Default),
		cat.CreatedAt, cat.UpdatedAt,
	)
	return err
}

// UpdateCategory replaces the stored category, still enforcing name
// uniqueness against other categories.
func (s *Store) UpdateCategory(ctx context.Context, cat store.Category) error {
	taken, err := s.categoryNameTaken(ctx, cat.Name, cat.ID)
	if err != nil {
		return err
	}
	if taken {
		return utils.ErrCategoryExists(cat.Name)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, color = ?, sort_order = ?, is_default = ?, updated_at = ?
		WHERE id = ?`,
		cat.Name, cat.Color, cat.SortOrder, boolToInt(cat.Default), cat.UpdatedAt, cat.ID,
	)
	return err
}

// DeleteCategory removes the category. Tasks keep their dangling category
// reference; the read side treats an unknown id as uncategorized.
func (s *Store) DeleteCategory(ctx context.Context, categoryID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", categoryID)
	return err
}

// GetAllCategories returns all categories ordered by sort order, then name.
func (s *Store) GetAllCategories(ctx context.Context) ([]store.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, color, sort_order, is_default, created_at, updated_at FROM categories ORDER BY sort_order, name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cats := []store.Category{}
	for rows.Next() {
		var c store.Category
		var isDefault int
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.SortOrder, &isDefault, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Default = isDefault != 0
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) categoryNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE LOWER(name) = ? AND id != ?",
		strings.ToLower(name), excludeID,
	).Scan(&count)
	return count > 0, err
}

const taskSelect = `
	SELECT id, title, description, due_date, due_time, completed, completion_date,
	       important, category, reminder_type, has_reminder, attachments,
	       repeat_type, repeating, shared, last_modified, created_at, updated_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (store.Task, error) {
	var t store.Task
	var completed, important, hasReminder, repeating, shared int
	var repeatType string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.DueDate, &t.DueTime,
		&completed, &t.CompletionDate, &important, &t.Category,
		&t.ReminderType, &hasReminder, &t.Attachments,
		&repeatType, &repeating, &shared, &t.LastModified,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return store.Task{}, err
	}
	t.Completed = completed != 0
	t.Important = important != 0
	t.HasReminder = hasReminder != 0
	t.Repeating = repeating != 0
	t.Shared = shared != 0
	t.RepeatType = store.RepeatType(repeatType)
	return t, nil
}

func scanSubTask(row rowScanner) (store.SubTask, error) {
	var st store.SubTask
	var completed int
	err := row.Scan(&st.ID, &st.TaskID, &st.Title, &completed, &st.CreatedAt)
	if err != nil {
		return store.SubTask{}, err
	}
	st.Completed = completed != 0
	return st, nil
}

func replaceSubTasks(ctx context.Context, tx *sql.Tx, task store.Task) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM subtasks WHERE task_id = ?", task.ID); err != nil {
		return err
	}
	for _, st := range task.SubTasks {
		if st.ID == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subtasks (id, task_id, title, completed, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			st.ID, task.ID, st.Title, boolToInt(st.Completed), st.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
