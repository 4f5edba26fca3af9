package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const taskColumns = `id, tenant_id, project_id, title, priority, status, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var t Task
	var projectID, completedAt sql.NullString
	var createdAt string
	if err := r.Scan(&t.ID, &t.TenantID, &projectID, &t.Title, &t.Priority, &t.Status, &createdAt, &completedAt); err != nil {
		return Task{}, err
	}
	t.ProjectID = projectID.String
	var err error
	if t.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Task{}, err
	}
	if completedAt.Valid && completedAt.String != "" {
		if t.CompletedAt, err = parseTime("completed_at", completedAt.String); err != nil {
			return Task{}, err
		}
	}
	return t, nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var results []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// ListOpenTasks returns the tenant's tasks that are neither done nor cancelled,
// oldest first.
func (s *Store) ListOpenTasks(ctx context.Context, tenantID string) ([]Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE tenant_id = ? AND status NOT IN (?, ?)
		ORDER BY created_at ASC, id ASC`,
		tenantID, StatusDone, StatusCancelled)
}

// ListTasks returns tasks filtered by status (all when empty), newest first.
func (s *Store) ListTasks(ctx context.Context, tenantID, status string, limit int) ([]Task, error) {
	if status == "" {
		return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
			WHERE tenant_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, tenantID, limit)
	}
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE tenant_id = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT ?`, tenantID, status, limit)
}

// ListTodoByPriority returns todo tasks of one priority, oldest first.
func (s *Store) ListTodoByPriority(ctx context.Context, tenantID, priority string, limit int) ([]Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE tenant_id = ? AND status = ? AND priority = ?
		ORDER BY created_at ASC, id ASC LIMIT ?`, tenantID, StatusTodo, priority, limit)
}

// ListTodoUrgentFirst returns todo tasks with urgent ones first, each group
// newest first.
func (s *Store) ListTodoUrgentFirst(ctx context.Context, tenantID string, limit int) ([]Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE tenant_id = ? AND status = ?
		ORDER BY CASE WHEN priority = ? THEN 0 ELSE 1 END, created_at DESC, id DESC
		LIMIT ?`, tenantID, StatusTodo, PriorityUrgent, limit)
}

func (s *Store) GetTask(ctx context.Context, tenantID, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE tenant_id = ? AND id = ?`), tenantID, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *Store) InsertTask(ctx context.Context, t Task) error {
	if t.Priority == "" {
		t.Priority = PriorityImportant
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = nowUTC()
	}
	var projectID any
	if t.ProjectID != "" {
		projectID = t.ProjectID
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO tasks (id, tenant_id, project_id, title, priority, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.TenantID, projectID, t.Title, t.Priority, t.Status, formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task %q: %w", t.Title, err)
	}
	return nil
}

// CloseTask moves an open task to done or cancelled. Terminal tasks are left
// untouched, so the transition only ever runs todo -> terminal. It reports
// whether a row changed.
func (s *Store) CloseTask(ctx context.Context, tenantID, id, status string, at time.Time) (bool, error) {
	if status != StatusDone && status != StatusCancelled {
		return false, fmt.Errorf("invalid terminal status %q", status)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE tasks SET status = ?, completed_at = ?
		WHERE tenant_id = ? AND id = ? AND status NOT IN (?, ?)`),
		status, formatTime(at), tenantID, id, StatusDone, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("closing task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
