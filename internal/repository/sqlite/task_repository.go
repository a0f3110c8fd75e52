package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository"
)

const (
	createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id INTEGER NOT NULL UNIQUE,
	owner TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date DATETIME NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	priority TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner);
`
	// task_ids only feeds AUTOINCREMENT, which never hands out a value twice.
	createTaskIDsTable = `
CREATE TABLE IF NOT EXISTS task_ids (
	id INTEGER PRIMARY KEY AUTOINCREMENT
);
`
	selectTaskColumns = `SELECT id, owner, title, description, due_date, status, created_at, priority FROM tasks`
)

type TaskRepository struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

func NewTaskRepository(db *sql.DB, logger logrus.FieldLogger) repository.TaskRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksTable); err != nil {
		return domain.IOFailure("create", "tasks table", err)
	}
	if _, err := r.db.ExecContext(ctx, createTaskIDsTable); err != nil {
		return domain.IOFailure("create", "task_ids table", err)
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context) ([]domain.Task, error) {
	return r.query(ctx, selectTaskColumns+` ORDER BY seq ASC`)
}

func (r *TaskRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Task, error) {
	return r.query(ctx, selectTaskColumns+` WHERE owner=? ORDER BY seq ASC`, owner)
}

func (r *TaskRepository) Append(ctx context.Context, task domain.Task) error {
	return insertTask(ctx, r.db, task)
}

func (r *TaskRepository) SaveAll(ctx context.Context, tasks []domain.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IOFailure("begin", "tx", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return domain.IOFailure("delete", "tasks", err)
	}
	for _, task := range tasks {
		if err := insertTask(ctx, tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.IOFailure("commit", "tasks", err)
	}
	return nil
}

func (r *TaskRepository) ReplaceForOwner(ctx context.Context, owner string, tasks []domain.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IOFailure("begin", "tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner=?`, owner); err != nil {
		return domain.IOFailure("delete", "owner tasks", err)
	}
	for _, task := range tasks {
		if err := insertTask(ctx, tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.IOFailure("commit", "owner tasks", err)
	}
	return nil
}

func (r *TaskRepository) NextID(ctx context.Context) (int64, error) {
	return r.ReserveIDs(ctx, 1)
}

// ReserveIDs moves the task_ids AUTOINCREMENT counter past both the ids it
// already issued and the ids stored in tasks, then hands out the next count.
func (r *TaskRepository) ReserveIDs(ctx context.Context, count int) (int64, error) {
	if count < 1 {
		return 0, domain.NewValidationError("count", fmt.Sprintf("cannot reserve %d task ids", count))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.IOFailure("begin", "tx", err)
	}
	defer tx.Rollback()

	var highest, issued int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM tasks`).Scan(&highest); err != nil {
		return 0, domain.IOFailure("query", "max task id", err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'task_ids'), 0)`,
	).Scan(&issued); err != nil {
		return 0, domain.IOFailure("query", "task id sequence", err)
	}
	if issued > highest {
		highest = issued
	}

	last := highest + int64(count)
	if _, err := tx.ExecContext(ctx, `INSERT INTO task_ids (id) VALUES (?)`, last); err != nil {
		return 0, domain.IOFailure("reserve", "task ids", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_ids`); err != nil {
		return 0, domain.IOFailure("trim", "task ids", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.IOFailure("commit", "task ids", err)
	}
	return highest + 1, nil
}

// query decodes every row it can. A row whose status or priority is not
// recognised is logged and skipped.
func (r *TaskRepository) query(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.IOFailure("query", "tasks", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		row, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		task, err := row.decode()
		if err != nil {
			r.logger.WithField("id", row.id).Warnf("skip task row: %v", err)
			continue
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOFailure("iterate", "tasks", err)
	}
	return tasks, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTask(ctx context.Context, db execer, task domain.Task) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO tasks (id, owner, title, description, due_date, status, created_at, priority)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Owner,
		task.Title,
		task.Description,
		nullTime(task.DueDate),
		string(task.Status),
		task.CreatedAt.UTC(),
		string(task.Priority),
	)
	if err != nil {
		return domain.IOFailure("insert", fmt.Sprintf("task %d", task.ID), err)
	}
	return nil
}

// taskRow is a tasks row before its enum columns are validated.
type taskRow struct {
	id          int64
	owner       string
	title       string
	description string
	dueDate     sql.NullTime
	status      string
	createdAt   time.Time
	priority    string
}

func scanTaskRow(scanner interface {
	Scan(dest ...any) error
}) (taskRow, error) {
	var row taskRow
	if err := scanner.Scan(
		&row.id,
		&row.owner,
		&row.title,
		&row.description,
		&row.dueDate,
		&row.status,
		&row.createdAt,
		&row.priority,
	); err != nil {
		return taskRow{}, domain.IOFailure("scan", "task", err)
	}
	return row, nil
}

func (row taskRow) decode() (domain.Task, error) {
	task := domain.Task{
		ID:          row.id,
		Owner:       row.owner,
		Title:       row.title,
		Description: row.description,
		CreatedAt:   row.createdAt.UTC(),
	}

	var err error
	if task.Status, err = domain.ParseTaskStatus(row.status); err != nil {
		return domain.Task{}, fmt.Errorf("%w: task %d: %v", domain.ErrMalformedRecord, row.id, err)
	}
	if task.Priority, err = domain.ParsePriority(row.priority); err != nil {
		return domain.Task{}, fmt.Errorf("%w: task %d: %v", domain.ErrMalformedRecord, row.id, err)
	}
	if row.dueDate.Valid {
		t := row.dueDate.Time.UTC()
		task.DueDate = &t
	}
	return task, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
