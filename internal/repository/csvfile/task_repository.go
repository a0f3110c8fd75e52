package csvfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository"
)

type TaskRepository struct {
	path   string
	seq    sequence
	logger logrus.FieldLogger
}

// NewTaskRepository stores tasks in path and the id high-water mark in sequencePath.
func NewTaskRepository(path, sequencePath string, logger logrus.FieldLogger) repository.TaskRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TaskRepository{
		path:   path,
		seq:    sequence{path: sequencePath},
		logger: logger,
	}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return domain.IOFailure("create dir for", r.path, err)
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context) ([]domain.Task, error) {
	records, err := readRecords(ctx, r.path, r.logger)
	if err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(records))
	for _, rec := range records {
		task, err := DecodeTask(rec.fields)
		if err != nil {
			r.logger.WithFields(logrus.Fields{"file": r.path, "line": rec.line}).
				Warnf("skip task record: %v", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Task, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]domain.Task, 0, len(all))
	for _, task := range all {
		if task.Owner == owner {
			owned = append(owned, task)
		}
	}
	return owned, nil
}

func (r *TaskRepository) Append(ctx context.Context, task domain.Task) error {
	return appendRecord(ctx, r.path, TasksHeader, EncodeTask(task))
}

func (r *TaskRepository) SaveAll(ctx context.Context, tasks []domain.Task) error {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, EncodeTask(task))
	}
	return writeRecords(ctx, r.path, TasksHeader, rows)
}

// ReplaceForOwner rewrites the file line by line. Lines of other owners and
// lines that do not decode are carried over verbatim.
func (r *TaskRepository) ReplaceForOwner(ctx context.Context, owner string, tasks []domain.Task) error {
	records, err := readRecords(ctx, r.path, r.logger)
	if err != nil {
		return err
	}

	header, err := EncodeLine(TasksHeader)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(records)+len(tasks)+1)
	lines = append(lines, header)
	for _, rec := range records {
		if task, err := DecodeTask(rec.fields); err == nil && task.Owner == owner {
			continue
		}
		lines = append(lines, rec.raw)
	}
	for _, task := range tasks {
		line, err := EncodeLine(EncodeTask(task))
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	return writeLines(ctx, r.path, lines)
}

func (r *TaskRepository) NextID(ctx context.Context) (int64, error) {
	return r.ReserveIDs(ctx, 1)
}

// ReserveIDs advances the high-water mark past both the sequence file and
// every id present in the task file, including ids on rows that fail to decode.
func (r *TaskRepository) ReserveIDs(ctx context.Context, count int) (int64, error) {
	if count < 1 {
		return 0, domain.NewValidationError("count", fmt.Sprintf("cannot reserve %d task ids", count))
	}

	highest, err := r.seq.load(ctx)
	if err != nil {
		return 0, err
	}

	records, err := readRecords(ctx, r.path, r.logger)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if len(rec.fields) == 0 {
			continue
		}
		if id, err := strconv.ParseInt(strings.TrimSpace(rec.fields[0]), 10, 64); err == nil && id > highest {
			highest = id
		}
	}

	if err := r.seq.store(ctx, highest+int64(count)); err != nil {
		return 0, err
	}
	return highest + 1, nil
}
