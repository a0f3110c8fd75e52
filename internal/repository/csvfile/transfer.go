package csvfile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/domain"
)

const (
	columnTitle       = "Title"
	columnDescription = "Description"
	columnDueDate     = "Due Date"
	columnPriority    = "Priority"
)

// ExportOptions selects the optional columns written after Title.
type ExportOptions struct {
	IncludeDescription bool
	IncludeDueDate     bool
	IncludePriority    bool
}

func (o ExportOptions) header() []string {
	header := []string{columnTitle}
	if o.IncludeDescription {
		header = append(header, columnDescription)
	}
	if o.IncludeDueDate {
		header = append(header, columnDueDate)
	}
	if o.IncludePriority {
		header = append(header, columnPriority)
	}
	return header
}

// ExportTasks writes tasks to path with the columns Title[,Description][,Due Date][,Priority].
func ExportTasks(ctx context.Context, path string, tasks []domain.Task, opts ExportOptions) error {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		row := []string{escapeText(task.Title)}
		if opts.IncludeDescription {
			row = append(row, escapeText(task.Description))
		}
		if opts.IncludeDueDate {
			due := ""
			if task.DueDate != nil {
				due = FormatTimestamp(*task.DueDate)
			}
			row = append(row, due)
		}
		if opts.IncludePriority {
			row = append(row, string(task.Priority))
		}
		rows = append(rows, row)
	}
	return writeRecords(ctx, path, opts.header(), rows)
}

// ImportTasks reads an export-shaped file and returns one task per valid row,
// owned by owner, INCOMPLETE and created now. Ids are left at zero for the
// caller to assign. Rows without a title or with an unreadable due date or
// priority are logged and skipped. Unlike loads, a missing source file is an error.
func ImportTasks(ctx context.Context, path, owner string, logger logrus.FieldLogger) ([]domain.Task, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, domain.IOFailure("open", path, err)
	}

	t, err := readTable(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	cols := locateColumns(t.header)

	now := time.Now().UTC()
	imported := make([]domain.Task, 0, len(t.records))
	for _, rec := range t.records {
		task, err := cols.decode(rec.fields)
		if err != nil {
			logger.WithFields(logrus.Fields{"file": path, "line": rec.line}).
				Warnf("skip imported row: %v", err)
			continue
		}
		task.Owner = owner
		task.Status = domain.TaskStatusIncomplete
		task.CreatedAt = now
		imported = append(imported, task)
	}
	return imported, nil
}

// importColumns holds the index of each known column, or -1 when absent.
type importColumns struct {
	title, description, dueDate, priority int
}

var positionalColumns = importColumns{title: 0, description: 1, dueDate: 2, priority: 3}

func locateColumns(header []string) importColumns {
	cols := importColumns{title: -1, description: -1, dueDate: -1, priority: -1}
	for i, name := range header {
		switch {
		case strings.EqualFold(strings.TrimSpace(name), columnTitle):
			cols.title = i
		case strings.EqualFold(strings.TrimSpace(name), columnDescription):
			cols.description = i
		case strings.EqualFold(strings.TrimSpace(name), columnDueDate):
			cols.dueDate = i
		case strings.EqualFold(strings.TrimSpace(name), columnPriority):
			cols.priority = i
		}
	}
	if cols.title < 0 {
		return positionalColumns
	}
	return cols
}

func (c importColumns) decode(fields []string) (domain.Task, error) {
	title := strings.TrimSpace(unescapeText(field(fields, c.title)))
	if title == "" {
		return domain.Task{}, fmt.Errorf("%w: missing title", domain.ErrMalformedRecord)
	}

	task := domain.Task{
		Title:       title,
		Description: unescapeText(field(fields, c.description)),
		Priority:    domain.PriorityMedium,
	}

	if raw := strings.TrimSpace(field(fields, c.dueDate)); raw != "" && raw != legacyNoDueDate {
		due, err := ParseTimestamp(raw)
		if err != nil {
			return domain.Task{}, fmt.Errorf("%w: due date: %v", domain.ErrMalformedRecord, err)
		}
		task.DueDate = &due
	}

	if raw := strings.TrimSpace(field(fields, c.priority)); raw != "" {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			return domain.Task{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
		}
		task.Priority = priority
	}

	return task, nil
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}
