package csvfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskdesk/internal/domain"
)

const (
	UserFieldCount = 2
	TaskFieldCount = 8
)

var (
	UsersHeader = []string{"username", "password"}
	TasksHeader = []string{"task_id", "user_id", "title", "description", "due_date", "status", "created_at", "priority"}
)

// legacyNoDueDate is how older files spelled an absent due date.
const legacyNoDueDate = "null"

const delimiter = ","

// Line breaks and backslashes inside text fields are written as \n, \r and \\,
// so every record occupies exactly one physical line.
var (
	textEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	textUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

func escapeText(s string) string   { return textEscaper.Replace(s) }
func unescapeText(s string) string { return textUnescaper.Replace(s) }

// Zone-less layouts accepted on read, interpreted in local time.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// FormatTimestamp renders t as RFC 3339 with nanoseconds, in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts RFC 3339 or one of the zone-less local layouts and returns UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

func EncodeUser(user domain.User) []string {
	return []string{escapeText(user.Username), escapeText(user.PasswordHash)}
}

func DecodeUser(fields []string) (domain.User, error) {
	if len(fields) != UserFieldCount {
		return domain.User{}, fmt.Errorf("%w: user has %d fields, want %d", domain.ErrMalformedRecord, len(fields), UserFieldCount)
	}
	if fields[0] == "" {
		return domain.User{}, fmt.Errorf("%w: empty username", domain.ErrMalformedRecord)
	}
	if fields[1] == "" {
		return domain.User{}, fmt.Errorf("%w: empty password hash for %q", domain.ErrMalformedRecord, fields[0])
	}
	return domain.User{Username: unescapeText(fields[0]), PasswordHash: unescapeText(fields[1])}, nil
}

func EncodeTask(task domain.Task) []string {
	due := ""
	if task.DueDate != nil {
		due = FormatTimestamp(*task.DueDate)
	}
	return []string{
		strconv.FormatInt(task.ID, 10),
		escapeText(task.Owner),
		escapeText(task.Title),
		escapeText(task.Description),
		due,
		string(task.Status),
		FormatTimestamp(task.CreatedAt),
		string(task.Priority),
	}
}

func DecodeTask(fields []string) (domain.Task, error) {
	if len(fields) != TaskFieldCount {
		return domain.Task{}, fmt.Errorf("%w: task has %d fields, want %d", domain.ErrMalformedRecord, len(fields), TaskFieldCount)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil || id <= 0 {
		return domain.Task{}, fmt.Errorf("%w: invalid task id %q", domain.ErrMalformedRecord, fields[0])
	}
	if fields[1] == "" {
		return domain.Task{}, fmt.Errorf("%w: task %d has no owner", domain.ErrMalformedRecord, id)
	}
	if strings.TrimSpace(fields[2]) == "" {
		return domain.Task{}, fmt.Errorf("%w: task %d has an empty title", domain.ErrMalformedRecord, id)
	}

	task := domain.Task{
		ID:          id,
		Owner:       unescapeText(fields[1]),
		Title:       unescapeText(fields[2]),
		Description: unescapeText(fields[3]),
	}

	if due := strings.TrimSpace(fields[4]); due != "" && due != legacyNoDueDate {
		t, err := ParseTimestamp(due)
		if err != nil {
			return domain.Task{}, fmt.Errorf("%w: task %d due date: %v", domain.ErrMalformedRecord, id, err)
		}
		task.DueDate = &t
	}

	if task.Status, err = domain.ParseTaskStatus(fields[5]); err != nil {
		return domain.Task{}, fmt.Errorf("%w: task %d: %v", domain.ErrMalformedRecord, id, err)
	}
	if task.CreatedAt, err = ParseTimestamp(fields[6]); err != nil {
		return domain.Task{}, fmt.Errorf("%w: task %d created at: %v", domain.ErrMalformedRecord, id, err)
	}
	if task.Priority, err = domain.ParsePriority(fields[7]); err != nil {
		return domain.Task{}, fmt.Errorf("%w: task %d: %v", domain.ErrMalformedRecord, id, err)
	}

	return task, nil
}

// EncodeLine renders fields as one CSV line without the trailing newline.
// Fields holding the delimiter, quotes or line breaks are quoted.
func EncodeLine(fields []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return "", fmt.Errorf("encode line: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("encode line: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeLine splits one CSV line into fields. It never checks the field count.
func DecodeLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return fields, nil
}
