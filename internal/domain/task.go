package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type TaskStatus string

const (
	TaskStatusIncomplete TaskStatus = "INCOMPLETE"
	TaskStatusComplete   TaskStatus = "COMPLETE"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusIncomplete || s == TaskStatusComplete
}

// ParseTaskStatus matches a status name case-insensitively.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(foldEnum(raw))
	if !status.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return status, nil
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// Priorities lists every priority from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank orders priorities LOW < MEDIUM < HIGH < URGENT. Unknown values rank below LOW.
func (p Priority) Rank() int {
	rank, ok := priorityRank[p]
	if !ok {
		return -1
	}
	return rank
}

// ParsePriority matches a priority name case-insensitively.
func ParsePriority(raw string) (Priority, error) {
	priority := Priority(foldEnum(raw))
	if !priority.Valid() {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return priority, nil
}

// Task represents a to-do item owned by a single user.
type Task struct {
	ID          int64
	Owner       string
	Title       string
	Description string
	DueDate     *time.Time
	Status      TaskStatus
	CreatedAt   time.Time
	Priority    Priority
}

// HasDueDate reports whether the task carries a due date.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	return out
}

// SameContent reports whether two tasks carry the same user-visible content:
// title, description, due date and priority.
func (t Task) SameContent(other Task) bool {
	if t.Title != other.Title || t.Description != other.Description || t.Priority != other.Priority {
		return false
	}
	switch {
	case t.DueDate == nil && other.DueDate == nil:
		return true
	case t.DueDate == nil || other.DueDate == nil:
		return false
	default:
		return t.DueDate.Equal(*other.DueDate)
	}
}

// Casers are stateful, so each call gets its own.
func foldEnum(raw string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(raw))
}
