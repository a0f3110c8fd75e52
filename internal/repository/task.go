package repository

import (
	"context"

	"taskdesk/internal/domain"
)

// TaskRepository exposes persistence operations for Task records.
type TaskRepository interface {
	Init(ctx context.Context) error
	List(ctx context.Context) ([]domain.Task, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Task, error)
	Append(ctx context.Context, task domain.Task) error
	// SaveAll overwrites the whole store with tasks, in order.
	SaveAll(ctx context.Context, tasks []domain.Task) error
	// ReplaceForOwner makes owner's rows exactly tasks and keeps every other owner's rows.
	ReplaceForOwner(ctx context.Context, owner string, tasks []domain.Task) error
	// NextID reserves a task id that has never been issued before.
	NextID(ctx context.Context) (int64, error)
	// ReserveIDs reserves count consecutive never-issued ids and returns the first.
	ReserveIDs(ctx context.Context, count int) (int64, error)
}
