package repository

import (
	"context"

	"taskdesk/internal/domain"
)

// UserRepository defines persistence operations for User records. Users are append-only.
type UserRepository interface {
	Init(ctx context.Context) error
	List(ctx context.Context) ([]domain.User, error)
	Append(ctx context.Context, user domain.User) error
}
