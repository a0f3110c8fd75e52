package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return domain.IOFailure("create", "users table", err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT username, password_hash
FROM users
ORDER BY seq ASC`)
	if err != nil {
		return nil, domain.IOFailure("query", "users", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.Username, &user.PasswordHash); err != nil {
			return nil, domain.IOFailure("scan", "user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOFailure("iterate", "users", err)
	}
	return users, nil
}

func (r *UserRepository) Append(ctx context.Context, user domain.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password_hash)
VALUES (?, ?)`,
		user.Username,
		user.PasswordHash,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateUser, user.Username)
		}
		return domain.IOFailure("insert", "user", err)
	}
	return nil
}
