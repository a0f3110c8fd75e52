package csvfile

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository"
)

type UserRepository struct {
	path   string
	logger logrus.FieldLogger
}

func NewUserRepository(path string, logger logrus.FieldLogger) repository.UserRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserRepository{path: path, logger: logger}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return domain.IOFailure("create dir for", r.path, err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	records, err := readRecords(ctx, r.path, r.logger)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(records))
	for _, rec := range records {
		user, err := DecodeUser(rec.fields)
		if err != nil {
			r.logger.WithFields(logrus.Fields{"file": r.path, "line": rec.line}).
				Warnf("skip user record: %v", err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *UserRepository) Append(ctx context.Context, user domain.User) error {
	return appendRecord(ctx, r.path, UsersHeader, EncodeUser(user))
}
