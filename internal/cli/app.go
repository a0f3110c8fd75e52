package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/config"
	"taskdesk/internal/preference"
	"taskdesk/internal/repository"
	"taskdesk/internal/repository/csvfile"
	"taskdesk/internal/repository/sqlite"
	"taskdesk/internal/service"
)

// App is the wired set of services one front-end session works with.
type App struct {
	Config      config.Config
	Logger      *logrus.Logger
	Users       service.UserService
	Tasks       service.TaskService
	Preferences *preference.Store

	db *sql.DB
}

// NewLogger builds the process logger the way every entry point uses it.
func NewLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// NewApp opens the configured backend and wires the services on top of it.
func NewApp(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}

	var (
		userRepo repository.UserRepository
		taskRepo repository.TaskRepository
		db       *sql.DB
	)
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		var err error
		db, err = sqlite.Open(cfg.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		userRepo = sqlite.NewUserRepository(db)
		taskRepo = sqlite.NewTaskRepository(db, logger)
	default:
		userRepo = csvfile.NewUserRepository(cfg.UsersPath(), logger)
		taskRepo = csvfile.NewTaskRepository(cfg.TasksPath(), cfg.SequencePath(), logger)
	}

	if err := userRepo.Init(ctx); err != nil {
		closeDB(db, logger)
		return nil, fmt.Errorf("init user repository: %w", err)
	}
	if err := taskRepo.Init(ctx); err != nil {
		closeDB(db, logger)
		return nil, fmt.Errorf("init task repository: %w", err)
	}

	users := service.NewUserService(userRepo, service.UserOptions{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		HashCost:          cfg.Auth.BcryptCost,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Users:       users,
		Tasks:       service.NewTaskService(users, taskRepo, logger),
		Preferences: preference.NewStore(cfg.ThemePath()),
		db:          db,
	}, nil
}

// Close ends the session and releases the backend.
func (a *App) Close() error {
	a.Tasks.Logout()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func closeDB(db *sql.DB, logger logrus.FieldLogger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Warnf("close database: %v", err)
	}
}
