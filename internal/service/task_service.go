package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository"
	"taskdesk/internal/repository/csvfile"
)

// TaskService owns the authenticated session and its in-memory task collection.
// It is the only component that talks to the task and credential stores.
type TaskService interface {
	Login(ctx context.Context, username, password string) (bool, error)
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Logout()
	CurrentUser() *domain.User
	LoadUserTasks(ctx context.Context) error
	CreateTask(ctx context.Context, title, description string, dueDate *time.Time, priority domain.Priority) (*domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) error
	DeleteTask(ctx context.Context, id int64) error
	GetTask(id int64) (*domain.Task, error)
	AllTasks() []domain.Task
	FilterByStatus(status domain.TaskStatus) []domain.Task
	FilterByPriority(priority domain.Priority) []domain.Task
	SortByDueDate() []domain.Task
	SortByPriority() []domain.Task
	ExportTasks(ctx context.Context, path string, opts csvfile.ExportOptions) error
	ImportTasks(ctx context.Context, path string) ([]domain.Task, error)
}

type taskService struct {
	users  UserService
	tasks  repository.TaskRepository
	logger logrus.FieldLogger

	currentUser *domain.User
	sessionID   string
	items       []domain.Task
}

func NewTaskService(users UserService, tasks repository.TaskRepository, logger logrus.FieldLogger) TaskService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &taskService{
		users:  users,
		tasks:  tasks,
		logger: logger,
	}
}

func (s *taskService) log() logrus.FieldLogger {
	if s.currentUser == nil {
		return s.logger
	}
	return s.logger.WithFields(logrus.Fields{"session": s.sessionID, "user": s.currentUser.Username})
}

func (s *taskService) Login(ctx context.Context, username, password string) (bool, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.WithField("user", username).Info("login rejected")
			return false, nil
		}
		return false, err
	}

	s.currentUser = user
	s.sessionID = uuid.NewString()
	if err := s.LoadUserTasks(ctx); err != nil {
		s.Logout()
		return false, err
	}
	s.log().Infof("logged in with %d tasks", len(s.items))
	return true, nil
}

func (s *taskService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user", user.Username).Info("registered user")
	return user, nil
}

func (s *taskService) Logout() {
	if s.currentUser != nil {
		s.log().Info("logged out")
	}
	s.currentUser = nil
	s.sessionID = ""
	s.items = nil
}

func (s *taskService) CurrentUser() *domain.User {
	if s.currentUser == nil {
		return nil
	}
	user := *s.currentUser
	return &user
}

func (s *taskService) LoadUserTasks(ctx context.Context) error {
	if s.currentUser == nil {
		return domain.ErrNotAuthenticated
	}
	s.items = nil
	owned, err := s.tasks.ListByOwner(ctx, s.currentUser.Username)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	s.items = owned
	return nil
}

func (s *taskService) CreateTask(ctx context.Context, title, description string, dueDate *time.Time, priority domain.Priority) (*domain.Task, error) {
	if s.currentUser == nil {
		return nil, domain.ErrNotAuthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.NewValidationError("title", "task title cannot be empty")
	}
	if !priority.Valid() {
		return nil, domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", priority))
	}

	id, err := s.tasks.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve task id: %w", err)
	}

	task := domain.Task{
		ID:          id,
		Owner:       s.currentUser.Username,
		Title:       title,
		Description: description,
		Status:      domain.TaskStatusIncomplete,
		CreatedAt:   time.Now().UTC(),
		Priority:    priority,
	}
	if dueDate != nil {
		due := dueDate.UTC()
		task.DueDate = &due
	}

	if err := s.tasks.Append(ctx, task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	s.items = append(s.items, task)
	s.log().WithField("task", task.ID).Debug("created task")

	created := task.Clone()
	return &created, nil
}

func (s *taskService) UpdateTask(ctx context.Context, task domain.Task) error {
	if s.currentUser == nil {
		return domain.ErrNotAuthenticated
	}
	idx := s.indexOf(task.ID)
	if idx < 0 {
		return domain.ErrTaskNotFound
	}

	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return domain.NewValidationError("title", "task title cannot be empty")
	}
	if !task.Priority.Valid() {
		return domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", task.Priority))
	}
	if !task.Status.Valid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", task.Status))
	}

	previous := s.items[idx]
	updated := task.Clone()
	updated.Owner = previous.Owner
	updated.CreatedAt = previous.CreatedAt
	if updated.DueDate != nil {
		due := updated.DueDate.UTC()
		updated.DueDate = &due
	}

	s.items[idx] = updated
	if err := s.persist(ctx); err != nil {
		s.items[idx] = previous
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	s.log().WithField("task", task.ID).Debug("updated task")
	return nil
}

func (s *taskService) DeleteTask(ctx context.Context, id int64) error {
	if s.currentUser == nil {
		return domain.ErrNotAuthenticated
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.ErrTaskNotFound
	}

	previous := s.items
	s.items = slices.Delete(slices.Clone(s.items), idx, idx+1)
	if err := s.persist(ctx); err != nil {
		s.items = previous
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	s.log().WithField("task", id).Debug("deleted task")
	return nil
}

func (s *taskService) GetTask(id int64) (*domain.Task, error) {
	if s.currentUser == nil {
		return nil, domain.ErrNotAuthenticated
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, domain.ErrTaskNotFound
	}
	task := s.items[idx].Clone()
	return &task, nil
}

func (s *taskService) AllTasks() []domain.Task {
	return s.selectTasks(func(domain.Task) bool { return true })
}

func (s *taskService) FilterByStatus(status domain.TaskStatus) []domain.Task {
	return s.selectTasks(func(t domain.Task) bool { return t.Status == status })
}

func (s *taskService) FilterByPriority(priority domain.Priority) []domain.Task {
	return s.selectTasks(func(t domain.Task) bool { return t.Priority == priority })
}

// SortByDueDate orders by ascending due date; tasks without one come last.
func (s *taskService) SortByDueDate() []domain.Task {
	sorted := s.AllTasks()
	slices.SortStableFunc(sorted, func(a, b domain.Task) int {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		default:
			return a.DueDate.Compare(*b.DueDate)
		}
	})
	return sorted
}

// SortByPriority orders URGENT first, LOW last.
func (s *taskService) SortByPriority() []domain.Task {
	sorted := s.AllTasks()
	slices.SortStableFunc(sorted, func(a, b domain.Task) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	return sorted
}

func (s *taskService) ExportTasks(ctx context.Context, path string, opts csvfile.ExportOptions) error {
	if s.currentUser == nil {
		return domain.ErrNotAuthenticated
	}
	if err := csvfile.ExportTasks(ctx, path, s.items, opts); err != nil {
		return fmt.Errorf("export tasks: %w", err)
	}
	s.log().WithField("file", path).Infof("exported %d tasks", len(s.items))
	return nil
}

// ImportTasks merges the tasks read from path into the session, skipping any
// whose content duplicates a task already present, and returns those added.
func (s *taskService) ImportTasks(ctx context.Context, path string) ([]domain.Task, error) {
	if s.currentUser == nil {
		return nil, domain.ErrNotAuthenticated
	}

	imported, err := csvfile.ImportTasks(ctx, path, s.currentUser.Username, s.log())
	if err != nil {
		return nil, fmt.Errorf("import tasks: %w", err)
	}

	fresh := make([]domain.Task, 0, len(imported))
	for _, task := range imported {
		if slices.ContainsFunc(s.items, task.SameContent) || slices.ContainsFunc(fresh, task.SameContent) {
			s.log().WithField("title", task.Title).Debug("skip duplicate import")
			continue
		}
		fresh = append(fresh, task)
	}
	if len(fresh) == 0 {
		s.log().WithField("file", path).Infof("imported 0 of %d tasks", len(imported))
		return []domain.Task{}, nil
	}

	first, err := s.tasks.ReserveIDs(ctx, len(fresh))
	if err != nil {
		return nil, fmt.Errorf("import tasks: reserve ids: %w", err)
	}

	previous := s.items
	merged := slices.Clone(s.items)
	added := make([]domain.Task, 0, len(fresh))
	for i, task := range fresh {
		task.ID = first + int64(i)
		merged = append(merged, task)
		added = append(added, task.Clone())
	}

	s.items = merged
	if err := s.persist(ctx); err != nil {
		s.items = previous
		return nil, fmt.Errorf("import tasks: %w", err)
	}
	s.log().WithField("file", path).Infof("imported %d of %d tasks", len(added), len(imported))
	return added, nil
}

func (s *taskService) persist(ctx context.Context) error {
	return s.tasks.ReplaceForOwner(ctx, s.currentUser.Username, s.items)
}

func (s *taskService) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(t domain.Task) bool { return t.ID == id })
}

func (s *taskService) selectTasks(keep func(domain.Task) bool) []domain.Task {
	out := make([]domain.Task, 0, len(s.items))
	for _, task := range s.items {
		if keep(task) {
			out = append(out, task.Clone())
		}
	}
	return out
}
