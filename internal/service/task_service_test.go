package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/internal/domain"
	"taskdesk/internal/repository"
	"taskdesk/internal/repository/csvfile"
)

type fixture struct {
	dir   string
	users UserService
	tasks repository.TaskRepository
	hook  *test.Hook
	svc   TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger, hook := test.NewNullLogger()

	userRepo := csvfile.NewUserRepository(filepath.Join(dir, "users.csv"), logger)
	taskRepo := csvfile.NewTaskRepository(filepath.Join(dir, "tasks.csv"), filepath.Join(dir, "tasks.seq"), logger)
	require.NoError(t, userRepo.Init(ctx))
	require.NoError(t, taskRepo.Init(ctx))

	users := newTestUserService(userRepo)
	return &fixture{
		dir:   dir,
		users: users,
		tasks: taskRepo,
		hook:  hook,
		svc:   NewTaskService(users, taskRepo, logger),
	}
}

// session opens a second, independent session over the same stores.
func (f *fixture) session() TaskService {
	logger, _ := test.NewNullLogger()
	return NewTaskService(f.users, f.tasks, logger)
}

func (f *fixture) login(t *testing.T, svc TaskService, username, password string) {
	t.Helper()
	ok, err := svc.Login(context.Background(), username, password)
	require.NoError(t, err)
	require.True(t, ok)
}

func (f *fixture) register(t *testing.T, username, password string) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), username, password)
	require.NoError(t, err)
}

func dueAt(day int) *time.Time {
	d := time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC)
	return &d
}

func titles(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}

func TestTaskService_RequiresLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Nil(t, f.svc.CurrentUser())
	assert.Empty(t, f.svc.AllTasks())

	_, err := f.svc.CreateTask(ctx, "x", "", nil, domain.PriorityLow)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.ErrorIs(t, f.svc.UpdateTask(ctx, domain.Task{ID: 1}), domain.ErrNotAuthenticated)
	assert.ErrorIs(t, f.svc.DeleteTask(ctx, 1), domain.ErrNotAuthenticated)
	assert.ErrorIs(t, f.svc.LoadUserTasks(ctx), domain.ErrNotAuthenticated)
	_, err = f.svc.GetTask(1)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.ErrorIs(t, f.svc.ExportTasks(ctx, filepath.Join(f.dir, "out.csv"), csvfile.ExportOptions{}), domain.ErrNotAuthenticated)
	_, err = f.svc.ImportTasks(ctx, filepath.Join(f.dir, "in.csv"))
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestTaskService_LoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")

	ok, err := f.svc.Login(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, f.svc.CurrentUser())

	ok, err = f.svc.Login(ctx, "nobody", "secret1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskService_RegisterDoesNotLogIn(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	assert.Nil(t, f.svc.CurrentUser())
}

func TestTaskService_AliceSessionPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	user := f.svc.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)

	milk, err := f.svc.CreateTask(ctx, "  Buy milk  ", "2%, whole", dueAt(1), domain.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", milk.Title)
	assert.Equal(t, "alice", milk.Owner)
	assert.Equal(t, domain.TaskStatusIncomplete, milk.Status)
	assert.False(t, milk.CreatedAt.IsZero())

	rent, err := f.svc.CreateTask(ctx, "Pay rent", "", nil, domain.PriorityUrgent)
	require.NoError(t, err)
	assert.Greater(t, rent.ID, milk.ID)

	milk.Status = domain.TaskStatusComplete
	require.NoError(t, f.svc.UpdateTask(ctx, *milk))
	require.NoError(t, f.svc.DeleteTask(ctx, rent.ID))

	f.svc.Logout()
	assert.Nil(t, f.svc.CurrentUser())
	assert.Empty(t, f.svc.AllTasks())

	f.login(t, f.svc, "alice", "secret1")
	tasks := f.svc.AllTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, milk.ID, tasks[0].ID)
	assert.Equal(t, domain.TaskStatusComplete, tasks[0].Status)
	assert.Equal(t, "2%, whole", tasks[0].Description)
	require.NotNil(t, tasks[0].DueDate)
	assert.True(t, dueAt(1).Equal(*tasks[0].DueDate))

	var sessions []string
	for _, entry := range f.hook.AllEntries() {
		if s, ok := entry.Data["session"].(string); ok {
			sessions = append(sessions, s)
		}
	}
	require.NotEmpty(t, sessions)
	_, err = uuid.Parse(sessions[0])
	assert.NoError(t, err)
}

func TestTaskService_SessionsDoNotClobberEachOther(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.register(t, "bob", "secret2")

	alice := f.svc
	f.login(t, alice, "alice", "secret1")
	a1, err := alice.CreateTask(ctx, "alice task", "", nil, domain.PriorityLow)
	require.NoError(t, err)

	bob := f.session()
	f.login(t, bob, "bob", "secret2")
	assert.Empty(t, bob.AllTasks(), "bob never sees alice's tasks")

	b1, err := bob.CreateTask(ctx, "bob task", "", nil, domain.PriorityLow)
	require.NoError(t, err)
	assert.NotEqual(t, a1.ID, b1.ID, "ids are unique across users")

	b1.Title = "bob task edited"
	require.NoError(t, bob.UpdateTask(ctx, *b1))

	_, err = bob.GetTask(a1.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, bob.DeleteTask(ctx, a1.ID), domain.ErrTaskNotFound)

	require.NoError(t, alice.LoadUserTasks(ctx))
	assert.Equal(t, []string{"alice task"}, titles(alice.AllTasks()))

	all, err := f.tasks.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice task", "bob task edited"}, titles(all))
}

func TestTaskService_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	first, err := f.svc.CreateTask(ctx, "one", "", nil, domain.PriorityLow)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteTask(ctx, first.ID))

	second, err := f.svc.CreateTask(ctx, "two", "", nil, domain.PriorityLow)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestTaskService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	_, err := f.svc.CreateTask(ctx, "   ", "", nil, domain.PriorityLow)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateTask(ctx, "x", "", nil, domain.Priority("CRITICAL"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Empty(t, f.svc.AllTasks())
}

func TestTaskService_UpdateKeepsOwnerAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	created, err := f.svc.CreateTask(ctx, "one", "", nil, domain.PriorityLow)
	require.NoError(t, err)

	edit := *created
	edit.Owner = "mallory"
	edit.CreatedAt = time.Time{}
	edit.Title = "uno"
	edit.DueDate = dueAt(9)
	require.NoError(t, f.svc.UpdateTask(ctx, edit))

	got, err := f.svc.GetTask(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "uno", got.Title)

	edit.Title = ""
	assert.ErrorIs(t, f.svc.UpdateTask(ctx, edit), domain.ErrValidation)
	edit.Title = "x"
	edit.Status = domain.TaskStatus("DONE")
	assert.ErrorIs(t, f.svc.UpdateTask(ctx, edit), domain.ErrValidation)
	edit.ID = 999
	edit.Status = domain.TaskStatusComplete
	assert.ErrorIs(t, f.svc.UpdateTask(ctx, edit), domain.ErrTaskNotFound)
}

func TestTaskService_FiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	mustCreate := func(title string, due *time.Time, p domain.Priority) *domain.Task {
		task, err := f.svc.CreateTask(ctx, title, "", due, p)
		require.NoError(t, err)
		return task
	}
	mustCreate("no due low", nil, domain.PriorityLow)
	late := mustCreate("late medium", dueAt(20), domain.PriorityMedium)
	mustCreate("early urgent", dueAt(2), domain.PriorityUrgent)
	mustCreate("no due high", nil, domain.PriorityHigh)
	mustCreate("mid medium", dueAt(10), domain.PriorityMedium)

	late.Status = domain.TaskStatusComplete
	require.NoError(t, f.svc.UpdateTask(ctx, *late))

	assert.Equal(t,
		[]string{"early urgent", "mid medium", "late medium", "no due low", "no due high"},
		titles(f.svc.SortByDueDate()))
	assert.Equal(t,
		[]string{"early urgent", "no due high", "late medium", "mid medium", "no due low"},
		titles(f.svc.SortByPriority()))
	assert.Equal(t, []string{"late medium"}, titles(f.svc.FilterByStatus(domain.TaskStatusComplete)))
	assert.Len(t, f.svc.FilterByStatus(domain.TaskStatusIncomplete), 4)
	assert.Equal(t, []string{"late medium", "mid medium"}, titles(f.svc.FilterByPriority(domain.PriorityMedium)))

	// views are copies
	view := f.svc.AllTasks()
	view[0].Title = "changed"
	assert.Equal(t, "no due low", f.svc.AllTasks()[0].Title)
}

func TestTaskService_ExportImportMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	_, err := f.svc.CreateTask(ctx, "Buy milk", "2%", dueAt(1), domain.PriorityHigh)
	require.NoError(t, err)

	exportPath := filepath.Join(f.dir, "export.csv")
	all := csvfile.ExportOptions{IncludeDescription: true, IncludeDueDate: true, IncludePriority: true}
	require.NoError(t, f.svc.ExportTasks(ctx, exportPath, all))

	added, err := f.svc.ImportTasks(ctx, exportPath)
	require.NoError(t, err)
	assert.Empty(t, added, "re-importing an export adds nothing")

	inPath := filepath.Join(f.dir, "in.csv")
	content := "Title,Description,Due Date,Priority\n" +
		"Buy milk,2%,2025-03-01T12:00:00Z,HIGH\n" +
		"Water plants,,,LOW\n"
	require.NoError(t, os.WriteFile(inPath, []byte(content), 0o644))

	added, err = f.svc.ImportTasks(ctx, inPath)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "Water plants", added[0].Title)
	assert.Equal(t, "alice", added[0].Owner)

	stored, err := f.tasks.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk", "Water plants"}, titles(stored))

	_, err = f.svc.ImportTasks(ctx, filepath.Join(f.dir, "missing.csv"))
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestTaskService_ImportReservesIDsOnlyForAddedTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	first, err := f.svc.CreateTask(ctx, "Buy milk", "", nil, domain.PriorityMedium)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)

	inPath := filepath.Join(f.dir, "in.csv")
	content := "Title,Priority\n" +
		"Buy milk,MEDIUM\n" +
		"Water plants,LOW\n" +
		"Water plants,LOW\n" +
		"Call mum,HIGH\n"
	require.NoError(t, os.WriteFile(inPath, []byte(content), 0o644))

	added, err := f.svc.ImportTasks(ctx, inPath)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, int64(2), added[0].ID)
	assert.Equal(t, int64(3), added[1].ID)

	next, err := f.svc.CreateTask(ctx, "Read book", "", nil, domain.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.ID)

	added, err = f.svc.ImportTasks(ctx, inPath)
	require.NoError(t, err)
	assert.Empty(t, added)

	last, err := f.svc.CreateTask(ctx, "Sleep", "", nil, domain.PriorityLow)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last.ID, "an import that adds nothing reserves no ids")
}

type failingStore struct {
	repository.TaskRepository
	err error
}

func (s *failingStore) ReplaceForOwner(ctx context.Context, owner string, tasks []domain.Task) error {
	if s.err != nil {
		return s.err
	}
	return s.TaskRepository.ReplaceForOwner(ctx, owner, tasks)
}

func TestTaskService_RollsBackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "secret1")

	store := &failingStore{TaskRepository: f.tasks}
	logger, _ := test.NewNullLogger()
	svc := NewTaskService(f.users, store, logger)
	f.login(t, svc, "alice", "secret1")

	created, err := svc.CreateTask(ctx, "keep me", "", nil, domain.PriorityLow)
	require.NoError(t, err)

	store.err = errors.New("disk full")

	edit := *created
	edit.Title = "lost edit"
	assert.Error(t, svc.UpdateTask(ctx, edit))
	got, err := svc.GetTask(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.Title)

	assert.Error(t, svc.DeleteTask(ctx, created.ID))
	assert.Len(t, svc.AllTasks(), 1)
}

func TestTaskService_AliceScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.register(t, "alice", "secret1")
	f.login(t, f.svc, "alice", "secret1")

	task, err := f.svc.CreateTask(ctx, "Buy milk", "", nil, domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, domain.TaskStatusIncomplete, task.Status)

	assert.Empty(t, f.svc.FilterByStatus(domain.TaskStatusComplete))
	assert.Equal(t, []string{"Buy milk"}, titles(f.svc.SortByDueDate()))

	require.NoError(t, f.svc.DeleteTask(ctx, task.ID))
	require.NoError(t, f.svc.LoadUserTasks(ctx))
	assert.Empty(t, f.svc.AllTasks())
}
