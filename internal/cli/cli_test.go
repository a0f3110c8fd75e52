package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/internal/config"
	"taskdesk/internal/domain"
)

type scriptedPrompter struct {
	lines     []string
	passwords []string
	prompts   []string
	closed    bool
}

func (p *scriptedPrompter) ReadLine(prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *scriptedPrompter) ReadPassword(prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.passwords) == 0 {
		return "", io.EOF
	}
	secret := p.passwords[0]
	p.passwords = p.passwords[1:]
	return secret, nil
}

func (p *scriptedPrompter) Close() error {
	p.closed = true
	return nil
}

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("TASKDESK_AUTH_BCRYPT_COST", "4")

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Data.Dir = filepath.Join(t.TempDir(), "data")
	cfg.Storage.Driver = driver
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestApp(t *testing.T, driver string) *App {
	t.Helper()
	logger, _ := test.NewNullLogger()
	app, err := NewApp(context.Background(), testConfig(t, driver), logger)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"list", []string{"list"}},
		{"add  Buy   milk", []string{"add", "Buy", "milk"}},
		{`add "Buy milk" -d "2%, whole"`, []string{"add", "Buy milk", "-d", "2%, whole"}},
		{`edit 3 --description ""`, []string{"edit", "3", "--description", ""}},
		{"   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseArgs(tt.input))
		})
	}
}

func TestRunShell_Session(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, config.DriverCSV)
	_, err := app.Tasks.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	exportPath := filepath.Join(t.TempDir(), "out.csv")
	prompter := &scriptedPrompter{
		lines: []string{
			"alice",
			"alice",
			`add Buy milk --priority high --due 2025-03-01 -d "2%, whole"`,
			`add "Pay rent" -p urgent --due "2025-02-01 09:00"`,
			"",
			"list --sort priority",
			"done 1",
			"list --status complete",
			`edit 2 --title "Pay the rent" --clear-due`,
			"delete 2",
			"bogus",
			"theme light",
			"whoami",
			"export " + exportPath + " --all",
			"logout",
		},
		passwords: []string{"nope", "secret1"},
	}

	var out bytes.Buffer
	require.NoError(t, RunShell(ctx, app, prompter, &out))

	text := out.String()
	assert.Contains(t, text, "invalid username or password")
	assert.Contains(t, text, "welcome alice, you have 0 tasks")
	assert.Contains(t, text, "created task 1")
	assert.Contains(t, text, "created task 2")
	assert.Contains(t, text, "task 1 is now complete")
	assert.Contains(t, text, "updated task 2")
	assert.Contains(t, text, "deleted task 2")
	assert.Contains(t, text, "error: unknown command")
	assert.Contains(t, text, "theme: light")
	assert.Contains(t, text, "alice\n")
	assert.Contains(t, text, "exported 1 tasks")
	assert.True(t, strings.HasSuffix(text, "bye\n"))

	urgent := strings.Index(text, "URGENT")
	high := strings.Index(text, "HIGH")
	require.True(t, urgent >= 0 && high >= 0)
	assert.Less(t, urgent, high, "sorted by priority")

	assert.Equal(t, fmt.Sprintf(darkPrompt, "alice"), prompter.prompts[4])
	assert.Equal(t, fmt.Sprintf(lightPrompt, "alice"), prompter.prompts[len(prompter.prompts)-1])
	assert.Nil(t, app.Tasks.CurrentUser(), "shell logs out on exit")

	exported, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(exported), "Title,Description,Due Date,Priority\nBuy milk,\"2%, whole\","))
}

func TestRunShell_EndOfInputBeforeLogin(t *testing.T) {
	app := newTestApp(t, config.DriverCSV)
	var out bytes.Buffer
	require.NoError(t, RunShell(context.Background(), app, &scriptedPrompter{}, &out))
	assert.Empty(t, out.String())
}

func TestRunShell_SQLiteBackend(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, config.DriverSQLite)
	_, err := app.Tasks.Register(ctx, "bob", "secret2")
	require.NoError(t, err)

	prompter := &scriptedPrompter{
		lines:     []string{"bob", `add "Walk dog" -p low`, "reload", "list"},
		passwords: []string{"secret2"},
	}
	var out bytes.Buffer
	require.NoError(t, RunShell(ctx, app, prompter, &out))

	assert.Contains(t, out.String(), "created task 1")
	assert.Contains(t, out.String(), "loaded 1 tasks")
	assert.Contains(t, out.String(), "Walk dog")
}

func TestSessionCommand_Errors(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, config.DriverCSV)
	_, err := app.Tasks.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	ok, err := app.Tasks.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.True(t, ok)

	run := func(args ...string) error {
		cmd := newSessionCommand(app)
		cmd.SetArgs(args)
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		return cmd.ExecuteContext(ctx)
	}

	assert.ErrorIs(t, run("done", "42"), domain.ErrTaskNotFound)
	assert.Error(t, run("done", "abc"))
	assert.Error(t, run("add", "x", "--priority", "critical"))
	assert.ErrorIs(t, run("add", "x", "--due", "someday"), domain.ErrValidation)
	assert.Error(t, run("list", "--sort", "title"))
	assert.ErrorIs(t, run("theme", "solarized"), domain.ErrValidation)
	assert.ErrorIs(t, run("exit"), errEndSession)
	assert.NoError(t, run("list"))
}

func TestRegister(t *testing.T) {
	app := newTestApp(t, config.DriverCSV)
	cmd := newSessionCommand(app)
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)

	p := &scriptedPrompter{lines: []string{" alice "}, passwords: []string{"secret1", "secret1"}}
	require.NoError(t, register(cmd, app, p, ""))
	assert.Contains(t, out.String(), "registered alice")
	assert.Nil(t, app.Tasks.CurrentUser(), "registering does not log in")

	p = &scriptedPrompter{passwords: []string{"secret1", "secret1"}}
	err := register(cmd, app, p, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	p = &scriptedPrompter{passwords: []string{"secret1", "secret9"}}
	assert.ErrorIs(t, register(cmd, app, p, "bob"), domain.ErrValidation)

	p = &scriptedPrompter{passwords: []string{"abc", "abc"}}
	assert.ErrorIs(t, register(cmd, app, p, "bob"), domain.ErrValidation)

	ok, err := app.Tasks.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRootCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	dataDir := filepath.Join(t.TempDir(), "data")

	var prompter *scriptedPrompter
	opts := &rootOptions{newPrompter: func(string) (Prompter, error) {
		prompter = &scriptedPrompter{}
		return prompter, nil
	}}

	root := newRootCommand(opts)
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"shell", "register", "config"} {
		assert.True(t, names[want], want)
	}

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--data-dir", dataDir, "--driver", "sqlite"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "dir: "+dataDir)
	assert.Contains(t, out.String(), "driver: sqlite")

	root = newRootCommand(opts)
	root.SetArgs([]string{"shell", "--data-dir", dataDir})
	root.SetOut(io.Discard)
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.NotNil(t, prompter)
	assert.True(t, prompter.closed)

	root = newRootCommand(opts)
	root.SetArgs([]string{"config", "--log-level", "chatty"})
	root.SetOut(io.Discard)
	assert.Error(t, root.ExecuteContext(context.Background()))
}
