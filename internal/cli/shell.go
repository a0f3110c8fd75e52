package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"taskdesk/internal/preference"
)

// ANSI colours for the prompt, per theme.
const (
	lightPrompt = "\033[34m%s>\033[0m "
	darkPrompt  = "\033[36m%s>\033[0m "
)

// RunShell logs a user in and executes commands until logout or end of input.
func RunShell(ctx context.Context, app *App, prompter Prompter, out io.Writer) error {
	ok, err := login(ctx, app, prompter, out)
	if err != nil || !ok {
		return err
	}
	defer app.Tasks.Logout()

	user := app.Tasks.CurrentUser()
	fmt.Fprintf(out, "welcome %s, you have %d tasks. Type help for commands.\n", user.Username, len(app.Tasks.AllTasks()))

	for {
		line, err := prompter.ReadLine(promptFor(app, user.Username))
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if line == "" {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		args := ParseArgs(strings.TrimSpace(line))
		if len(args) == 0 {
			continue
		}

		cmd := newSessionCommand(app)
		cmd.SetArgs(args)
		cmd.SetOut(out)
		cmd.SetErr(out)
		if err := cmd.ExecuteContext(ctx); err != nil {
			if errors.Is(err, errEndSession) {
				fmt.Fprintln(out, "bye")
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// login prompts until credentials are accepted. It returns false when input
// ends before that happens.
func login(ctx context.Context, app *App, prompter Prompter, out io.Writer) (bool, error) {
	for {
		username, err := prompter.ReadLine("username: ")
		if err != nil {
			return false, endOfInput(err)
		}
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}

		password, err := prompter.ReadPassword("password: ")
		if err != nil {
			return false, endOfInput(err)
		}

		ok, err := app.Tasks.Login(ctx, username, password)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		fmt.Fprintln(out, "invalid username or password")
	}
}

func promptFor(app *App, username string) string {
	if app.Preferences.Theme() == preference.ThemeLight {
		return fmt.Sprintf(lightPrompt, username)
	}
	return fmt.Sprintf(darkPrompt, username)
}

func endOfInput(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
		return nil
	}
	return err
}
