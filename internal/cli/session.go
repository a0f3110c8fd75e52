package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskdesk/internal/domain"
	"taskdesk/internal/preference"
	"taskdesk/internal/repository/csvfile"
)

// errEndSession is returned by the logout command to stop the shell loop.
var errEndSession = errors.New("session ended")

// newSessionCommand builds the command tree for one shell line. A fresh tree
// per line keeps flag values from leaking between commands.
func newSessionCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskdesk",
		Short:         "Manage your tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newListCommand(app),
		newAddCommand(app),
		newEditCommand(app),
		newStatusCommand(app, "done", "Mark a task complete", domain.TaskStatusComplete),
		newStatusCommand(app, "reopen", "Mark a task incomplete", domain.TaskStatusIncomplete),
		newDeleteCommand(app),
		newReloadCommand(app),
		newExportCommand(app),
		newImportCommand(app),
		newThemeCommand(app),
		newWhoAmICommand(app),
		newLogoutCommand(),
	)
	return root
}

func newListCommand(app *App) *cobra.Command {
	var status, priority, sortBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var tasks []domain.Task
			switch strings.ToLower(sortBy) {
			case "":
				tasks = app.Tasks.AllTasks()
			case "due":
				tasks = app.Tasks.SortByDueDate()
			case "priority":
				tasks = app.Tasks.SortByPriority()
			default:
				return fmt.Errorf("unknown sort key %q (want due or priority)", sortBy)
			}

			if status != "" {
				st, err := domain.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				tasks = intersect(tasks, app.Tasks.FilterByStatus(st))
			}
			if priority != "" {
				p, err := domain.ParsePriority(priority)
				if err != nil {
					return err
				}
				tasks = intersect(tasks, app.Tasks.FilterByPriority(p))
			}

			return printTasks(cmd.OutOrStdout(), tasks)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only tasks with this status (complete, incomplete)")
	cmd.Flags().StringVar(&priority, "priority", "", "only tasks with this priority")
	cmd.Flags().StringVar(&sortBy, "sort", "", "order by due or priority")
	return cmd
}

func newAddCommand(app *App) *cobra.Command {
	var description, due, priority string

	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePriority(priority)
			if err != nil {
				return err
			}
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}

			task, err := app.Tasks.CreateTask(cmd.Context(), strings.Join(args, " "), description, dueDate, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created task %d\n", task.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&due, "due", "", "due date, e.g. 2025-03-01 or \"2025-03-01 17:00\"")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(domain.PriorityMedium), "LOW, MEDIUM, HIGH or URGENT")
	return cmd
}

func newEditCommand(app *App) *cobra.Command {
	var title, description, due, priority, status string
	var clearDue bool

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := lookupTask(app, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("title") {
				task.Title = title
			}
			if flags.Changed("description") {
				task.Description = description
			}
			if flags.Changed("priority") {
				if task.Priority, err = domain.ParsePriority(priority); err != nil {
					return err
				}
			}
			if flags.Changed("status") {
				if task.Status, err = domain.ParseTaskStatus(status); err != nil {
					return err
				}
			}
			switch {
			case clearDue:
				task.DueDate = nil
			case flags.Changed("due"):
				if task.DueDate, err = parseDue(due); err != nil {
					return err
				}
			}

			if err := app.Tasks.UpdateTask(cmd.Context(), *task); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated task %d\n", task.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func newStatusCommand(app *App, use, short string, status domain.TaskStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := lookupTask(app, args[0])
			if err != nil {
				return err
			}
			task.Status = status
			if err := app.Tasks.UpdateTask(cmd.Context(), *task); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %d is now %s\n", task.ID, strings.ToLower(string(status)))
			return nil
		},
	}
}

func newDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := app.Tasks.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted task %d\n", id)
			return nil
		},
	}
}

func newReloadCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-read your tasks from storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Tasks.LoadUserTasks(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d tasks\n", len(app.Tasks.AllTasks()))
			return nil
		},
	}
}

func newExportCommand(app *App) *cobra.Command {
	var opts csvfile.ExportOptions
	var all bool

	cmd := &cobra.Command{
		Use:   "export PATH",
		Short: "Write your tasks to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				opts = csvfile.ExportOptions{IncludeDescription: true, IncludeDueDate: true, IncludePriority: true}
			}
			if err := app.Tasks.ExportTasks(cmd.Context(), args[0], opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d tasks to %s\n", len(app.Tasks.AllTasks()), args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.IncludeDescription, "description", false, "include the description column")
	cmd.Flags().BoolVar(&opts.IncludeDueDate, "due", false, "include the due date column")
	cmd.Flags().BoolVar(&opts.IncludePriority, "priority", false, "include the priority column")
	cmd.Flags().BoolVar(&all, "all", false, "include every optional column")
	return cmd
}

func newImportCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import PATH",
		Short: "Merge tasks from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := app.Tasks.ImportTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tasks\n", len(added))
			return nil
		},
	}
}

func newThemeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "theme [light|dark|toggle]",
		Short: "Show or change the terminal theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintf(out, "theme: %s\n", preference.ThemeName(app.Preferences.Theme()))
				return nil
			}

			var theme int
			var err error
			if strings.EqualFold(args[0], "toggle") {
				theme, err = app.Preferences.Toggle()
			} else if theme, err = preference.ParseTheme(args[0]); err == nil {
				err = app.Preferences.SetTheme(theme)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "theme: %s\n", preference.ThemeName(theme))
			return nil
		},
	}
}

func newWhoAmICommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user := app.Tasks.CurrentUser()
			if user == nil {
				return domain.ErrNotAuthenticated
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.Username)
			return nil
		},
	}
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Aliases: []string{"exit", "quit"},
		Short:   "End the session",
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return errEndSession
		},
	}
}

func lookupTask(app *App, raw string) (*domain.Task, error) {
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}
	return app.Tasks.GetTask(id)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func parseDue(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := csvfile.ParseTimestamp(raw)
	if err != nil {
		return nil, domain.NewValidationError("due", err.Error())
	}
	return &t, nil
}

// intersect keeps the tasks of ordered whose id also appears in subset.
func intersect(ordered, subset []domain.Task) []domain.Task {
	keep := make(map[int64]struct{}, len(subset))
	for _, t := range subset {
		keep[t.ID] = struct{}{}
	}
	out := ordered[:0]
	for _, t := range ordered {
		if _, ok := keep[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}
