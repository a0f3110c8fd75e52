// Package cli is the terminal front-end: a cobra command line for one-shot
// actions and an interactive shell bound to a logged in session.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taskdesk/internal/config"
	"taskdesk/internal/domain"
)

type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	driver     string

	newPrompter func(historyFile string) (Prompter, error)
}

// NewRootCommand returns the taskdesk command line.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{newPrompter: newReadlinePrompter})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskdesk",
		Short:         "A personal task manager backed by flat files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShellCommand(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./taskdesk.yaml)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the data files")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warning, error)")
	flags.StringVar(&opts.driver, "driver", "", "storage driver (csv, sqlite)")

	root.AddCommand(
		newShellCommand(opts),
		newRegisterCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.dataDir != "" {
		cfg.Data.Dir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.driver != "" {
		cfg.Storage.Driver = o.driver
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) openApp(cmd *cobra.Command) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return NewApp(cmd.Context(), cfg, NewLogger(cfg))
}

func newShellCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Log in and manage tasks interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShellCommand(cmd, opts)
		},
	}
}

func runShellCommand(cmd *cobra.Command, opts *rootOptions) error {
	app, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			app.Logger.Warnf("close app: %v", cerr)
		}
	}()

	prompter, err := opts.newPrompter(app.Config.Shell.HistoryFile)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer prompter.Close()

	return RunShell(cmd.Context(), app, prompter, cmd.OutOrStdout())
}

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			prompter, err := opts.newPrompter("")
			if err != nil {
				return fmt.Errorf("open terminal: %w", err)
			}
			defer prompter.Close()

			return register(cmd, app, prompter, username)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account name (prompted when empty)")
	return cmd
}

func register(cmd *cobra.Command, app *App, prompter Prompter, username string) error {
	var err error
	if strings.TrimSpace(username) == "" {
		if username, err = prompter.ReadLine("username: "); err != nil {
			return err
		}
	}
	username = strings.TrimSpace(username)

	password, err := prompter.ReadPassword("password: ")
	if err != nil {
		return err
	}
	confirm, err := prompter.ReadPassword("confirm password: ")
	if err != nil {
		return err
	}

	if err := app.Users.ValidateRegistration(username, password, confirm); err != nil {
		return err
	}
	if _, err := app.Tasks.Register(cmd.Context(), username, password); err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			return fmt.Errorf("username %q already exists", username)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %s, run `taskdesk shell` to log in\n", username)
	return nil
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
