package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Data struct {
		Dir          string `mapstructure:"dir" yaml:"dir"`
		UsersFile    string `mapstructure:"users_file" yaml:"users_file"`
		TasksFile    string `mapstructure:"tasks_file" yaml:"tasks_file"`
		SequenceFile string `mapstructure:"sequence_file" yaml:"sequence_file"`
		ThemeFile    string `mapstructure:"theme_file" yaml:"theme_file"`
	} `mapstructure:"data" yaml:"data"`
	Storage struct {
		Driver     string `mapstructure:"driver" yaml:"driver"`
		SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	} `mapstructure:"storage" yaml:"storage"`
	Auth struct {
		MinPasswordLength int `mapstructure:"min_password_length" yaml:"min_password_length"`
		BcryptCost        int `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
	} `mapstructure:"auth" yaml:"auth"`
	Log struct {
		Level string `mapstructure:"level" yaml:"level"`
	} `mapstructure:"log" yaml:"log"`
	Shell struct {
		HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
	} `mapstructure:"shell" yaml:"shell"`
}

// Load reads configuration from environment variables and optional config files.
// An empty path looks for taskdesk.{yaml,json,toml} in the working directory.
func Load(path string) (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("TASKDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data.dir", "data")
	v.SetDefault("data.users_file", "users.csv")
	v.SetDefault("data.tasks_file", "tasks.csv")
	v.SetDefault("data.sequence_file", "tasks.seq")
	v.SetDefault("data.theme_file", "theme.pref")
	v.SetDefault("storage.driver", DriverCSV)
	v.SetDefault("storage.sqlite_path", "taskdesk.db")
	v.SetDefault("auth.min_password_length", 6)
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("log.level", "warning")
	v.SetDefault("shell.history_file", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("taskdesk")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return errors.New("data dir is required")
	}
	switch c.Storage.Driver {
	case DriverCSV, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("auth min password length must be positive, got %d", c.Auth.MinPasswordLength)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth bcrypt cost must be within %d..%d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func (c Config) UsersPath() string    { return c.dataPath(c.Data.UsersFile) }
func (c Config) TasksPath() string    { return c.dataPath(c.Data.TasksFile) }
func (c Config) SequencePath() string { return c.dataPath(c.Data.SequenceFile) }
func (c Config) ThemePath() string    { return c.dataPath(c.Data.ThemeFile) }
func (c Config) SQLitePath() string   { return c.dataPath(c.Storage.SQLitePath) }

func (c Config) dataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Data.Dir, name)
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
