// Package config loads tomato settings from config.yaml, environment
// variables prefixed with TOMATO_, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/fakeyudi/tomato/internal/store"
	"github.com/fakeyudi/tomato/internal/timer"
)

const (
	NotifierDesktop = "desktop"
	NotifierLog     = "log"
	NotifierNone    = "none"
)

// MessagesFile is the pool file name looked up in the data directory.
const MessagesFile = "notification-messages.md"

// Config holds all configurable tomato settings.
type Config struct {
	SocketPath       string        `mapstructure:"socket_path" yaml:"socket_path"`
	DataDir          string        `mapstructure:"data_dir" yaml:"data_dir"`
	StateBackend     string        `mapstructure:"state_backend" yaml:"state_backend"` // "file" | "sqlite" | "memory"
	MessagesPath     string        `mapstructure:"messages_path" yaml:"messages_path"`
	CompletionPolicy string        `mapstructure:"completion_policy" yaml:"completion_policy"`
	TickInterval     time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	Notifier         string        `mapstructure:"notifier" yaml:"notifier"` // "desktop" | "log" | "none"
	WorkSeconds      int           `mapstructure:"work_seconds" yaml:"work_seconds"`
	BreakSeconds     int           `mapstructure:"break_seconds" yaml:"break_seconds"`
	AlertTitle       string        `mapstructure:"alert_title" yaml:"alert_title"`
}

// Defaults returns the configuration used when no file or override exists.
// Paths follow the XDG base directory variables in effect at call time.
func Defaults() Config {
	dataDir := DefaultDataDir()
	return Config{
		SocketPath:       DefaultSocketPath(),
		DataDir:          dataDir,
		StateBackend:     store.BackendFile,
		MessagesPath:     filepath.Join(dataDir, MessagesFile),
		CompletionPolicy: string(timer.PolicyAdvance),
		TickInterval:     time.Second,
		Notifier:         NotifierDesktop,
		WorkSeconds:      timer.DefaultWorkSeconds,
		BreakSeconds:     timer.DefaultBreakSeconds,
		AlertTitle:       "Pomodoro Timer",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/tomato/config.yaml, falling back to
// ~/.config/tomato/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "tomato", "config.yaml")
}

// DefaultDataDir returns $XDG_DATA_HOME/tomato, falling back to
// ~/.local/share/tomato.
func DefaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "tomato")
}

// DefaultSocketPath places the socket under $XDG_RUNTIME_DIR, or a per-user
// directory in the system temp dir when that is unset.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "tomato", "tomatod.sock")
	}
	return filepath.Join(os.TempDir(), "tomato-"+strconv.Itoa(os.Getuid()), "tomatod.sock")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, fallback)
}

// Load reads the YAML file at path (DefaultPath when empty) and applies
// TOMATO_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TOMATO")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("socket_path", d.SocketPath)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("state_backend", d.StateBackend)
	v.SetDefault("messages_path", "")
	v.SetDefault("completion_policy", d.CompletionPolicy)
	v.SetDefault("tick_interval", d.TickInterval.String())
	v.SetDefault("notifier", d.Notifier)
	v.SetDefault("work_seconds", d.WorkSeconds)
	v.SetDefault("break_seconds", d.BreakSeconds)
	v.SetDefault("alert_title", d.AlertTitle)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return Config{}, &ParseError{Path: path, Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &ParseError{Path: path, Err: err}
	}
	// The pool lives next to the state unless configured elsewhere.
	if cfg.MessagesPath == "" {
		cfg.MessagesPath = filepath.Join(cfg.DataDir, MessagesFile)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first setting the daemon cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SocketPath == "":
		return errors.New("socket_path must not be empty")
	case c.DataDir == "" && c.StateBackend != store.BackendMemory:
		return errors.New("data_dir must not be empty")
	case c.WorkSeconds <= 0:
		return fmt.Errorf("work_seconds must be positive, got %d", c.WorkSeconds)
	case c.BreakSeconds <= 0:
		return fmt.Errorf("break_seconds must be positive, got %d", c.BreakSeconds)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	switch c.StateBackend {
	case store.BackendFile, store.BackendSQLite, store.BackendMemory:
	default:
		return fmt.Errorf("unknown state_backend %q", c.StateBackend)
	}
	switch c.Notifier {
	case NotifierDesktop, NotifierLog, NotifierNone:
	default:
		return fmt.Errorf("unknown notifier %q", c.Notifier)
	}
	if _, err := timer.ParsePolicy(c.CompletionPolicy); err != nil {
		return err
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("socket_path", cfg.SocketPath)
	v.Set("data_dir", cfg.DataDir)
	v.Set("state_backend", cfg.StateBackend)
	v.Set("messages_path", cfg.MessagesPath)
	v.Set("completion_policy", cfg.CompletionPolicy)
	v.Set("tick_interval", cfg.TickInterval.String())
	v.Set("notifier", cfg.Notifier)
	v.Set("work_seconds", cfg.WorkSeconds)
	v.Set("break_seconds", cfg.BreakSeconds)
	v.Set("alert_title", cfg.AlertTitle)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
