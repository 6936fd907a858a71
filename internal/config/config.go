package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	User          UserConfig     `toml:"user"`
	Database      DatabaseConfig `toml:"database"`
	Sync          SyncConfig     `toml:"sync"`
	Timer         TimerConfig    `toml:"timer"`
	Notifications NotifyConfig   `toml:"notifications"`
	Log           LogConfig      `toml:"log"`
	Metrics       MetricsConfig  `toml:"metrics"`
}

// UserConfig identifies who is tracking time and for which team.
type UserConfig struct {
	ID     string `toml:"id"`
	TeamID string `toml:"team_id"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // empty means ~/.config/teamclock/teamclock.db
}

type SyncConfig struct {
	NATSURL               string `toml:"nats_url"` // empty disables live sync
	Bucket                string `toml:"bucket"`
	ResyncIntervalSeconds int    `toml:"resync_interval_seconds"`
}

type TimerConfig struct {
	TickSeconds int `toml:"tick_seconds"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

type MetricsConfig struct {
	Addr string `toml:"addr"` // e.g. "127.0.0.1:9464"; empty disables
}

func DefaultConfig() Config {
	return Config{
		Sync: SyncConfig{
			Bucket:                "TEAMCLOCK_ENTRIES",
			ResyncIntervalSeconds: 5,
		},
		Timer: TimerConfig{
			TickSeconds: 1,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "teamclock"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the defaults. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TEAMCLOCK_USER"); v != "" {
		cfg.User.ID = v
	}
	if v := os.Getenv("TEAMCLOCK_TEAM"); v != "" {
		cfg.User.TeamID = v
	}
	if v := os.Getenv("TEAMCLOCK_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TEAMCLOCK_NATS_URL"); v != "" {
		cfg.Sync.NATSURL = v
	}
	if v := os.Getenv("TEAMCLOCK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TEAMCLOCK_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Validate checks values that have no usable zero value.
func (c *Config) Validate() error {
	if c.Sync.ResyncIntervalSeconds <= 0 {
		return fmt.Errorf("sync.resync_interval_seconds must be positive, got %d", c.Sync.ResyncIntervalSeconds)
	}
	if c.Timer.TickSeconds <= 0 {
		return fmt.Errorf("timer.tick_seconds must be positive, got %d", c.Timer.TickSeconds)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) ResyncInterval() time.Duration {
	return time.Duration(c.Sync.ResyncIntervalSeconds) * time.Second
}

func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Timer.TickSeconds) * time.Second
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

// RequireUser fails unless both the user and team ids are set.
func (c *Config) RequireUser() error {
	if c.User.ID == "" || c.User.TeamID == "" {
		return errors.New("user.id and user.team_id must be set (config file or TEAMCLOCK_USER/TEAMCLOCK_TEAM)")
	}
	return nil
}

// Save writes cfg to path as TOML, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
