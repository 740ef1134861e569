package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/claude/runweek/internal/gesture"
	"github.com/claude/runweek/internal/swap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// LogConfig selects the slog level (debug, info, warn, error) and handler
// (text, json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig tunes drag detection and swap synchronization. Zero values
// fall back to the package defaults.
type EngineConfig struct {
	ActivationDelay   time.Duration `yaml:"activation_delay"`
	MovementTolerance float64       `yaml:"movement_tolerance"`
	SyncTimeout       time.Duration `yaml:"sync_timeout"`
	SwapPolicy        string        `yaml:"swap_policy"`
}

// ClientConfig is read by the command-line client.
type ClientConfig struct {
	ServerURL  string       `yaml:"server_url"`
	APIKey     string       `yaml:"api_key"`
	JournalDir string       `yaml:"journal_dir"`
	Log        LogConfig    `yaml:"log"`
	Engine     EngineConfig `yaml:"engine"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Logger builds a logger writing to w.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.level()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l LogConfig) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (l LogConfig) validate() error {
	if l.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
			return fmt.Errorf("log.level %q: want debug, info, warn or error", l.Level)
		}
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("log.format %q: want text or json", l.Format)
	}
}

// Gesture returns the drag thresholds.
func (e EngineConfig) Gesture() gesture.Config {
	return gesture.Config{ActivationDelay: e.ActivationDelay, Tolerance: e.MovementTolerance}
}

// Policy returns the configured swap policy. Call after validation.
func (e EngineConfig) Policy() swap.Policy {
	p, err := swap.ParsePolicy(e.SwapPolicy)
	if err != nil {
		return swap.SameKindOnly
	}
	return p
}

func (e EngineConfig) validate() error {
	if e.ActivationDelay < 0 {
		return fmt.Errorf("engine.activation_delay must not be negative")
	}
	if e.MovementTolerance < 0 {
		return fmt.Errorf("engine.movement_tolerance must not be negative")
	}
	if e.SyncTimeout < 0 {
		return fmt.Errorf("engine.sync_timeout must not be negative")
	}
	if _, err := swap.ParsePolicy(e.SwapPolicy); err != nil {
		return fmt.Errorf("engine.swap_policy: %w", err)
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix RUNWEEK_ and underscore-separated paths:
//
//	RUNWEEK_SERVER_HOST, RUNWEEK_SERVER_PORT,
//	RUNWEEK_DB_HOST, RUNWEEK_DB_PORT, RUNWEEK_DB_NAME,
//	RUNWEEK_DB_USER, RUNWEEK_DB_PASSWORD, RUNWEEK_DB_SSLMODE,
//	RUNWEEK_AUTH_API_KEY,
//	RUNWEEK_TS_ENABLED, RUNWEEK_TS_HOSTNAME, RUNWEEK_TS_STATE_DIR,
//	RUNWEEK_LOG_LEVEL, RUNWEEK_LOG_FORMAT,
//	RUNWEEK_ENGINE_SYNC_TIMEOUT, RUNWEEK_ENGINE_SWAP_POLICY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadClient reads the client config. An empty path skips the file and uses
// environment variables only: RUNWEEK_SERVER_URL, RUNWEEK_API_KEY,
// RUNWEEK_JOURNAL_DIR plus the RUNWEEK_LOG_* and RUNWEEK_ENGINE_* overrides.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if v := os.Getenv("RUNWEEK_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("RUNWEEK_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("RUNWEEK_JOURNAL_DIR"); v != "" {
		cfg.JournalDir = v
	}
	applyLogOverrides(&cfg.Log)
	applyEngineOverrides(&cfg.Engine)

	if cfg.JournalDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locating journal dir: %w", err)
		}
		cfg.JournalDir = filepath.Join(dir, "runweek")
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RUNWEEK_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RUNWEEK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RUNWEEK_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RUNWEEK_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("RUNWEEK_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("RUNWEEK_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RUNWEEK_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RUNWEEK_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("RUNWEEK_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("RUNWEEK_TS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("RUNWEEK_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("RUNWEEK_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	applyLogOverrides(&cfg.Log)
	applyEngineOverrides(&cfg.Engine)
}

func applyLogOverrides(l *LogConfig) {
	if v := os.Getenv("RUNWEEK_LOG_LEVEL"); v != "" {
		l.Level = v
	}
	if v := os.Getenv("RUNWEEK_LOG_FORMAT"); v != "" {
		l.Format = v
	}
}

func applyEngineOverrides(e *EngineConfig) {
	if v := os.Getenv("RUNWEEK_ENGINE_SYNC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			e.SyncTimeout = d
		}
	}
	if v := os.Getenv("RUNWEEK_ENGINE_SWAP_POLICY"); v != "" {
		e.SwapPolicy = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if err := c.Log.validate(); err != nil {
		return err
	}
	return c.Engine.validate()
}

func (c *ClientConfig) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url %q must start with http:// or https://", c.ServerURL)
	}
	if err := c.Log.validate(); err != nil {
		return err
	}
	return c.Engine.validate()
}
