// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Config represents the application configuration
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AccountConfig identifies the signed-in account. The remote auth token
// lives in the keyring, never here.
type AccountConfig struct {
	Email string `yaml:"email"`
}

// DatabaseConfig holds local store settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig holds remote synchronization settings
type SyncConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"` // Firebase Realtime Database origin
	// UseKeyring controls whether the auth token is read from the system
	// keyring (default) or the TODOSYNC_FIREBASE_TOKEN environment variable.
	UseKeyring *bool  `yaml:"use_keyring"`
	Timeout    string `yaml:"timeout"` // per-request timeout, e.g. "30s"
}

// WatcherConfig holds settings for the watch command's file watcher
type WatcherConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DebounceMs int    `yaml:"debounce_ms"` // debounce between change bursts
	QuietMs    int    `yaml:"quiet_ms"`    // quiet period before firing a sync
	LogPath    string `yaml:"log_path"`    // rotating background log file
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	BackgroundEnabled *bool `yaml:"background_enabled"` // Controls background log file creation (default: true)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(GetDataDir(), "tasks.db"),
		},
		Sync: SyncConfig{
			Enabled: false,
			Timeout: "30s",
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 500,
			QuietMs:    2000,
		},
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one with defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	// Apply defaults for unset fields
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(GetDataDir(), "tasks.db")
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	if cfg.Sync.Timeout == "" {
		cfg.Sync.Timeout = "30s"
	}
	if cfg.Watcher.DebounceMs <= 0 {
		cfg.Watcher.DebounceMs = 500
	}
	if cfg.Watcher.QuietMs <= 0 {
		cfg.Watcher.QuietMs = 2000
	}
	if cfg.Watcher.LogPath != "" {
		cfg.Watcher.LogPath = ExpandPath(cfg.Watcher.LogPath)
	}

	return cfg, nil
}

// Save writes the current configuration values to path as YAML. An empty
// path uses the default config location.
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(GetConfigDir(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// save writes the documented sample config, used when creating the default.
func (c *Config) save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use the embedded sample config which includes all documentation and comments
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Sync.Enabled {
		if c.Sync.Host == "" {
			return fmt.Errorf("sync.host is required when sync is enabled")
		}
		if c.Account.Email == "" {
			return fmt.Errorf("account.email is required when sync is enabled")
		}
	}
	if c.Account.Email != "" && !strings.Contains(c.Account.Email, "@") {
		return fmt.Errorf("invalid account.email: %q", c.Account.Email)
	}

	if c.Sync.Timeout != "" {
		d, err := time.ParseDuration(c.Sync.Timeout)
		if err != nil {
			return fmt.Errorf("invalid duration for sync.timeout: %q", c.Sync.Timeout)
		}
		if d < time.Second {
			return fmt.Errorf("sync.timeout must be at least 1s, got %q", c.Sync.Timeout)
		}
	}

	return nil
}

// GetDatabasePath returns the path to the SQLite database
func (c *Config) GetDatabasePath() string {
	return c.Database.Path
}

// IsSyncEnabled returns true if synchronization is enabled
func (c *Config) IsSyncEnabled() bool {
	return c.Sync.Enabled
}

// GetAccountEmail returns the configured account email, or "" when signed out.
func (c *Config) GetAccountEmail() string {
	return c.Account.Email
}

// UseKeyring returns whether the auth token should come from the system
// keyring. Defaults to true.
func (c *Config) UseKeyring() bool {
	if c.Sync.UseKeyring == nil {
		return true
	}
	return *c.Sync.UseKeyring
}

// GetSyncTimeout returns the per-request remote timeout.
// Returns 30 seconds if not configured or if parsing fails.
func (c *Config) GetSyncTimeout() time.Duration {
	d, err := time.ParseDuration(c.Sync.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetWatcherDebounce returns the watcher debounce duration.
func (c *Config) GetWatcherDebounce() time.Duration {
	if c.Watcher.DebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Watcher.DebounceMs) * time.Millisecond
}

// GetWatcherQuietPeriod returns the quiet period the watcher waits after the
// last change before firing a sync.
func (c *Config) GetWatcherQuietPeriod() time.Duration {
	if c.Watcher.QuietMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Watcher.QuietMs) * time.Millisecond
}

// GetWatcherLogPath returns the rotating log path for the watch command.
// Defaults to <data dir>/watch.log.
func (c *Config) GetWatcherLogPath() string {
	if c.Watcher.LogPath != "" {
		return c.Watcher.LogPath
	}
	return filepath.Join(GetDataDir(), "watch.log")
}

// IsBackgroundLoggingEnabled returns true if background logging is enabled.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "todosync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "todosync")
	}
	return filepath.Join(home, fallbackPath, "todosync")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
