package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents Travis configuration.
type Config struct {
	User    string        `json:"user,omitempty"`
	Storage StorageConfig `json:"storage"`
	Sync    SyncConfig    `json:"sync"`
	Commit  CommitConfig  `json:"commit"`
	Log     LogConfig     `json:"log"`
}

// StorageConfig selects and locates the metadata backend.
type StorageConfig struct {
	Driver      string `json:"driver"`                 // "bolt" or "postgres"
	Path        string `json:"path,omitempty"`         // bolt database file
	DatabaseURL string `json:"database_url,omitempty"` // postgres connection string
}

// SyncConfig tunes the pull engine.
type SyncConfig struct {
	CooldownSeconds int      `json:"cooldown_seconds"`
	BatchSize       int      `json:"batch_size"`
	BatchPauseMs    int      `json:"batch_pause_ms"`
	ReleaseDelayMs  int      `json:"release_delay_ms"`
	MaxDepth        int      `json:"max_depth"`
	FanOut          int      `json:"fan_out"`
	Denylist        []string `json:"denylist,omitempty"`
}

// CommitConfig tunes the push engine.
type CommitConfig struct {
	CooldownSeconds int `json:"cooldown_seconds"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // console or json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		User: "local",
		Storage: StorageConfig{
			Driver: "bolt",
		},
		Sync: SyncConfig{
			CooldownSeconds: 10,
			BatchSize:       10,
			BatchPauseMs:    200,
			ReleaseDelayMs:  1500,
			MaxDepth:        20,
			FanOut:          8,
		},
		Commit: CommitConfig{
			CooldownSeconds: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// globalConfigPath returns the path to the global config file.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "travis", "config.json"), nil
}

// localConfigPath returns the path to the per-directory config file.
func localConfigPath() string {
	return ".travis.json"
}

// DataPath returns the default location of the bolt database, used when
// storage.path is not set.
func DataPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "travis", "travis.db"), nil
}

// LoadConfig loads configuration from the global and local config files.
// Local config takes precedence over global, which takes precedence over
// the built-in defaults. A missing file is not an error.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	globalPath, err := globalConfigPath()
	if err == nil {
		if err := mergeFile(cfg, globalPath); err != nil {
			return nil, err
		}
	}

	if err := mergeFile(cfg, localConfigPath()); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the settings found at path onto cfg. Fields absent
// from the file keep their current values.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q (expected bolt or postgres)", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("storage.database_url is required for the postgres driver")
	}
	if c.Sync.BatchSize < 0 || c.Sync.CooldownSeconds < 0 || c.Commit.CooldownSeconds < 0 {
		return fmt.Errorf("sync and commit tunables must not be negative")
	}
	return nil
}

// SaveGlobalConfig saves configuration to the global config file.
func SaveGlobalConfig(cfg *Config) error {
	globalPath, err := globalConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(globalPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(globalPath, data, 0644)
}

// SyncCooldown returns the sync cooldown as a duration.
func (c *Config) SyncCooldown() time.Duration {
	return time.Duration(c.Sync.CooldownSeconds) * time.Second
}

// BatchPause returns the inter-batch pause as a duration.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.Sync.BatchPauseMs) * time.Millisecond
}

// ReleaseDelay returns the trailing lock-release delay as a duration.
func (c *Config) ReleaseDelay() time.Duration {
	return time.Duration(c.Sync.ReleaseDelayMs) * time.Millisecond
}

// CommitCooldown returns the commit cooldown as a duration.
func (c *Config) CommitCooldown() time.Duration {
	return time.Duration(c.Commit.CooldownSeconds) * time.Second
}
