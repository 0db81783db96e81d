// ABOUTME: Configuration loading and parsing for the inventory tools
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRemote = "remote"
)

// Config represents the complete inventory configuration
type Config struct {
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Remote   RemoteConfig   `yaml:"remote" toml:"remote"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// StorageConfig selects the repository implementation
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // sqlite, memory or remote
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Driver      string        `yaml:"driver" toml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
	Path        string        `yaml:"path" toml:"path"`
	BusyTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	BusyTimeoutRaw string `yaml:"busy_timeout" toml:"busy_timeout"`
}

// RemoteConfig holds the address of an inventory-server for the remote backend
type RemoteConfig struct {
	Addr        string        `yaml:"addr" toml:"addr"`
	DialTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	DialTimeoutRaw string `yaml:"dial_timeout" toml:"dial_timeout"`
}

// ServerConfig holds inventory-server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text or json
}

// Default returns the configuration used when no file is given. The database
// lives under $XDG_DATA_HOME/inventory.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: BackendSQLite},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			Path:           filepath.Join(dataHome(), "inventory", "inventory.db"),
			BusyTimeout:    5 * time.Second,
			BusyTimeoutRaw: "5s",
		},
		Remote: RemoteConfig{
			Addr:           "localhost:50051",
			DialTimeout:    10 * time.Second,
			DialTimeoutRaw: "10s",
		},
		Server:  ServerConfig{GRPCAddr: "localhost:50051"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}

// DefaultPath returns where to look for a config file when none is given:
// $INVENTORY_CONFIG, else $XDG_CONFIG_HOME/inventory/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("INVENTORY_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "inventory", "config.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML. Fields the
// file leaves out keep their Default values.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path. An empty path means DefaultPath, and a missing
// default file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	path = DefaultPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite backend")
		}
		if c.Database.Driver != "sqlite" && c.Database.Driver != "sqlite3" {
			return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
		}
	case BackendMemory:
	case BackendRemote:
		if c.Remote.Addr == "" {
			return fmt.Errorf("remote.addr is required for the remote backend")
		}
	default:
		return fmt.Errorf("storage.backend must be sqlite, memory or remote, got %q", c.Storage.Backend)
	}

	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}
	if c.Remote.DialTimeout < 0 {
		return fmt.Errorf("remote.dial_timeout must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Database.BusyTimeoutRaw != "" {
		cfg.Database.BusyTimeout, err = time.ParseDuration(cfg.Database.BusyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing busy_timeout %q: %w", cfg.Database.BusyTimeoutRaw, err)
		}
	}

	if cfg.Remote.DialTimeoutRaw != "" {
		cfg.Remote.DialTimeout, err = time.ParseDuration(cfg.Remote.DialTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing dial_timeout %q: %w", cfg.Remote.DialTimeoutRaw, err)
		}
	}

	return nil
}
