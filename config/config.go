// Package config loads service configuration from TOML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/Prider/buy-rubber-sub000/purchase"
)

// Config holds all configuration for the purchase service.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Query    QueryConfig    `toml:"query"`
	Backup   BackupConfig   `toml:"backup"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string `toml:"allowed_origins"`
	// EnableScenarios mounts the demo data endpoints.
	EnableScenarios bool `toml:"enable_scenarios"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// QueryConfig holds the transaction engine's safety bounds.
type QueryConfig struct {
	DefaultWindowDays int    `toml:"default_window_days"`
	DefaultLimit      int    `toml:"default_limit"`
	MaxLimit          int    `toml:"max_limit"`
	MaxGroups         int    `toml:"max_groups"`
	CallTimeout       string `toml:"call_timeout"`
}

// GetCallTimeout parses and returns the per-call timeout.
func (c QueryConfig) GetCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// BackupConfig holds the backup scheduler configuration.
type BackupConfig struct {
	Enabled   bool   `toml:"enabled"`
	Dir       string `toml:"dir"`
	Interval  string `toml:"interval"`
	Retention int    `toml:"retention"`
}

// GetInterval parses and returns the backup interval.
func (c BackupConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with the production defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Database: DatabaseConfig{Path: "rubber.db"},
		Query: QueryConfig{
			DefaultWindowDays: 90,
			DefaultLimit:      20,
			MaxLimit:          200,
			MaxGroups:         10000,
			CallTimeout:       "30s",
		},
		Backup: BackupConfig{
			Enabled:   false,
			Dir:       "backups",
			Interval:  "24h",
			Retention: 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads defaults, then path if it exists, then environment overrides,
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if port := os.Getenv("RUBBER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid RUBBER_PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if path := os.Getenv("RUBBER_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if level := os.Getenv("RUBBER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	q := c.Query
	if q.DefaultWindowDays < 0 {
		errs = append(errs, errors.New("query.default_window_days must not be negative"))
	}
	if q.MaxLimit < 1 {
		errs = append(errs, errors.New("query.max_limit must be at least 1"))
	}
	if q.DefaultLimit < 1 || q.DefaultLimit > q.MaxLimit {
		errs = append(errs, fmt.Errorf("query.default_limit must be between 1 and max_limit (%d)", q.MaxLimit))
	}
	if q.MaxGroups < 0 {
		errs = append(errs, errors.New("query.max_groups must not be negative"))
	}
	if d, err := time.ParseDuration(q.CallTimeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("query.call_timeout %q must be a positive duration", q.CallTimeout))
	}

	if c.Backup.Enabled {
		if strings.TrimSpace(c.Backup.Dir) == "" {
			errs = append(errs, errors.New("backup.dir is required when backups are enabled"))
		}
		if d, err := time.ParseDuration(c.Backup.Interval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("backup.interval %q must be a positive duration", c.Backup.Interval))
		}
		if c.Backup.Retention < 1 {
			errs = append(errs, errors.New("backup.retention must be at least 1"))
		}
	}

	return errors.Join(errs...)
}

// Limits converts the query section to engine limits.
func (c *Config) Limits() purchase.Limits {
	return purchase.Limits{
		DefaultWindow: time.Duration(c.Query.DefaultWindowDays) * 24 * time.Hour,
		DefaultLimit:  c.Query.DefaultLimit,
		MaxLimit:      c.Query.MaxLimit,
		MaxGroups:     c.Query.MaxGroups,
		CallTimeout:   c.Query.GetCallTimeout(),
	}
}
