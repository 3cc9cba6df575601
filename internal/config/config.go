// Package config provides configuration management for Vigil.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// MaxExplorerBatch is the most addresses the balance and multiaddr endpoints accept per request.
const MaxExplorerBatch = 100

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Explorer ExplorerConfig `yaml:"explorer"`
	Scan     ScanConfig     `yaml:"scan"`
	History  HistoryConfig  `yaml:"history"`
	Watch    WatchConfig    `yaml:"watch"`
	Store    StoreConfig    `yaml:"store"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WalletConfig defines the watched key and how many addresses are derived per branch.
type WalletConfig struct {
	Xpub          string `yaml:"xpub"`
	ExternalCount int    `yaml:"external_count"`
	InternalCount int    `yaml:"internal_count"`
}

// ExplorerConfig defines the block explorer endpoints.
type ExplorerConfig struct {
	BalanceAPI     string        `yaml:"balance_api"`
	MempoolAPI     string        `yaml:"mempool_api"`
	Timeout        time.Duration `yaml:"timeout"`
	MempoolTimeout time.Duration `yaml:"mempool_timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
}

// ScanConfig defines gap-limited address scanning.
type ScanConfig struct {
	GapLimit   int           `yaml:"gap_limit"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// HistoryConfig defines paginated transaction history aggregation.
type HistoryConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	PageSize     int           `yaml:"page_size"`
	RequestDelay time.Duration `yaml:"request_delay"`
	MaxRetries   int           `yaml:"max_retries"`
}

// WatchConfig defines the polling reconciler.
type WatchConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Countdown time.Duration `yaml:"countdown"`
	Lookahead int           `yaml:"lookahead"`
	Timezone  string        `yaml:"timezone"`
}

// StoreConfig defines the local key/value store.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeKB int64  `yaml:"max_size_kb"`
	MaxRolls  int    `yaml:"max_rolls"`
}

// Load reads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, vigilerr.WithCause(vigilerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks the settings the tracker depends on.
func (c *Config) Validate() error {
	invalid := func(key string, value any, rule string) error {
		return vigilerr.WithDetails(vigilerr.ErrConfigInvalid, map[string]string{
			"key":   key,
			"value": fmt.Sprintf("%v", value),
			"rule":  rule,
		})
	}

	switch {
	case c.Scan.GapLimit <= 0:
		return invalid("scan.gap_limit", c.Scan.GapLimit, "must be positive")
	case c.Scan.BatchSize <= 0 || c.Scan.BatchSize > MaxExplorerBatch:
		return invalid("scan.batch_size", c.Scan.BatchSize, "must be between 1 and 100")
	case c.Scan.MaxRetries <= 0:
		return invalid("scan.max_retries", c.Scan.MaxRetries, "must be positive")
	case c.Scan.RetryDelay < 0:
		return invalid("scan.retry_delay", c.Scan.RetryDelay, "must not be negative")
	case c.History.BatchSize <= 0 || c.History.BatchSize > MaxExplorerBatch:
		return invalid("history.batch_size", c.History.BatchSize, "must be between 1 and 100")
	case c.History.PageSize <= 0:
		return invalid("history.page_size", c.History.PageSize, "must be positive")
	case c.History.MaxRetries <= 0:
		return invalid("history.max_retries", c.History.MaxRetries, "must be positive")
	case c.Watch.Interval <= 0:
		return invalid("watch.interval", c.Watch.Interval, "must be positive")
	case c.Wallet.ExternalCount < 0:
		return invalid("wallet.external_count", c.Wallet.ExternalCount, "must not be negative")
	case c.Wallet.InternalCount < 0:
		return invalid("wallet.internal_count", c.Wallet.InternalCount, "must not be negative")
	}

	switch c.Store.Backend {
	case StoreBadger, StoreFile, StoreMemory:
	default:
		return invalid("store.backend", c.Store.Backend, "must be badger, file or memory")
	}

	if _, err := c.Location(); err != nil {
		return invalid("watch.timezone", c.Watch.Timezone, "unknown time zone")
	}

	return nil
}

// Location returns the display time zone for timeline entries.
func (c *Config) Location() (*time.Location, error) {
	if c.Watch.Timezone == "" || strings.EqualFold(c.Watch.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Watch.Timezone)
}

// StorePath returns the store location, resolved against the home directory.
func (c *Config) StorePath() string {
	p := ExpandHome(c.Store.Path)
	if p == "" {
		return filepath.Join(ExpandHome(c.Home), "data")
	}
	if !filepath.IsAbs(p) {
		return filepath.Join(ExpandHome(c.Home), p)
	}
	return p
}

// GetHome returns the vigil home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default vigil home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vigil"
	}
	return filepath.Join(home, ".vigil")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
