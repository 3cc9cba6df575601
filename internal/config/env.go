package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mrz1836/go-sanitize"
)

// Environment variable names.
const (
	EnvHome         = "VIGIL_HOME"
	EnvXpub         = "VIGIL_XPUB"
	EnvBalanceAPI   = "VIGIL_BALANCE_API"
	EnvMempoolAPI   = "VIGIL_MEMPOOL_API"
	EnvGapLimit     = "VIGIL_GAP_LIMIT"
	EnvPollInterval = "VIGIL_POLL_INTERVAL"
	EnvStoreBackend = "VIGIL_STORE_BACKEND"
	EnvOutputFormat = "VIGIL_OUTPUT_FORMAT"
	EnvVerbose      = "VIGIL_VERBOSE"
	EnvLogLevel     = "VIGIL_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
// Malformed numeric or duration values are ignored.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvXpub); v != "" {
		cfg.Wallet.Xpub = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvBalanceAPI); v != "" {
		cfg.Explorer.BalanceAPI = SanitizeURL(v)
	}

	if v := os.Getenv(EnvMempoolAPI); v != "" {
		cfg.Explorer.MempoolAPI = SanitizeURL(v)
	}

	if v := os.Getenv(EnvGapLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scan.GapLimit = n
		}
	}

	if v := os.Getenv(EnvPollInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Watch.Interval = d
		}
	}

	if v := os.Getenv(EnvStoreBackend); v != "" {
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// Trailing slashes are dropped so endpoint paths can be appended directly.
func SanitizeURL(url string) string {
	return strings.TrimRight(sanitize.URL(strings.TrimSpace(url)), "/")
}
