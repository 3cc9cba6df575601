package config

import "time"

// Store backends.
const (
	StoreBadger = "badger"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// Explorer defaults.
const (
	DefaultBalanceAPI = "https://blockchain.info"
	DefaultMempoolAPI = "https://blockstream.info/api"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.vigil",
		Wallet: WalletConfig{
			ExternalCount: 100,
			InternalCount: 50,
		},
		Explorer: ExplorerConfig{
			BalanceAPI:     DefaultBalanceAPI,
			MempoolAPI:     DefaultMempoolAPI,
			Timeout:        30 * time.Second,
			MempoolTimeout: 5 * time.Second,
			RatePerSecond:  2,
			RateBurst:      4,
		},
		Scan: ScanConfig{
			GapLimit:   5,
			BatchSize:  MaxExplorerBatch,
			MaxRetries: 2,
			RetryDelay: time.Second,
		},
		History: HistoryConfig{
			BatchSize:    MaxExplorerBatch,
			PageSize:     100,
			RequestDelay: 600 * time.Millisecond,
			MaxRetries:   3,
		},
		Watch: WatchConfig{
			Interval:  30 * time.Second,
			Countdown: time.Second,
			Lookahead: 2,
			Timezone:  "Local",
		},
		Store: StoreConfig{
			Backend: StoreBadger,
			Path:    "data",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
		},
		Logging: LoggingConfig{
			Level:     "error",
			File:      "~/.vigil/vigil.log",
			MaxSizeKB: 10 * 1024,
			MaxRolls:  3,
		},
	}
}
