package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// maxSuggestionDistance bounds how far a typo may be from a known key to be suggested.
const maxSuggestionDistance = 4

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
	}
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error {
			*p(c) = v
			return nil
		},
	}
}

func durationField(p func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return p(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*p(c) = d
			return nil
		},
	}
}

//nolint:gochecknoglobals // Static registry of addressable config keys
var fields = map[string]field{
	"home":                     stringField(func(c *Config) *string { return &c.Home }),
	"wallet.xpub":              stringField(func(c *Config) *string { return &c.Wallet.Xpub }),
	"wallet.external_count":    intField(func(c *Config) *int { return &c.Wallet.ExternalCount }),
	"wallet.internal_count":    intField(func(c *Config) *int { return &c.Wallet.InternalCount }),
	"explorer.balance_api":     stringField(func(c *Config) *string { return &c.Explorer.BalanceAPI }),
	"explorer.mempool_api":     stringField(func(c *Config) *string { return &c.Explorer.MempoolAPI }),
	"explorer.timeout":         durationField(func(c *Config) *time.Duration { return &c.Explorer.Timeout }),
	"explorer.mempool_timeout": durationField(func(c *Config) *time.Duration { return &c.Explorer.MempoolTimeout }),
	"scan.gap_limit":           intField(func(c *Config) *int { return &c.Scan.GapLimit }),
	"scan.batch_size":          intField(func(c *Config) *int { return &c.Scan.BatchSize }),
	"scan.max_retries":         intField(func(c *Config) *int { return &c.Scan.MaxRetries }),
	"scan.retry_delay":         durationField(func(c *Config) *time.Duration { return &c.Scan.RetryDelay }),
	"history.batch_size":       intField(func(c *Config) *int { return &c.History.BatchSize }),
	"history.page_size":        intField(func(c *Config) *int { return &c.History.PageSize }),
	"history.request_delay":    durationField(func(c *Config) *time.Duration { return &c.History.RequestDelay }),
	"history.max_retries":      intField(func(c *Config) *int { return &c.History.MaxRetries }),
	"watch.interval":           durationField(func(c *Config) *time.Duration { return &c.Watch.Interval }),
	"watch.countdown":          durationField(func(c *Config) *time.Duration { return &c.Watch.Countdown }),
	"watch.lookahead":          intField(func(c *Config) *int { return &c.Watch.Lookahead }),
	"watch.timezone":           stringField(func(c *Config) *string { return &c.Watch.Timezone }),
	"store.backend":            stringField(func(c *Config) *string { return &c.Store.Backend }),
	"store.path":               stringField(func(c *Config) *string { return &c.Store.Path }),
	"output.default_format":    stringField(func(c *Config) *string { return &c.Output.DefaultFormat }),
	"output.color":             stringField(func(c *Config) *string { return &c.Output.Color }),
	"logging.level":            stringField(func(c *Config) *string { return &c.Logging.Level }),
	"logging.file":             stringField(func(c *Config) *string { return &c.Logging.File }),
}

// Keys returns every addressable config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value at a dotted key such as "scan.gap_limit".
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return "", unknownKey(key)
	}
	return f.get(c), nil
}

// Set parses and assigns the value at a dotted key, then re-validates the config.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return unknownKey(key)
	}

	next := *c
	if err := f.set(&next, value); err != nil {
		return vigilerr.WithDetails(vigilerr.ErrConfigInvalid, map[string]string{
			"key":   key,
			"value": value,
			"error": err.Error(),
		})
	}
	if err := next.Validate(); err != nil {
		return err
	}

	*c = next
	return nil
}

func unknownKey(key string) error {
	err := vigilerr.WithDetails(vigilerr.ErrUnknownConfigKey, map[string]string{"key": key})
	if s := SuggestKey(key); s != "" {
		return vigilerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", s))
	}
	return err
}

// SuggestKey returns the closest known key to input, or "" if none is close enough.
func SuggestKey(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, k := range Keys() {
		if d := levenshtein.ComputeDistance(input, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}
