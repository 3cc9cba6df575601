// Package store provides the local key/value capability the tracker persists
// its state through. Values are JSON; each Put replaces its key atomically.
package store

import (
	"fmt"

	"github.com/mrz1836/vigil/internal/config"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// Keys of the records the tracker persists. Each is independently replaceable.
const (
	KeyXpub              = "xpub"
	KeyExternalAddresses = "addresses/external"
	KeyInternalAddresses = "addresses/internal"
	KeyAddressStatuses   = "address_statuses"
	KeyTotalBalance      = "total_balance"
	KeyTxDeltas          = "tx_deltas"
	KeyBalanceTimeline   = "balance_timeline"
	KeyMempoolTotal      = "mempool_total"
	KeyMempoolDeltas     = "mempool_deltas"
)

// Store is a JSON key/value store.
type Store interface {
	// Get decodes the value at key into v. found is false when the key is absent.
	Get(key string, v any) (found bool, err error)

	// Put encodes v and replaces the value at key.
	Put(key string, v any) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases the underlying resources.
	Close() error
}

// Logger is the logging surface stores need.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Open opens the backend selected by cfg.Store.Backend.
func Open(cfg *config.Config, logger Logger) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBadger:
		return OpenBadger(cfg.StorePath(), logger)
	case config.StoreFile:
		return NewFileStore(cfg.StorePath())
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, vigilerr.WithDetails(vigilerr.ErrConfigInvalid, map[string]string{
			"key":   "store.backend",
			"value": cfg.Store.Backend,
		})
	}
}

func storeError(op, key string, cause error) error {
	return vigilerr.WithCause(
		vigilerr.WithDetails(vigilerr.ErrStore, map[string]string{"op": op, "key": key}),
		cause,
	)
}

func validKey(key string) error {
	if key == "" {
		return storeError("validate", key, fmt.Errorf("empty key"))
	}
	return nil
}
