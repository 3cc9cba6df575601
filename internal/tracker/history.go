package tracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mrz1836/vigil/internal/chain"
	"github.com/mrz1836/vigil/internal/explorer"
)

// Default aggregation parameters.
const (
	DefaultHistoryBatchSize = explorer.MaxBatchSize
	DefaultPageSize         = 100
	DefaultRequestDelay     = 600 * time.Millisecond
	DefaultMaxRetries       = 3
)

// AggregatorOptions configures history aggregation.
type AggregatorOptions struct {
	BatchSize    int
	PageSize     int
	RequestDelay time.Duration

	// MaxRetries is how many times a 429 is retried before the aggregation fails.
	MaxRetries int

	// Sleep waits between requests and before retries. Defaults to chain.Sleep.
	Sleep chain.SleepFunc

	Logger Logger
}

// Aggregator collects the net delta of every confirmed transaction touching the used addresses.
type Aggregator struct {
	lister     TransactionLister
	batchSize  int
	pageSize   int
	delay      time.Duration
	maxRetries int
	sleep      chain.SleepFunc
	logger     Logger
}

// NewAggregator creates an aggregator over lister.
func NewAggregator(lister TransactionLister, opts *AggregatorOptions) *Aggregator {
	a := &Aggregator{
		lister:     lister,
		batchSize:  DefaultHistoryBatchSize,
		pageSize:   DefaultPageSize,
		delay:      DefaultRequestDelay,
		maxRetries: DefaultMaxRetries,
		sleep:      chain.Sleep,
		logger:     nopLogger{},
	}
	if opts == nil {
		return a
	}
	if opts.BatchSize > 0 && opts.BatchSize <= explorer.MaxBatchSize {
		a.batchSize = opts.BatchSize
	}
	if opts.PageSize > 0 {
		a.pageSize = opts.PageSize
	}
	if opts.RequestDelay > 0 {
		a.delay = opts.RequestDelay
	}
	if opts.MaxRetries > 0 {
		a.maxRetries = opts.MaxRetries
	}
	if opts.Sleep != nil {
		a.sleep = opts.Sleep
	}
	a.logger = orNop(opts.Logger)
	return a
}

// Aggregate pages through the transaction listing for used, batch by batch, and
// returns the deduplicated nonzero deltas sorted ascending by timestamp. Any
// failure, including exhausting the 429 retry budget, aborts with no result.
func (a *Aggregator) Aggregate(ctx context.Context, used []string) ([]TxDelta, error) {
	watched := make(map[string]struct{}, len(used))
	for _, addr := range used {
		watched[addr] = struct{}{}
	}

	seen := make(map[string]struct{})
	deltas := make([]TxDelta, 0)
	requests := 0

	for start := 0; start < len(used); start += a.batchSize {
		batch := used[start:min(start+a.batchSize, len(used))]

		for offset := 0; ; offset += a.pageSize {
			if requests > 0 {
				if err := a.sleep(ctx, a.delay); err != nil {
					return nil, err
				}
			}
			requests++

			txs, err := a.fetchPage(ctx, batch, offset)
			if err != nil {
				return nil, fmt.Errorf("fetching history batch at %d offset %d: %w", start, offset, err)
			}

			for _, tx := range txs {
				if _, dup := seen[tx.Hash]; dup {
					continue
				}
				seen[tx.Hash] = struct{}{}

				if net := NetDelta(tx, watched); net != 0 {
					deltas = append(deltas, TxDelta{TxHash: tx.Hash, Timestamp: tx.Time, NetSatoshis: net})
				}
			}

			if len(txs) < a.pageSize {
				break
			}
		}
	}

	SortDeltas(deltas)
	a.logger.Debug("aggregated %d deltas from %d transactions in %d requests", len(deltas), len(seen), requests)
	return deltas, nil
}

func (a *Aggregator) fetchPage(ctx context.Context, batch []string, offset int) ([]explorer.Transaction, error) {
	cfg := chain.RateLimitRetryConfig(a.delay, a.maxRetries, a.sleep)
	attempt := 0
	return chain.RetryWithConfig(ctx, cfg, func() ([]explorer.Transaction, error) {
		if attempt > 0 {
			a.logger.Info("rate limited, retry %d for offset %d", attempt, offset)
		}
		attempt++
		return a.lister.FetchTransactions(ctx, batch, a.pageSize, offset)
	})
}

// NetDelta is the sum of outputs paying watched addresses minus the sum of
// previous outputs spent from watched addresses.
func NetDelta(tx explorer.Transaction, watched map[string]struct{}) int64 {
	var net int64
	for _, out := range tx.Out {
		if _, ok := watched[out.Addr]; ok {
			net += out.Value
		}
	}
	for _, in := range tx.Inputs {
		if in.PrevOut == nil {
			continue
		}
		if _, ok := watched[in.PrevOut.Addr]; ok {
			net -= in.PrevOut.Value
		}
	}
	return net
}

// SortDeltas orders deltas ascending by timestamp, breaking ties by hash.
func SortDeltas(deltas []TxDelta) {
	sort.SliceStable(deltas, func(i, j int) bool {
		if deltas[i].Timestamp != deltas[j].Timestamp {
			return deltas[i].Timestamp < deltas[j].Timestamp
		}
		return deltas[i].TxHash < deltas[j].TxHash
	})
}

// SumDeltas totals the net satoshis of deltas.
func SumDeltas(deltas []TxDelta) int64 {
	var total int64
	for _, d := range deltas {
		total += d.NetSatoshis
	}
	return total
}
