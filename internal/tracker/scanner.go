package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/mrz1836/vigil/internal/chain"
	"github.com/mrz1836/vigil/internal/explorer"
	"github.com/mrz1836/vigil/internal/wallet"
)

// Default scanning parameters.
const (
	// DefaultGapLimit is the number of consecutive unused addresses after which a branch is abandoned.
	DefaultGapLimit = 5

	// DefaultScanBatchSize is the number of addresses per balance request.
	DefaultScanBatchSize = explorer.MaxBatchSize

	// DefaultScanRetries is how many times a batch is refetched after a transport failure.
	DefaultScanRetries = 2

	// DefaultScanRetryDelay is the first backoff step between refetches.
	DefaultScanRetryDelay = time.Second
)

// ScannerOptions configures gap-limited scanning.
type ScannerOptions struct {
	// GapLimit defaults to DefaultGapLimit.
	GapLimit int

	// BatchSize defaults to DefaultScanBatchSize and is capped at explorer.MaxBatchSize.
	BatchSize int

	// MaxRetries defaults to DefaultScanRetries. Negative disables retries.
	// Only transport failures are retried; explorer errors abort at once.
	MaxRetries int

	// RetryDelay defaults to DefaultScanRetryDelay and doubles per attempt.
	RetryDelay time.Duration

	// Sleep defaults to chain.Sleep.
	Sleep chain.SleepFunc

	Logger Logger
}

// BranchScan is the outcome of scanning one branch.
type BranchScan struct {
	Statuses []AddressStatus
	Scanned  int
	Implicit int
	Batches  int
}

// ScanResult is the outcome of scanning both branches.
type ScanResult struct {
	External BranchScan
	Internal BranchScan
}

// Statuses returns every status, external branch first.
func (r ScanResult) Statuses() []AddressStatus {
	out := make([]AddressStatus, 0, len(r.External.Statuses)+len(r.Internal.Statuses))
	out = append(out, r.External.Statuses...)
	return append(out, r.Internal.Statuses...)
}

// Scanner classifies derived addresses as used or unused.
type Scanner struct {
	fetcher    BalanceFetcher
	gapLimit   int
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	sleep      chain.SleepFunc
	logger     Logger
}

// NewScanner creates a scanner over fetcher.
func NewScanner(fetcher BalanceFetcher, opts *ScannerOptions) *Scanner {
	s := &Scanner{
		fetcher:    fetcher,
		gapLimit:   DefaultGapLimit,
		batchSize:  DefaultScanBatchSize,
		maxRetries: DefaultScanRetries,
		retryDelay: DefaultScanRetryDelay,
		sleep:      chain.Sleep,
		logger:     nopLogger{},
	}
	if opts == nil {
		return s
	}
	if opts.GapLimit > 0 {
		s.gapLimit = opts.GapLimit
	}
	if opts.BatchSize > 0 && opts.BatchSize <= explorer.MaxBatchSize {
		s.batchSize = opts.BatchSize
	}
	switch {
	case opts.MaxRetries > 0:
		s.maxRetries = opts.MaxRetries
	case opts.MaxRetries < 0:
		s.maxRetries = 0
	}
	if opts.RetryDelay > 0 {
		s.retryDelay = opts.RetryDelay
	}
	if opts.Sleep != nil {
		s.sleep = opts.Sleep
	}
	s.logger = orNop(opts.Logger)
	return s
}

// Scan scans the external branch, then the internal branch, each with its own gap counter.
// Any fetch failure aborts the whole scan and no result is returned.
func (s *Scanner) Scan(ctx context.Context, external, internal []wallet.DerivedAddress) (*ScanResult, error) {
	ext, err := s.ScanBranch(ctx, external)
	if err != nil {
		return nil, fmt.Errorf("scanning external branch: %w", err)
	}

	in, err := s.ScanBranch(ctx, internal)
	if err != nil {
		return nil, fmt.Errorf("scanning internal branch: %w", err)
	}

	return &ScanResult{External: ext, Internal: in}, nil
}

// ScanBranch walks addrs in derivation order, one batch per request. Before each
// additional batch it checks the consecutive-unused counter; once the gap limit is
// reached the remaining addresses are appended as implicit unused with zero balance.
func (s *Scanner) ScanBranch(ctx context.Context, addrs []wallet.DerivedAddress) (BranchScan, error) {
	result := BranchScan{Statuses: make([]AddressStatus, 0, len(addrs))}
	consecutiveUnused := 0

	next := 0
	for next < len(addrs) {
		if result.Batches > 0 && consecutiveUnused >= s.gapLimit {
			break
		}
		if err := ctx.Err(); err != nil {
			return BranchScan{}, err
		}

		end := min(next+s.batchSize, len(addrs))
		batch := addrs[next:end]

		balances, err := s.fetchBatch(ctx, addressesOf(batch))
		if err != nil {
			return BranchScan{}, err
		}
		result.Batches++

		for _, a := range batch {
			info, ok := balances[a.Address]
			status := AddressStatus{Path: a.Path, Address: a.Address}
			if ok {
				status.Used = info.Used()
				status.Balance = info.FinalBalance
				status.TxCount = info.TxCount
			}
			result.Statuses = append(result.Statuses, status)

			if status.Used {
				consecutiveUnused = 0
			} else {
				consecutiveUnused++
			}
		}
		next = end
	}

	result.Scanned = next
	for _, a := range addrs[next:] {
		result.Statuses = append(result.Statuses, AddressStatus{Path: a.Path, Address: a.Address, Implicit: true})
	}
	result.Implicit = len(addrs) - next

	s.logger.Debug("scanned %d addresses in %d batches, %d implicit unused", result.Scanned, result.Batches, result.Implicit)
	return result, nil
}

// fetchBatch fetches one batch, refetching with exponential backoff after transport failures.
func (s *Scanner) fetchBatch(ctx context.Context, addrs []string) (map[string]explorer.AddressBalance, error) {
	attempt := 0
	return chain.RetryWithConfig(ctx, chain.NetworkRetryConfig(s.retryDelay, s.maxRetries, s.sleep),
		func() (map[string]explorer.AddressBalance, error) {
			attempt++
			if attempt > 1 {
				s.logger.Info("retrying balance batch of %d addresses (attempt %d)", len(addrs), attempt)
			}
			return s.fetcher.FetchBalances(ctx, addrs)
		})
}

func addressesOf(addrs []wallet.DerivedAddress) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Address
	}
	return out
}
