package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrz1836/vigil/internal/metrics"
	"github.com/mrz1836/vigil/internal/store"
	"github.com/mrz1836/vigil/internal/wallet"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// Default derivation counts.
const (
	DefaultExternalCount = 100
	DefaultInternalCount = 50
)

// derivedKeys are cleared when a different account key is generated.
//
//nolint:gochecknoglobals // Fixed list of storage keys
var derivedKeys = []string{
	store.KeyAddressStatuses,
	store.KeyTotalBalance,
	store.KeyTxDeltas,
	store.KeyBalanceTimeline,
	store.KeyMempoolTotal,
	store.KeyMempoolDeltas,
}

// ServiceOptions wires a Service.
type ServiceOptions struct {
	Store      store.Store
	Scanner    *Scanner
	Aggregator *Aggregator
	Prober     *Prober

	// ExternalCount and InternalCount bound generation. Default 100 and 50.
	ExternalCount int
	InternalCount int

	// Location is the timeline display zone. Defaults to time.Local.
	Location *time.Location

	Logger  Logger
	Metrics *metrics.Metrics
}

// Service runs each pipeline stage against the store: it reads the stage's
// inputs, runs the stage and replaces the stage's own key only on success.
type Service struct {
	store         store.Store
	scanner       *Scanner
	aggregator    *Aggregator
	prober        *Prober
	externalCount int
	internalCount int
	loc           *time.Location
	logger        Logger
	metrics       *metrics.Metrics
}

// NewService creates a service.
func NewService(opts ServiceOptions) *Service {
	s := &Service{
		store:         opts.Store,
		scanner:       opts.Scanner,
		aggregator:    opts.Aggregator,
		prober:        opts.Prober,
		externalCount: DefaultExternalCount,
		internalCount: DefaultInternalCount,
		loc:           opts.Location,
		logger:        orNop(opts.Logger),
		metrics:       opts.Metrics,
	}
	if opts.ExternalCount > 0 {
		s.externalCount = opts.ExternalCount
	}
	if opts.InternalCount > 0 {
		s.internalCount = opts.InternalCount
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.metrics == nil {
		s.metrics = metrics.Global
	}
	return s
}

// GenerateResult reports a generation run.
type GenerateResult struct {
	ScriptType wallet.ScriptType
	External   []wallet.DerivedAddress
	Internal   []wallet.DerivedAddress
	Replaced   bool // a different key was stored before and its derived state was cleared
}

// Generate derives both branches from xpub and stores the key and both lists.
func (s *Service) Generate(xpub string) (*GenerateResult, error) {
	deriver, err := wallet.NewDeriver(xpub)
	if err != nil {
		return nil, err
	}

	external, err := deriver.DeriveRange(wallet.External, s.externalCount)
	if err != nil {
		return nil, vigilerr.WithCause(vigilerr.ErrInvalidXpub, err)
	}
	internal, err := deriver.DeriveRange(wallet.Internal, s.internalCount)
	if err != nil {
		return nil, vigilerr.WithCause(vigilerr.ErrInvalidXpub, err)
	}

	var previous string
	found, err := s.get(store.KeyXpub, &previous)
	if err != nil {
		return nil, err
	}
	replaced := found && previous != xpub
	if replaced {
		for _, key := range derivedKeys {
			if err := s.store.Delete(key); err != nil {
				return nil, err
			}
		}
	}

	if err := s.store.Put(store.KeyExternalAddresses, external); err != nil {
		return nil, err
	}
	if err := s.store.Put(store.KeyInternalAddresses, internal); err != nil {
		return nil, err
	}
	if err := s.store.Put(store.KeyXpub, xpub); err != nil {
		return nil, err
	}

	s.logger.Info("generated %d external and %d internal addresses for %s", len(external), len(internal), wallet.Redact(xpub))
	return &GenerateResult{ScriptType: deriver.ScriptType(), External: external, Internal: internal, Replaced: replaced}, nil
}

// Addresses returns the stored derived addresses of branch.
func (s *Service) Addresses(branch wallet.Branch) ([]wallet.DerivedAddress, error) {
	key := store.KeyExternalAddresses
	if branch == wallet.Internal {
		key = store.KeyInternalAddresses
	}

	var addrs []wallet.DerivedAddress
	if _, err := s.get(key, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// Check scans both branches and replaces the stored statuses.
func (s *Service) Check(ctx context.Context) (*ScanResult, error) {
	external, err := s.Addresses(wallet.External)
	if err != nil {
		return nil, err
	}
	internal, err := s.Addresses(wallet.Internal)
	if err != nil {
		return nil, err
	}
	if len(external) == 0 && len(internal) == 0 {
		return nil, vigilerr.Input("no addresses generated", "run: vigil generate --xpub <zpub>")
	}

	result, err := s.scanner.Scan(ctx, external, internal)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(store.KeyAddressStatuses, result.Statuses()); err != nil {
		return nil, err
	}
	return result, nil
}

// Statuses returns the stored statuses, or nil if no scan has completed.
func (s *Service) Statuses() ([]AddressStatus, error) {
	var statuses []AddressStatus
	if _, err := s.get(store.KeyAddressStatuses, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// ComputeTotal sums the stored statuses and replaces the stored total.
func (s *Service) ComputeTotal() (TotalBalance, error) {
	statuses, err := s.Statuses()
	if err != nil {
		return TotalBalance{}, err
	}
	if len(statuses) == 0 {
		return TotalBalance{}, vigilerr.Input("no address scan found", "run: vigil check")
	}

	total := NewTotalBalance(SumBalances(statuses))
	if err := s.store.Put(store.KeyTotalBalance, total); err != nil {
		return TotalBalance{}, err
	}
	return total, nil
}

// Total returns the stored total, zero if absent.
func (s *Service) Total() (TotalBalance, error) {
	var total TotalBalance
	if _, err := s.get(store.KeyTotalBalance, &total); err != nil {
		return TotalBalance{}, err
	}
	return total, nil
}

// FetchHistory aggregates the used addresses' transactions and replaces the stored deltas.
func (s *Service) FetchHistory(ctx context.Context) ([]TxDelta, error) {
	statuses, err := s.Statuses()
	if err != nil {
		return nil, err
	}
	used := UsedAddresses(statuses)
	if len(used) == 0 {
		return nil, vigilerr.Input("no used addresses", "run: vigil check")
	}

	deltas, err := s.aggregator.Aggregate(ctx, used)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(store.KeyTxDeltas, deltas); err != nil {
		return nil, err
	}
	return deltas, nil
}

// Deltas returns the stored confirmed deltas.
func (s *Service) Deltas() ([]TxDelta, error) {
	var deltas []TxDelta
	if _, err := s.get(store.KeyTxDeltas, &deltas); err != nil {
		return nil, err
	}
	return deltas, nil
}

// BuildTimeline folds the stored deltas and replaces the stored timeline.
// Stored but empty history yields an empty timeline.
func (s *Service) BuildTimeline() ([]DailyBalance, error) {
	var deltas []TxDelta
	found, err := s.get(store.KeyTxDeltas, &deltas)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, vigilerr.Input("no transaction history", "run: vigil history")
	}

	timeline := BuildTimeline(deltas, s.loc)
	if err := s.store.Put(store.KeyBalanceTimeline, timeline); err != nil {
		return nil, err
	}
	return timeline, nil
}

// Timeline returns the stored timeline.
func (s *Service) Timeline() ([]DailyBalance, error) {
	var timeline []DailyBalance
	if _, err := s.get(store.KeyBalanceTimeline, &timeline); err != nil {
		return nil, err
	}
	return timeline, nil
}

// Mempool returns the stored mempool result.
func (s *Service) Mempool() (MempoolResult, error) {
	var result MempoolResult
	if _, err := s.get(store.KeyMempoolTotal, &result.Total); err != nil {
		return MempoolResult{}, err
	}
	if _, err := s.get(store.KeyMempoolDeltas, &result.Deltas); err != nil {
		return MempoolResult{}, err
	}
	return result, nil
}

// ProbeMempool probes the frontier of the stored statuses. A fresh result
// replaces the stored one; otherwise the stored result is left in place.
// It never fails: problems are reported through the result.
func (s *Service) ProbeMempool(ctx context.Context) ProbeResult {
	previous, err := s.Mempool()
	if err != nil {
		return ProbeResult{Outcome: ProbeRetained, Err: err}
	}

	statuses, err := s.Statuses()
	if err != nil {
		return ProbeResult{Outcome: ProbeRetained, Result: previous, Err: err}
	}
	if len(statuses) == 0 {
		return ProbeResult{
			Outcome: ProbeRetained,
			Result:  previous,
			Err:     vigilerr.Input("no address scan found", "run: vigil check"),
		}
	}

	res := s.prober.Probe(ctx, statuses, previous)
	if res.Outcome != ProbeFresh {
		return res
	}

	if err := s.store.Put(store.KeyMempoolTotal, res.Result.Total); err != nil {
		return ProbeResult{Outcome: ProbeRetained, Result: previous, Frontier: res.Frontier, Err: err}
	}
	if err := s.store.Put(store.KeyMempoolDeltas, res.Result.Deltas); err != nil {
		return ProbeResult{Outcome: ProbeRetained, Result: previous, Frontier: res.Frontier, Err: err}
	}
	return res
}

// Snapshot returns the stored statuses and total.
func (s *Service) Snapshot() (Snapshot, error) {
	statuses, err := s.Statuses()
	if err != nil {
		return Snapshot{}, err
	}
	total, err := s.Total()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Statuses: statuses, Total: total.Satoshi}, nil
}

// NextReceiveAddress returns the first external address not marked used.
// Before any scan it is the first derived external address.
func (s *Service) NextReceiveAddress() (wallet.DerivedAddress, error) {
	external, err := s.Addresses(wallet.External)
	if err != nil {
		return wallet.DerivedAddress{}, err
	}
	if len(external) == 0 {
		return wallet.DerivedAddress{}, vigilerr.Input("no addresses generated", "run: vigil generate --xpub <zpub>")
	}

	statuses, err := s.Statuses()
	if err != nil {
		return wallet.DerivedAddress{}, err
	}
	used := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		used[st.Address] = st.Used
	}

	for _, a := range external {
		if !used[a.Address] {
			return a, nil
		}
	}
	return wallet.DerivedAddress{}, vigilerr.Input(
		fmt.Sprintf("all %d external addresses are used", len(external)),
		"raise wallet.external_count and run vigil generate again",
	)
}

// Summary is the confirmed and pending position of the wallet.
type Summary struct {
	Confirmed     TotalBalance  `json:"confirmed"`
	Pending       int64         `json:"pending"`
	PendingTxs    int           `json:"pending_txs"`
	Addresses     int           `json:"addresses"`
	UsedAddresses int           `json:"used_addresses"`
	Implicit      int           `json:"implicit"`
	Transactions  int           `json:"transactions"`
	LastDay       *DailyBalance `json:"last_day,omitempty"`
}

// Summary reads every stored record into one view.
func (s *Service) Summary() (*Summary, error) {
	statuses, err := s.Statuses()
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, vigilerr.Input("no address scan found", "run: vigil check")
	}

	total, err := s.Total()
	if err != nil {
		return nil, err
	}
	if total.Satoshi == 0 && total.BTC.IsZero() {
		total = NewTotalBalance(SumBalances(statuses))
	}

	mempool, err := s.Mempool()
	if err != nil {
		return nil, err
	}
	deltas, err := s.Deltas()
	if err != nil {
		return nil, err
	}
	timeline, err := s.Timeline()
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Confirmed:    total,
		Pending:      mempool.Total.TotalSatoshi,
		PendingTxs:   len(mempool.Deltas),
		Addresses:    len(statuses),
		Transactions: len(deltas),
	}
	for _, st := range statuses {
		if st.Used {
			sum.UsedAddresses++
		}
		if st.Implicit {
			sum.Implicit++
		}
	}
	if n := len(timeline); n > 0 {
		last := timeline[n-1]
		sum.LastDay = &last
	}
	return sum, nil
}

func (s *Service) get(key string, v any) (bool, error) {
	found, err := s.store.Get(key, v)
	if err != nil {
		return false, err
	}
	if found {
		s.metrics.RecordStoreHit()
	} else {
		s.metrics.RecordStoreMiss()
	}
	return found, nil
}

// IsInputError reports whether err is a missing-prerequisite error.
func IsInputError(err error) bool {
	return errors.Is(err, vigilerr.ErrInput)
}
