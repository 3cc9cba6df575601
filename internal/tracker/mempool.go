package tracker

import (
	"context"
	"sort"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/vigil/internal/explorer"
	"github.com/mrz1836/vigil/internal/wallet"
)

const (
	// DefaultLookahead is how many addresses past the last used one are probed per branch.
	DefaultLookahead = 2

	// DefaultMempoolConcurrency caps in-flight mempool queries per probe.
	DefaultMempoolConcurrency = 4
)

// ProbeOutcome says whether a probe produced new data.
type ProbeOutcome int

// Probe outcomes.
const (
	// ProbeFresh means every frontier query succeeded and the result replaces the previous one.
	ProbeFresh ProbeOutcome = iota
	// ProbeRetained means a query failed and the previous result was kept.
	ProbeRetained
)

// String returns the outcome name.
func (o ProbeOutcome) String() string {
	if o == ProbeFresh {
		return "fresh"
	}
	return "retained"
}

// MempoolResult is the pending activity for the probed frontier.
type MempoolResult struct {
	Total  MempoolTotal   `json:"total"`
	Deltas []MempoolDelta `json:"deltas"`
}

// ProbeResult is the outcome of one probe. Err is set when the previous result was retained.
type ProbeResult struct {
	Outcome  ProbeOutcome
	Result   MempoolResult
	Frontier []string
	Err      error
}

// ProberOptions configures mempool probing.
type ProberOptions struct {
	// Lookahead defaults to DefaultLookahead.
	Lookahead int

	// Concurrency defaults to DefaultMempoolConcurrency.
	Concurrency int

	// Clock stamps observations. Defaults to the wall clock.
	Clock clock.Clock

	Logger Logger
}

// Prober queries unconfirmed transactions for a small address frontier.
type Prober struct {
	lister      MempoolLister
	lookahead   int
	concurrency int
	clock       clock.Clock
	logger      Logger
}

// NewProber creates a mempool prober over lister.
func NewProber(lister MempoolLister, opts *ProberOptions) *Prober {
	p := &Prober{
		lister:      lister,
		lookahead:   DefaultLookahead,
		concurrency: DefaultMempoolConcurrency,
		clock:       clock.NewDefaultClock(),
		logger:      nopLogger{},
	}
	if opts == nil {
		return p
	}
	if opts.Lookahead > 0 {
		p.lookahead = opts.Lookahead
	}
	if opts.Concurrency > 0 {
		p.concurrency = opts.Concurrency
	}
	if opts.Clock != nil {
		p.clock = opts.Clock
	}
	p.logger = orNop(opts.Logger)
	return p
}

// Frontier selects, per branch, the last used address and the next lookahead
// addresses in derivation order, plus every address holding a confirmed balance.
// A branch with no used address contributes its first lookahead addresses.
func (p *Prober) Frontier(statuses []AddressStatus) []string {
	byBranch := make(map[wallet.Branch][]AddressStatus, 2)
	for _, s := range statuses {
		branch, _, err := wallet.ParsePath(s.Path)
		if err != nil {
			continue
		}
		byBranch[branch] = append(byBranch[branch], s)
	}

	seen := make(map[string]struct{})
	var frontier []string
	add := func(addr string) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		frontier = append(frontier, addr)
	}

	for _, branch := range wallet.Branches() {
		list := byBranch[branch]
		sort.SliceStable(list, func(i, j int) bool { return indexOf(list[i].Path) < indexOf(list[j].Path) })

		lastUsed := -1
		for i, s := range list {
			if s.Used {
				lastUsed = i
			}
		}

		start := lastUsed
		if start < 0 {
			start = 0
		}
		for i := start; i <= lastUsed+p.lookahead && i < len(list); i++ {
			add(list[i].Address)
		}
	}

	for _, s := range statuses {
		if s.Balance != 0 {
			add(s.Address)
		}
	}

	return frontier
}

// Probe queries every frontier address, at most concurrency at a time, and merges
// their deltas by txid. If any query fails, the rest are cancelled and previous is returned
// unchanged with outcome ProbeRetained.
func (p *Prober) Probe(ctx context.Context, statuses []AddressStatus, previous MempoolResult) ProbeResult {
	frontier := p.Frontier(statuses)
	now := p.clock.Now().Unix()

	answers := make([][]explorer.MempoolTx, len(frontier))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)
	for i, addr := range frontier {
		eg.Go(func() error {
			txs, err := p.lister.FetchMempool(egCtx, addr)
			if err != nil {
				p.logger.Debug("mempool probe for %s failed: %v", addr, err)
				return err
			}
			answers[i] = txs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		p.logger.Debug("keeping previous mempool result")
		return ProbeResult{Outcome: ProbeRetained, Result: previous, Frontier: frontier, Err: err}
	}

	net := make(map[string]int64)
	var order []string
	for i, txs := range answers {
		for _, tx := range txs {
			d := addressDelta(tx, frontier[i])
			if d == 0 {
				continue
			}
			if _, ok := net[tx.TxID]; !ok {
				order = append(order, tx.TxID)
			}
			net[tx.TxID] += d
		}
	}

	result := MempoolResult{Total: MempoolTotal{ObservedAt: now}, Deltas: make([]MempoolDelta, 0, len(order))}
	for _, txid := range order {
		if net[txid] == 0 {
			continue
		}
		result.Deltas = append(result.Deltas, MempoolDelta{TxID: txid, NetSatoshis: net[txid], ObservedAt: now, Mempool: true})
		result.Total.TotalSatoshi += net[txid]
	}

	return ProbeResult{Outcome: ProbeFresh, Result: result, Frontier: frontier}
}

// addressDelta is the net effect of tx on a single address.
func addressDelta(tx explorer.MempoolTx, address string) int64 {
	var d int64
	for _, out := range tx.Vout {
		if out.ScriptPubKeyAddress == address {
			d += out.Value
		}
	}
	for _, in := range tx.Vin {
		if in.Prevout != nil && in.Prevout.ScriptPubKeyAddress == address {
			d -= in.Prevout.Value
		}
	}
	return d
}

func indexOf(path string) uint32 {
	_, index, err := wallet.ParsePath(path)
	if err != nil {
		return 0
	}
	return index
}
