package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrz1836/vigil/internal/explorer"
	"github.com/mrz1836/vigil/internal/wallet"
)

// fakeBalances answers balance queries from a fixed table and records every request.
type fakeBalances struct {
	mu       sync.Mutex
	balances map[string]explorer.AddressBalance
	calls    [][]string
	failOn   map[int]error // call number (1-based) -> error
	gate     *callGate
}

// callGate parks every call until release is closed.
type callGate struct {
	entered chan struct{}
	release chan struct{}
}

// hold makes subsequent calls announce themselves on entered and wait for release.
func (f *fakeBalances) hold() *callGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = &callGate{entered: make(chan struct{}, 64), release: make(chan struct{})}
	return f.gate
}

func newFakeBalances(balances map[string]explorer.AddressBalance) *fakeBalances {
	if balances == nil {
		balances = make(map[string]explorer.AddressBalance)
	}
	return &fakeBalances{balances: balances, failOn: make(map[int]error)}
}

func (f *fakeBalances) FetchBalances(_ context.Context, addresses []string) (map[string]explorer.AddressBalance, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate.entered <- struct{}{}
		<-gate.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string(nil), addresses...))
	if err, ok := f.failOn[len(f.calls)]; ok {
		return nil, err
	}

	out := make(map[string]explorer.AddressBalance, len(addresses))
	for _, a := range addresses {
		if b, ok := f.balances[a]; ok {
			out[a] = b
		}
	}
	return out, nil
}

func (f *fakeBalances) set(addr string, b explorer.AddressBalance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = b
}

func (f *fakeBalances) queried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.calls {
		out = append(out, c...)
	}
	return out
}

func (f *fakeBalances) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type pageRequest struct {
	addresses []string
	limit     int
	offset    int
}

// fakeLister serves transaction pages through a function and records requests.
type fakeLister struct {
	mu       sync.Mutex
	requests []pageRequest
	page     func(call int, req pageRequest) ([]explorer.Transaction, error)
}

func (f *fakeLister) FetchTransactions(_ context.Context, addresses []string, limit, offset int) ([]explorer.Transaction, error) {
	f.mu.Lock()
	req := pageRequest{addresses: append([]string(nil), addresses...), limit: limit, offset: offset}
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()

	return f.page(call, req)
}

// staticLister returns the same transactions for every request, limited to one page.
func staticLister(txs ...explorer.Transaction) *fakeLister {
	return &fakeLister{page: func(_ int, req pageRequest) ([]explorer.Transaction, error) {
		if req.offset > 0 {
			return nil, nil
		}
		return txs, nil
	}}
}

// fakeMempool answers per-address mempool queries; safe for concurrent use.
type fakeMempool struct {
	mu      sync.Mutex
	txs     map[string][]explorer.MempoolTx
	errs    map[string]error
	queried []string
}

func newFakeMempool() *fakeMempool {
	return &fakeMempool{txs: make(map[string][]explorer.MempoolTx), errs: make(map[string]error)}
}

func (f *fakeMempool) FetchMempool(_ context.Context, address string) ([]explorer.MempoolTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queried = append(f.queried, address)
	if err, ok := f.errs[address]; ok {
		return nil, err
	}
	return f.txs[address], nil
}

// sleepRecorder captures requested sleeps without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return ctx.Err()
}

// derived builds n addresses on branch named like "ext-0", "int-0".
func derived(branch wallet.Branch, n int) []wallet.DerivedAddress {
	prefix := "ext"
	if branch == wallet.Internal {
		prefix = "int"
	}
	out := make([]wallet.DerivedAddress, n)
	for i := range out {
		out[i] = wallet.DerivedAddress{
			Path:    wallet.Path(branch, uint32(i)), //nolint:gosec // test indices are small
			Address: fmt.Sprintf("%s-%d", prefix, i),
		}
	}
	return out
}

func used(txs int, balance int64) explorer.AddressBalance {
	return explorer.AddressBalance{TxCount: txs, FinalBalance: balance}
}

func payment(hash string, ts int64, to string, value int64) explorer.Transaction {
	return explorer.Transaction{Hash: hash, Time: ts, Out: []explorer.Output{{Addr: to, Value: value}}}
}
