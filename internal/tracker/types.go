// Package tracker implements address-usage discovery and balance
// reconciliation for a watch-only wallet: the gap-limited scanner, the
// transaction history aggregator, the daily balance timeline, the mempool
// prober and the polling reconciler that ties them together.
package tracker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mrz1836/vigil/internal/chain"
	"github.com/mrz1836/vigil/internal/explorer"
)

// AddressStatus is the usage and confirmed balance of one derived address.
type AddressStatus struct {
	Path    string `json:"path"`
	Address string `json:"address"`
	Used    bool   `json:"used"`
	Balance int64  `json:"balance"`
	TxCount int    `json:"n_tx"`

	// Implicit marks an address the scanner never queried because the gap limit was reached.
	Implicit bool `json:"implicit,omitempty"`
}

// TotalBalance is the confirmed balance summed over every address status.
type TotalBalance struct {
	Satoshi int64           `json:"satoshi"`
	BTC     decimal.Decimal `json:"btc"`
}

// NewTotalBalance builds a TotalBalance from satoshis.
func NewTotalBalance(sats int64) TotalBalance {
	return TotalBalance{Satoshi: sats, BTC: chain.SatoshisToBTC(sats)}
}

// TxDelta is the net effect of one confirmed transaction on the watched set.
type TxDelta struct {
	TxHash      string `json:"tx_hash"`
	Timestamp   int64  `json:"ts"`
	NetSatoshis int64  `json:"d"`
}

// DailyBalance is the running balance at the end of one UTC calendar day.
type DailyBalance struct {
	DateKey          string `json:"date"`
	RunningBalance   int64  `json:"balance"`
	LastTimestamp    int64  `json:"ts"`
	LocalDisplayTime string `json:"local"`
}

// MempoolDelta is the net effect of one unconfirmed transaction.
type MempoolDelta struct {
	TxID        string `json:"txid"`
	NetSatoshis int64  `json:"d"`
	ObservedAt  int64  `json:"ts"`
	Mempool     bool   `json:"mempool"`
}

// MempoolTotal is the pending net amount across all probed addresses.
type MempoolTotal struct {
	TotalSatoshi int64 `json:"total_sat"`
	ObservedAt   int64 `json:"time"`
}

// Snapshot is the address statuses and total balance at one point in time.
type Snapshot struct {
	Statuses []AddressStatus `json:"statuses"`
	Total    int64           `json:"total"`
}

// BalanceFetcher returns usage and balance for at most explorer.MaxBatchSize addresses.
type BalanceFetcher interface {
	FetchBalances(ctx context.Context, addresses []string) (map[string]explorer.AddressBalance, error)
}

// TransactionLister returns one page of confirmed transactions for a batch of addresses.
type TransactionLister interface {
	FetchTransactions(ctx context.Context, addresses []string, limit, offset int) ([]explorer.Transaction, error)
}

// MempoolLister returns the unconfirmed transactions touching one address.
type MempoolLister interface {
	FetchMempool(ctx context.Context, address string) ([]explorer.MempoolTx, error)
}

// Logger is the logging surface tracker components need.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// SumBalances totals the confirmed balance of statuses.
func SumBalances(statuses []AddressStatus) int64 {
	var total int64
	for _, s := range statuses {
		total += s.Balance
	}
	return total
}

// UsedAddresses returns the addresses marked used, in status order.
func UsedAddresses(statuses []AddressStatus) []string {
	var used []string
	for _, s := range statuses {
		if s.Used {
			used = append(used, s.Address)
		}
	}
	return used
}
