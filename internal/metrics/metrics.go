// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Explorer endpoint names used when recording API calls.
const (
	EndpointBalance   = "balance"
	EndpointMultiaddr = "multiaddr"
	EndpointMempool   = "mempool"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Explorer API metrics
	apiCallsTotal   atomic.Int64
	apiErrorsTotal  atomic.Int64
	apiLatencyNanos atomic.Int64
	rateLimitHits   atomic.Int64

	// Per-endpoint calls
	balanceCalls   atomic.Int64
	multiaddrCalls atomic.Int64
	mempoolCalls   atomic.Int64

	// Reconciler metrics
	cyclesTotal  atomic.Int64
	cycleErrors  atomic.Int64
	changesTotal atomic.Int64

	// Store metrics
	storeHits   atomic.Int64
	storeMisses atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordAPICall records an explorer call with its duration and success status.
func (m *Metrics) RecordAPICall(endpoint string, duration time.Duration, err error) {
	m.apiCallsTotal.Add(1)
	m.apiLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.apiErrorsTotal.Add(1)
	}

	switch endpoint {
	case EndpointBalance:
		m.balanceCalls.Add(1)
	case EndpointMultiaddr:
		m.multiaddrCalls.Add(1)
	case EndpointMempool:
		m.mempoolCalls.Add(1)
	}
}

// RecordRateLimited records an HTTP 429 from the explorer.
func (m *Metrics) RecordRateLimited() {
	m.rateLimitHits.Add(1)
}

// RecordCycle records a completed reconciliation cycle and the number of changes it reported.
func (m *Metrics) RecordCycle(changes int, err error) {
	m.cyclesTotal.Add(1)
	m.changesTotal.Add(int64(changes))
	if err != nil {
		m.cycleErrors.Add(1)
	}
}

// RecordStoreHit records a store read that found its key.
func (m *Metrics) RecordStoreHit() {
	m.storeHits.Add(1)
}

// RecordStoreMiss records a store read for an absent key.
func (m *Metrics) RecordStoreMiss() {
	m.storeMisses.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	APICallsTotal   int64 `json:"api_calls_total"`
	APIErrorsTotal  int64 `json:"api_errors_total"`
	APILatencyNanos int64 `json:"api_latency_nanos"`
	RateLimitHits   int64 `json:"rate_limit_hits"`
	BalanceCalls    int64 `json:"balance_calls"`
	MultiaddrCalls  int64 `json:"multiaddr_calls"`
	MempoolCalls    int64 `json:"mempool_calls"`
	CyclesTotal     int64 `json:"cycles_total"`
	CycleErrors     int64 `json:"cycle_errors"`
	ChangesTotal    int64 `json:"changes_total"`
	StoreHits       int64 `json:"store_hits"`
	StoreMisses     int64 `json:"store_misses"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		APICallsTotal:   m.apiCallsTotal.Load(),
		APIErrorsTotal:  m.apiErrorsTotal.Load(),
		APILatencyNanos: m.apiLatencyNanos.Load(),
		RateLimitHits:   m.rateLimitHits.Load(),
		BalanceCalls:    m.balanceCalls.Load(),
		MultiaddrCalls:  m.multiaddrCalls.Load(),
		MempoolCalls:    m.mempoolCalls.Load(),
		CyclesTotal:     m.cyclesTotal.Load(),
		CycleErrors:     m.cycleErrors.Load(),
		ChangesTotal:    m.changesTotal.Load(),
		StoreHits:       m.storeHits.Load(),
		StoreMisses:     m.storeMisses.Load(),
	}
}

// APICallsTotal returns the total number of explorer calls made.
func (m *Metrics) APICallsTotal() int64 {
	return m.apiCallsTotal.Load()
}

// APIErrorsTotal returns the total number of failed explorer calls.
func (m *Metrics) APIErrorsTotal() int64 {
	return m.apiErrorsTotal.Load()
}

// APILatencyAvgMs returns the average explorer latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) APILatencyAvgMs() float64 {
	calls := m.apiCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.apiLatencyNanos.Load()) / float64(calls) / 1e6
}

// StoreHitRate returns the store hit rate as a percentage (0-100).
func (m *Metrics) StoreHitRate() float64 {
	hits := m.storeHits.Load()
	total := hits + m.storeMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.apiCallsTotal, &m.apiErrorsTotal, &m.apiLatencyNanos, &m.rateLimitHits,
		&m.balanceCalls, &m.multiaddrCalls, &m.mempoolCalls,
		&m.cyclesTotal, &m.cycleErrors, &m.changesTotal,
		&m.storeHits, &m.storeMisses,
	} {
		c.Store(0)
	}
}
