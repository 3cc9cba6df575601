package explorer_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vigil/internal/chain"
	"github.com/mrz1836/vigil/internal/explorer"
	"github.com/mrz1836/vigil/internal/metrics"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*explorer.Client, *metrics.Metrics) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m := &metrics.Metrics{}
	return explorer.NewClient(&explorer.Options{
		BaseURL: server.URL,
		Limiter: chain.NewRateLimiter(1000, 100),
		Metrics: m,
	}), m
}

func TestFetchBalances(t *testing.T) {
	t.Parallel()

	var gotPath, gotActive, gotCors string
	client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotActive = r.URL.Query().Get("active")
		gotCors = r.URL.Query().Get("cors")
		_, _ = fmt.Fprint(w, `{
			"bc1qa": {"final_balance": 5000, "n_tx": 2, "total_received": 9000},
			"bc1qb": {"final_balance": 0, "n_tx": 0, "total_received": 0}
		}`)
	})

	balances, err := client.FetchBalances(context.Background(), []string{"bc1qa", "bc1qb"})
	require.NoError(t, err)

	assert.Equal(t, "/balance", gotPath)
	assert.Equal(t, "bc1qa|bc1qb", gotActive)
	assert.Equal(t, "true", gotCors)

	require.Len(t, balances, 2)
	assert.Equal(t, int64(5000), balances["bc1qa"].FinalBalance)
	assert.Equal(t, 2, balances["bc1qa"].TxCount)
	assert.True(t, balances["bc1qa"].Used())
	assert.False(t, balances["bc1qb"].Used())

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.BalanceCalls)
	assert.Equal(t, int64(0), snap.APIErrorsTotal)
}

func TestFetchBalancesBatchTooLarge(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = fmt.Fprint(w, `{}`)
	})

	addrs := make([]string, explorer.MaxBatchSize+1)
	for i := range addrs {
		addrs[i] = "addr" + strconv.Itoa(i)
	}

	_, err := client.FetchBalances(context.Background(), addrs)
	require.ErrorIs(t, err, vigilerr.ErrBatchTooLarge)
	assert.Equal(t, int32(0), calls.Load())

	_, err = client.FetchTransactions(context.Background(), addrs, 100, 0)
	require.ErrorIs(t, err, vigilerr.ErrBatchTooLarge)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchBalancesEmpty(t *testing.T) {
	t.Parallel()

	client, m := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	balances, err := client.FetchBalances(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, balances)
	assert.Equal(t, int64(0), m.APICallsTotal())
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{"rate limited", http.StatusTooManyRequests, vigilerr.ErrRateLimited},
		{"server error", http.StatusInternalServerError, vigilerr.ErrAPI},
		{"bad request", http.StatusBadRequest, vigilerr.ErrAPI},
		{"not found", http.StatusNotFound, vigilerr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, m := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, "Invalid Bitcoin Address")
			})

			_, err := client.FetchBalances(context.Background(), []string{"bc1qa"})
			require.ErrorIs(t, err, tt.expected)
			assert.Contains(t, err.Error(), strconv.Itoa(tt.status))
			assert.Equal(t, int64(1), m.APIErrorsTotal())

			if tt.status == http.StatusTooManyRequests {
				assert.Equal(t, int64(1), m.Snapshot().RateLimitHits)
				assert.Contains(t, err.Error(), "retry_after: 2s")
				assert.True(t, chain.IsRetryable(err))
			} else {
				assert.False(t, chain.IsRetryable(err))
			}
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"bc1qa": `)
	})

	_, err := client.FetchBalances(context.Background(), []string{"bc1qa"})
	require.ErrorIs(t, err, vigilerr.ErrAPI)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := server.URL
	server.Close()

	client := explorer.NewClient(&explorer.Options{BaseURL: base, Limiter: chain.NewRateLimiter(1000, 100)})
	_, err := client.FetchBalances(context.Background(), []string{"bc1qa"})
	require.ErrorIs(t, err, vigilerr.ErrNetwork)
	assert.Equal(t, vigilerr.ExitNetwork, vigilerr.ExitCode(err))
	assert.NotContains(t, err.Error(), "timeout")
}

func TestNotFoundSuggestsBaseURL(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	_, err := client.FetchBalances(context.Background(), []string{"bc1qa"})
	require.ErrorIs(t, err, vigilerr.ErrNotFound)
	assert.Equal(t, vigilerr.ExitNotFound, vigilerr.ExitCode(err))

	var ve *vigilerr.VigilError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Suggestion, "explorer.balance_api")
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client := explorer.NewClient(&explorer.Options{
		BaseURL: server.URL,
		Timeout: 50 * time.Millisecond,
		Limiter: chain.NewRateLimiter(1000, 100),
	})

	_, err := client.FetchBalances(context.Background(), []string{"bc1qa"})
	require.ErrorIs(t, err, vigilerr.ErrNetwork)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "reason: timeout")
}

func TestFetchTransactions(t *testing.T) {
	t.Parallel()

	var query string
	client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/multiaddr", r.URL.Path)
		query = r.URL.RawQuery
		q := r.URL.Query()
		assert.Equal(t, "bc1qa|bc1qb", q.Get("active"))
		assert.Equal(t, "100", q.Get("n"))
		assert.Equal(t, "200", q.Get("offset"))
		_, _ = fmt.Fprint(w, `{"txs": [{
			"hash": "t1",
			"time": 1700000000,
			"out": [{"addr": "bc1qa", "value": 500}, {"addr": "bc1qother", "value": 100}],
			"inputs": [{"prev_out": {"addr": "bc1qb", "value": 700}}, {}]
		}]}`)
	})

	txs, err := client.FetchTransactions(context.Background(), []string{"bc1qa", "bc1qb"}, 100, 200)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.NotEmpty(t, query)

	tx := txs[0]
	assert.Equal(t, "t1", tx.Hash)
	assert.Equal(t, int64(1700000000), tx.Time)
	require.Len(t, tx.Out, 2)
	assert.Equal(t, int64(500), tx.Out[0].Value)
	require.Len(t, tx.Inputs, 2)
	require.NotNil(t, tx.Inputs[0].PrevOut)
	assert.Equal(t, "bc1qb", tx.Inputs[0].PrevOut.Addr)
	assert.Nil(t, tx.Inputs[1].PrevOut)

	assert.Equal(t, int64(1), m.Snapshot().MultiaddrCalls)
}

func TestDefaultBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://blockchain.info", explorer.NewClient(nil).BaseURL())
	assert.Equal(t, "https://blockstream.info/api", explorer.NewMempoolClient(nil).BaseURL())
	assert.True(t, strings.HasPrefix(explorer.NewClient(&explorer.Options{BaseURL: "http://x"}).BaseURL(), "http://x"))
}
