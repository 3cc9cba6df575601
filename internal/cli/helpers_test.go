package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vigil/internal/config"
	"github.com/mrz1836/vigil/internal/explorer"
	"github.com/mrz1836/vigil/internal/output"
)

// BIP84 account 0 key for "abandon abandon ... about".
const testZpub = "zpub6rFR7y4Q2AijBEqTUquhVz398htDFrtymD9xYYfG1m4wAcvPhXNfE3EfH1r1ADqtfSdVCToUG868RvUUkgDKf31mGDtKsAYz2oz2AGutZYs"

const (
	ext0 = "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"
	ext1 = "bc1qnjg0jd8228aq7egyzacy8cys3knf9xvrerkf9g"
)

// day1 is 2024-01-01T00:00:00Z.
const day1 = 1704067200

// fakeExplorer serves the balance, multiaddr and esplora mempool endpoints.
type fakeExplorer struct {
	mu      sync.Mutex
	funded  map[string]int64
	txs     []explorer.Transaction
	pending map[string][]explorer.MempoolTx
	status  int
	calls   map[string]int
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{
		funded:  make(map[string]int64),
		pending: make(map[string][]explorer.MempoolTx),
		calls:   make(map[string]int),
	}
}

func (f *fakeExplorer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[r.URL.Path]++
	if f.status != 0 {
		http.Error(w, "explorer down", f.status)
		return
	}

	var body any
	switch {
	case r.URL.Path == "/balance":
		resp := make(map[string]explorer.AddressBalance)
		for _, a := range strings.Split(r.URL.Query().Get("active"), "|") {
			if bal, ok := f.funded[a]; ok {
				resp[a] = explorer.AddressBalance{FinalBalance: bal, TxCount: 1, TotalReceived: bal}
				continue
			}
			resp[a] = explorer.AddressBalance{}
		}
		body = resp
	case r.URL.Path == "/multiaddr":
		txs := f.txs
		if r.URL.Query().Get("offset") != "0" {
			txs = nil
		}
		body = map[string]any{"txs": txs}
	case strings.HasPrefix(r.URL.Path, "/address/") && strings.HasSuffix(r.URL.Path, "/txs/mempool"):
		addr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/address/"), "/txs/mempool")
		txs := f.pending[addr]
		if txs == nil {
			txs = []explorer.MempoolTx{}
		}
		body = txs
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeExplorer) fund(address string, sats int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funded[address] = sats
}

func (f *fakeExplorer) fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// setupTestEnv points the globals at a temp home with a file store and a
// fake explorer, and restores everything on cleanup.
func setupTestEnv(t *testing.T) (string, *fakeExplorer) {
	t.Helper()

	origCfg, origLogger, origFormatter := cfg, logger, formatter
	t.Cleanup(func() {
		cfg, logger, formatter = origCfg, origLogger, origFormatter
		resetFlags()
	})
	resetFlags()

	fake := newFakeExplorer()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tmpDir := t.TempDir()

	testCfg := config.Defaults()
	testCfg.Home = tmpDir
	testCfg.Wallet.ExternalCount = 5
	testCfg.Wallet.InternalCount = 3
	testCfg.Explorer.BalanceAPI = srv.URL
	testCfg.Explorer.MempoolAPI = srv.URL
	testCfg.Explorer.RatePerSecond = 1000
	testCfg.Explorer.RateBurst = 100
	testCfg.History.RequestDelay = time.Millisecond
	testCfg.Watch.Timezone = "UTC"
	testCfg.Store.Backend = config.StoreFile
	testCfg.Logging.Level = "off"
	cfg = testCfg

	logger = config.NullLogger()
	formatter = output.NewFormatter(output.FormatText, &bytes.Buffer{})

	return tmpDir, fake
}

// useJSON switches the global formatter to JSON.
func useJSON() {
	formatter = output.NewFormatter(output.FormatJSON, &bytes.Buffer{})
}

func resetFlags() {
	generateXpub = ""
	checkAll = false
	balanceRefresh = false
	historyRecent = 0
	historyCached = false
	receiveQR = false
	receiveLabel = ""
	watchInterval = 0
	watchOnce = false
	versionCheck = false
	configForce = false
}

// newTestCmd creates a cobra.Command for run* testing with output capture.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	return cmd, &buf
}

// run invokes a run* function and returns its output.
func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	cmd, buf := newTestCmd()
	err := fn(cmd, args)
	return buf.String(), err
}

// mustRun invokes a run* function that must succeed.
func mustRun(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) string {
	t.Helper()
	out, err := run(t, fn, args...)
	require.NoError(t, err)
	return out
}

// generated runs generate for testZpub.
func generated(t *testing.T) {
	t.Helper()
	generateXpub = testZpub
	defer func() { generateXpub = "" }()
	mustRun(t, runGenerate)
}

// payment is a confirmed transaction paying value to address.
func payment(hash string, ts int64, address string, value int64) explorer.Transaction {
	return explorer.Transaction{
		Hash: hash,
		Time: ts,
		Out:  []explorer.Output{{Addr: address, Value: value}},
	}
}
