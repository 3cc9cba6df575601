package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mrz1836/vigil/internal/config"
	"github.com/mrz1836/vigil/internal/metrics"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

const (
	// defaultMempoolTimeout bounds a single mempool listing request.
	defaultMempoolTimeout = 5 * time.Second

	// breakerTrips is the number of consecutive failures that opens the breaker.
	breakerTrips = 5

	// breakerCooldown is how long the breaker stays open before probing again.
	breakerCooldown = 30 * time.Second
)

// MempoolOutput is an esplora output or previous output.
type MempoolOutput struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// MempoolInput is an esplora input.
type MempoolInput struct {
	Prevout *MempoolOutput `json:"prevout"`
}

// MempoolTx is an unconfirmed transaction from the esplora mempool listing.
type MempoolTx struct {
	TxID string          `json:"txid"`
	Vin  []MempoolInput  `json:"vin"`
	Vout []MempoolOutput `json:"vout"`
}

// MempoolClient talks to an esplora-compatible explorer.
// Requests go through a circuit breaker so a dead endpoint stops being hammered every cycle.
type MempoolClient struct {
	transport
	breaker *gobreaker.CircuitBreaker
}

// NewMempoolClient creates a mempool client. Timeout defaults to 5s.
func NewMempoolClient(opts *Options) *MempoolClient {
	c := &MempoolClient{transport: newTransport(opts, config.DefaultMempoolAPI, defaultMempoolTimeout)}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "esplora-mempool",
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the endpoint's health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Error("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return c
}

// BaseURL returns the API root the client queries.
func (c *MempoolClient) BaseURL() string {
	return c.baseURL
}

// BreakerState returns the circuit breaker state name.
func (c *MempoolClient) BreakerState() string {
	return c.breaker.State().String()
}

// FetchMempool lists unconfirmed transactions touching address.
// The timeout starts once the limiter grants a token; time spent queued is bounded only by ctx
// and never counts against the breaker.
func (c *MempoolClient) FetchMempool(ctx context.Context, address string) ([]MempoolTx, error) {
	if err := c.wait(ctx, metrics.EndpointMempool); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/address/%s/txs/mempool", c.baseURL, url.PathEscape(address))

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var txs []MempoolTx
		if err := c.fetch(ctx, metrics.EndpointMempool, endpoint, &txs); err != nil {
			return nil, err
		}
		return txs, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, vigilerr.WithCause(
				vigilerr.WithDetails(vigilerr.ErrNetwork, map[string]string{"endpoint": metrics.EndpointMempool}),
				err,
			)
		}
		return nil, err
	}

	txs, _ := res.([]MempoolTx)
	return txs, nil
}
