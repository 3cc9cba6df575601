package explorer

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/mrz1836/vigil/internal/config"
	"github.com/mrz1836/vigil/internal/metrics"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// AddressBalance is one entry of the batched balance response.
type AddressBalance struct {
	FinalBalance  int64 `json:"final_balance"`
	TxCount       int   `json:"n_tx"`
	TotalReceived int64 `json:"total_received"`
}

// Used reports whether the address has ever been used.
func (b AddressBalance) Used() bool {
	return b.TxCount > 0 || b.FinalBalance > 0
}

// Input is a transaction input with its spent previous output.
type Input struct {
	PrevOut *Output `json:"prev_out"`
}

// Output is a transaction output paying an address.
type Output struct {
	Addr  string `json:"addr"`
	Value int64  `json:"value"`
}

// Transaction is one entry of the multiaddr transaction listing.
type Transaction struct {
	Hash   string   `json:"hash"`
	Time   int64    `json:"time"`
	Out    []Output `json:"out"`
	Inputs []Input  `json:"inputs"`
}

type multiaddrResponse struct {
	Txs []Transaction `json:"txs"`
}

// Client talks to a blockchain.info-compatible explorer.
type Client struct {
	transport
}

// NewClient creates a balance/history client.
func NewClient(opts *Options) *Client {
	return &Client{transport: newTransport(opts, config.DefaultBalanceAPI, defaultTimeout)}
}

// BaseURL returns the API root the client queries.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchBalances returns usage and final balance for up to MaxBatchSize addresses.
// Addresses the explorer omits are absent from the result.
func (c *Client) FetchBalances(ctx context.Context, addresses []string) (map[string]AddressBalance, error) {
	if err := checkBatch(addresses); err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return map[string]AddressBalance{}, nil
	}

	q := url.Values{}
	q.Set("active", strings.Join(addresses, "|"))
	q.Set("cors", "true")

	result := make(map[string]AddressBalance, len(addresses))
	if err := c.getJSON(ctx, metrics.EndpointBalance, c.baseURL+"/balance?"+q.Encode(), &result); err != nil {
		return nil, err
	}

	return result, nil
}

// FetchTransactions returns one page of transactions touching any of the addresses.
// A page shorter than limit is the last one.
func (c *Client) FetchTransactions(ctx context.Context, addresses []string, limit, offset int) ([]Transaction, error) {
	if err := checkBatch(addresses); err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("active", strings.Join(addresses, "|"))
	q.Set("n", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("cors", "true")

	var resp multiaddrResponse
	if err := c.getJSON(ctx, metrics.EndpointMultiaddr, c.baseURL+"/multiaddr?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	return resp.Txs, nil
}

func checkBatch(addresses []string) error {
	if len(addresses) > MaxBatchSize {
		return vigilerr.WithDetails(vigilerr.ErrBatchTooLarge, map[string]string{
			"count": strconv.Itoa(len(addresses)),
			"max":   strconv.Itoa(MaxBatchSize),
		})
	}
	return nil
}
