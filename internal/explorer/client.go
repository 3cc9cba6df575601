// Package explorer provides HTTP clients for the block explorer APIs the
// tracker reads: batched balances and paginated transaction listings from a
// blockchain.info-compatible endpoint, and per-address mempool listings from
// an esplora-compatible endpoint.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mrz1836/vigil/internal/chain"
	"github.com/mrz1836/vigil/internal/metrics"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

const (
	// MaxBatchSize is the most addresses the balance and multiaddr endpoints accept per call.
	MaxBatchSize = 100

	// defaultTimeout is the default HTTP request timeout.
	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept for details.
	maxErrorBody = 256
)

// Logger is the logging surface explorer clients need.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Options configures an explorer client.
type Options struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// Limiter paces requests per endpoint. Defaults to chain.DefaultRateLimiter.
	Limiter *chain.RateLimiter

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	Logger  Logger
	Metrics *metrics.Metrics
}

// transport is the request plumbing shared by both clients.
type transport struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *chain.RateLimiter
	logger     Logger
	metrics    *metrics.Metrics
}

func newTransport(opts *Options, defaultBase string, timeout time.Duration) transport {
	t := transport{
		baseURL: defaultBase,
		timeout: timeout,
		limiter: chain.DefaultRateLimiter(),
		logger:  nopLogger{},
		metrics: metrics.Global,
	}

	if opts == nil {
		opts = &Options{}
	}
	if opts.BaseURL != "" {
		t.baseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		t.timeout = opts.Timeout
	}
	if opts.Limiter != nil {
		t.limiter = opts.Limiter
	}
	if opts.Logger != nil {
		t.logger = opts.Logger
	}
	if opts.Metrics != nil {
		t.metrics = opts.Metrics
	}

	t.httpClient = opts.HTTPClient
	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: t.timeout}
	}

	return t
}

// getJSON performs a paced GET and decodes a JSON body into v.
func (t transport) getJSON(ctx context.Context, endpoint, url string, v any) error {
	if err := t.wait(ctx, endpoint); err != nil {
		return err
	}
	return t.fetch(ctx, endpoint, url, v)
}

// wait blocks on the endpoint's limiter. Queueing for a token is bounded only by ctx,
// never by the per-request timeout.
func (t transport) wait(ctx context.Context, endpoint string) error {
	if err := t.limiter.Wait(ctx, endpoint); err != nil {
		return vigilerr.WithCause(
			vigilerr.WithDetails(vigilerr.ErrNetwork, map[string]string{"endpoint": endpoint, "reason": "rate limiter"}),
			err,
		)
	}
	return nil
}

// fetch performs one timed GET without pacing.
// Status mapping: 429 -> ErrRateLimited, 404 -> ErrNotFound, other non-2xx -> ErrAPI,
// transport failure -> ErrNetwork.
func (t transport) fetch(ctx context.Context, endpoint, url string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	err := t.do(ctx, endpoint, url, v)
	t.metrics.RecordAPICall(endpoint, time.Since(start), err)

	if err != nil {
		if vigilerr.Is(err, vigilerr.ErrRateLimited) {
			t.metrics.RecordRateLimited()
		}
		t.logger.Debug("explorer %s failed: %v", endpoint, err)
		return err
	}

	t.logger.Debug("explorer %s ok in %s", endpoint, time.Since(start).Round(time.Millisecond))
	return nil
}

func (t transport) do(ctx context.Context, endpoint, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		details := map[string]string{"endpoint": endpoint}
		if isTimeout(err) {
			details["reason"] = "timeout"
		}
		return vigilerr.WithCause(vigilerr.WithDetails(vigilerr.ErrNetwork, details), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(endpoint, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return vigilerr.WithCause(
			vigilerr.WithDetails(vigilerr.ErrAPI, map[string]string{
				"endpoint": endpoint,
				"reason":   "malformed response",
			}),
			err,
		)
	}

	return nil
}

func statusError(endpoint string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	details := map[string]string{
		"endpoint": endpoint,
		"status":   strconv.Itoa(resp.StatusCode),
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := chain.ParseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
			details["retry_after"] = ra.String()
		}
		return vigilerr.WithDetails(vigilerr.ErrRateLimited, details)
	}

	if resp.StatusCode == http.StatusNotFound {
		return vigilerr.WithDetails(vigilerr.ErrNotFound, details)
	}

	if len(body) > 0 {
		details["body"] = string(body)
	}
	return vigilerr.WithDetails(vigilerr.ErrAPI, details)
}

// isTimeout reports whether err came from a request deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
