package cli

import (
	"github.com/lightningnetwork/lnd/clock"
	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/chain"
	"github.com/mrz1836/vigil/internal/config"
	"github.com/mrz1836/vigil/internal/explorer"
	"github.com/mrz1836/vigil/internal/metrics"
	"github.com/mrz1836/vigil/internal/output"
	"github.com/mrz1836/vigil/internal/store"
	"github.com/mrz1836/vigil/internal/tracker"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *config.Logger
	Formatter *output.Formatter
	Store     store.Store
	Service   *tracker.Service
	Metrics   *metrics.Metrics
	Clock     clock.Clock
}

// NewCommandContext opens the configured store and wires the tracker
// service over the explorer clients. Close releases the store.
func NewCommandContext(c *config.Config, l *config.Logger, f *output.Formatter) (*CommandContext, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	s, err := store.Open(c, l)
	if err != nil {
		return nil, err
	}

	clk := clock.NewDefaultClock()
	m := metrics.Global
	limiter := chain.NewRateLimiter(c.Explorer.RatePerSecond, c.Explorer.RateBurst)

	balances := explorer.NewClient(&explorer.Options{
		BaseURL: c.Explorer.BalanceAPI,
		Timeout: c.Explorer.Timeout,
		Limiter: limiter,
		Logger:  l,
		Metrics: m,
	})
	mempool := explorer.NewMempoolClient(&explorer.Options{
		BaseURL: c.Explorer.MempoolAPI,
		Timeout: c.Explorer.MempoolTimeout,
		Limiter: limiter,
		Logger:  l,
		Metrics: m,
	})

	svc := tracker.NewService(tracker.ServiceOptions{
		Store: s,
		Scanner: tracker.NewScanner(balances, &tracker.ScannerOptions{
			GapLimit:   c.Scan.GapLimit,
			BatchSize:  c.Scan.BatchSize,
			MaxRetries: c.Scan.MaxRetries,
			RetryDelay: c.Scan.RetryDelay,
			Logger:     l,
		}),
		Aggregator: tracker.NewAggregator(balances, &tracker.AggregatorOptions{
			BatchSize:    c.History.BatchSize,
			PageSize:     c.History.PageSize,
			RequestDelay: c.History.RequestDelay,
			MaxRetries:   c.History.MaxRetries,
			Logger:       l,
		}),
		Prober: tracker.NewProber(mempool, &tracker.ProberOptions{
			Lookahead: c.Watch.Lookahead,
			Clock:     clk,
			Logger:    l,
		}),
		ExternalCount: c.Wallet.ExternalCount,
		InternalCount: c.Wallet.InternalCount,
		Location:      loc,
		Logger:        l,
		Metrics:       m,
	})

	return &CommandContext{
		Config:    c,
		Logger:    l,
		Formatter: f,
		Store:     s,
		Service:   svc,
		Metrics:   m,
		Clock:     clk,
	}, nil
}

// Close releases the store.
func (c *CommandContext) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// withCommandContext builds a context whose formatter writes to the
// command's output, runs fn and closes the store.
func withCommandContext(cmd *cobra.Command, fn func(cc *CommandContext) error) error {
	cc, err := NewCommandContext(cfg, logger, commandFormatter(cmd))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cc.Close(); cerr != nil {
			logger.Error("closing store: %v", cerr)
		}
	}()
	return fn(cc)
}

// commandFormatter returns a formatter with the global format and color
// settings writing to cmd's output stream.
func commandFormatter(cmd *cobra.Command) *output.Formatter {
	f := output.NewFormatter(formatter.Format(), cmd.OutOrStdout())
	f.SetColor(formatter.Color())
	return f
}
