package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/output"
	"github.com/mrz1836/vigil/internal/tracker"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var balanceRefresh bool

// balanceCmd shows the confirmed total and pending activity.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the confirmed balance and pending activity",
	Long: `Sum the stored address balances into the confirmed total and show it
with the last observed mempool activity.

With --refresh the addresses are scanned and the mempool is probed first.

Example:
  vigil balance
  vigil balance --refresh -o json`,
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().BoolVar(&balanceRefresh, "refresh", false, "scan addresses and probe the mempool first")
}

func runBalance(cmd *cobra.Command, _ []string) error {
	return withCommandContext(cmd, func(cc *CommandContext) error {
		ctx := commandContext(cmd)

		if balanceRefresh {
			cc.Formatter.Noticef("Scanning addresses...")
			if _, err := cc.Service.Check(ctx); err != nil {
				return err
			}
		}
		if _, err := cc.Service.ComputeTotal(); err != nil {
			return err
		}
		if balanceRefresh {
			if res := cc.Service.ProbeMempool(ctx); res.Err != nil {
				cc.Logger.Error("mempool probe: %v", res.Err)
				cc.Formatter.Noticef("Mempool unavailable, showing last known pending activity")
			}
		}

		sum, err := cc.Service.Summary()
		if err != nil {
			return err
		}

		return cc.Formatter.Render(sum, func(w io.Writer) error {
			return displaySummary(w, sum, cc.Formatter.Color())
		})
	})
}

func displaySummary(w io.Writer, sum *tracker.Summary, color bool) error {
	out(w, "Confirmed: %s (%s)\n", output.BTC(sum.Confirmed.Satoshi), output.Sats(sum.Confirmed.Satoshi))
	if sum.PendingTxs > 0 {
		out(w, "Pending:   %s in %d unconfirmed transaction(s)\n", output.SignedBTC(sum.Pending, color), sum.PendingTxs)
	} else {
		outln(w, "Pending:   none")
	}
	out(w, "Addresses: %d scanned, %d used", sum.Addresses, sum.UsedAddresses)
	if sum.Implicit > 0 {
		out(w, ", %d past the gap limit", sum.Implicit)
	}
	outln(w)
	if sum.Transactions > 0 {
		out(w, "History:   %d transactions", sum.Transactions)
		if sum.LastDay != nil {
			out(w, ", last active %s", sum.LastDay.DateKey)
		}
		outln(w)
	}
	return nil
}
