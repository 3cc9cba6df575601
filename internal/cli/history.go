package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/output"
	"github.com/mrz1836/vigil/internal/tracker"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	historyRecent int
	historyCached bool
)

// historyCmd aggregates confirmed transaction deltas.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Fetch the net effect of every confirmed transaction",
	Long: `Page through the transactions of every used address, deduplicate them
by hash and store the net satoshi change each one made to the wallet.

Requests are spaced by history.request_delay and rate-limited responses are
retried with a growing delay.

Example:
  vigil history
  vigil history --recent 10
  vigil history --cached -o json`,
	RunE: runHistory,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyRecent, "recent", 0, "show only the N most recent transactions")
	historyCmd.Flags().BoolVar(&historyCached, "cached", false, "show the stored history without fetching")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withCommandContext(cmd, func(cc *CommandContext) error {
		var (
			deltas []tracker.TxDelta
			err    error
		)
		if historyCached {
			deltas, err = cc.Service.Deltas()
		} else {
			cc.Formatter.Noticef("Fetching transaction history...")
			deltas, err = cc.Service.FetchHistory(commandContext(cmd))
		}
		if err != nil {
			return err
		}

		shown := deltas
		if historyRecent > 0 && historyRecent < len(shown) {
			shown = shown[len(shown)-historyRecent:]
		}

		return cc.Formatter.Render(shown, func(w io.Writer) error {
			if len(shown) == 0 {
				outln(w, "No transactions.")
				return nil
			}
			return deltaTable(shown, cc.Formatter.Color(), cc.Clock.Now()).Render(w)
		})
	})
}

// deltaTable lists deltas oldest first with a running balance.
func deltaTable(deltas []tracker.TxDelta, color bool, now time.Time) *output.Table {
	t := output.NewTable("TIME", "TX", "CHANGE", "").AlignRight(2)
	for _, d := range deltas {
		t.AddRow(
			time.Unix(d.Timestamp, 0).UTC().Format("2006-01-02 15:04"),
			d.TxHash,
			output.SignedSats(d.NetSatoshis, color),
			output.Ago(d.Timestamp, now),
		)
	}
	return t
}
