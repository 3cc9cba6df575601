package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/output"
	"github.com/mrz1836/vigil/internal/tracker"
)

// mempoolCmd probes the address frontier for unconfirmed transactions.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var mempoolCmd = &cobra.Command{
	Use:   "mempool",
	Short: "Probe recent addresses for unconfirmed transactions",
	Long: `Query the mempool for the last used address of each branch, the next
addresses after it (watch.lookahead) and every address holding a balance.

If any query fails, the previously stored result is shown instead.

Example:
  vigil mempool
  vigil mempool -o json`,
	RunE: runMempool,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(mempoolCmd)
}

type mempoolView struct {
	Outcome  string                 `json:"outcome"`
	Frontier []string               `json:"frontier"`
	Total    tracker.MempoolTotal   `json:"total"`
	Deltas   []tracker.MempoolDelta `json:"deltas"`
	Error    string                 `json:"error,omitempty"`
}

func runMempool(cmd *cobra.Command, _ []string) error {
	return withCommandContext(cmd, func(cc *CommandContext) error {
		res := cc.Service.ProbeMempool(commandContext(cmd))
		if tracker.IsInputError(res.Err) {
			return res.Err
		}

		view := mempoolView{
			Outcome:  res.Outcome.String(),
			Frontier: res.Frontier,
			Total:    res.Result.Total,
			Deltas:   res.Result.Deltas,
		}
		if res.Err != nil {
			cc.Logger.Error("mempool probe: %v", res.Err)
			view.Error = res.Err.Error()
		}

		return cc.Formatter.Render(view, func(w io.Writer) error {
			if res.Err != nil {
				out(w, "Mempool query failed, showing the last result: %v\n", res.Err)
			}
			if len(view.Deltas) == 0 {
				out(w, "No unconfirmed transactions across %d probed addresses.\n", len(view.Frontier))
				return nil
			}

			t := output.NewTable("TXID", "CHANGE").AlignRight(1)
			for _, d := range view.Deltas {
				t.AddRow(d.TxID, output.SignedSats(d.NetSatoshis, cc.Formatter.Color()))
			}
			if err := t.Render(w); err != nil {
				return err
			}
			out(w, "\nPending total: %s (observed %s)\n",
				output.SignedBTC(view.Total.TotalSatoshi, cc.Formatter.Color()),
				output.Ago(view.Total.ObservedAt, cc.Clock.Now()))
			return nil
		})
	})
}
