package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/output"
	"github.com/mrz1836/vigil/internal/tracker"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var checkAll bool

// checkCmd scans both branches for used addresses.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan the generated addresses for usage and balances",
	Long: `Query the explorer in batches for every generated address, stopping
each branch after 5 consecutive unused addresses (scan.gap_limit), then
store the statuses and the confirmed total.

Addresses past the gap are recorded as unused without being queried.

Example:
  vigil check
  vigil check --all -o json`,
	RunE: runCheck,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkAll, "all", false, "list unused addresses too")
}

type checkView struct {
	Total    tracker.TotalBalance    `json:"total"`
	Scanned  int                     `json:"scanned"`
	Implicit int                     `json:"implicit"`
	Used     int                     `json:"used"`
	Batches  int                     `json:"batches"`
	Statuses []tracker.AddressStatus `json:"statuses"`
}

func runCheck(cmd *cobra.Command, _ []string) error {
	return withCommandContext(cmd, func(cc *CommandContext) error {
		cc.Formatter.Noticef("Scanning addresses...")

		res, err := cc.Service.Check(commandContext(cmd))
		if err != nil {
			return err
		}
		total, err := cc.Service.ComputeTotal()
		if err != nil {
			return err
		}

		statuses := res.Statuses()
		view := checkView{
			Total:    total,
			Scanned:  res.External.Scanned + res.Internal.Scanned,
			Implicit: res.External.Implicit + res.Internal.Implicit,
			Used:     len(tracker.UsedAddresses(statuses)),
			Batches:  res.External.Batches + res.Internal.Batches,
			Statuses: statuses,
		}
		if !checkAll {
			view.Statuses = usedStatuses(statuses)
		}

		return cc.Formatter.Render(view, func(w io.Writer) error {
			out(w, "Queried %d addresses in %d requests, %d used, %d skipped past the gap limit\n",
				view.Scanned, view.Batches, view.Used, view.Implicit)
			if len(view.Statuses) > 0 {
				outln(w)
				if err := statusTable(view.Statuses).Render(w); err != nil {
					return err
				}
			}
			outln(w)
			out(w, "Confirmed balance: %s\n", output.BTC(total.Satoshi))
			return nil
		})
	})
}

func usedStatuses(statuses []tracker.AddressStatus) []tracker.AddressStatus {
	used := make([]tracker.AddressStatus, 0, len(statuses))
	for _, s := range statuses {
		if s.Used {
			used = append(used, s)
		}
	}
	return used
}

// statusTable lists statuses with path, address, tx count and balance.
func statusTable(statuses []tracker.AddressStatus) *output.Table {
	t := output.NewTable("PATH", "ADDRESS", "TXS", "BALANCE", "").AlignRight(2, 3)
	for _, s := range statuses {
		note := ""
		switch {
		case s.Implicit:
			note = "not queried"
		case s.Used:
			note = "used"
		}
		t.AddRow(s.Path, s.Address, strconv.Itoa(s.TxCount), output.Sats(s.Balance), note)
	}
	return t
}
