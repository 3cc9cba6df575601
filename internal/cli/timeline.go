package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/output"
)

// timelineCmd folds the stored history into end-of-day balances.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Build the daily balance timeline from the stored history",
	Long: `Fold the stored transaction deltas, oldest first, into a running balance
and keep the last value of each UTC calendar day.

Days are keyed in UTC; the time column is shown in watch.timezone.

Example:
  vigil timeline
  vigil timeline -o json`,
	RunE: runTimeline,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, _ []string) error {
	return withCommandContext(cmd, func(cc *CommandContext) error {
		timeline, err := cc.Service.BuildTimeline()
		if err != nil {
			return err
		}

		return cc.Formatter.Render(timeline, func(w io.Writer) error {
			t := output.NewTable("DATE", "BALANCE", "LAST ACTIVITY").AlignRight(1)
			for _, day := range timeline {
				t.AddRow(day.DateKey, output.BTC(day.RunningBalance), day.LocalDisplayTime)
			}
			return t.Render(w)
		})
	})
}
