package cli

import (
	"io"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/tracker"
	"github.com/mrz1836/vigil/internal/wallet"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// addressesCmd lists the generated addresses with their last known status.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var addressesCmd = &cobra.Command{
	Use:   "addresses [external|internal]",
	Short: "List generated addresses and their scan status",
	Long: `List the generated addresses of one branch, or both when no branch is
given, joined with the status recorded by the last check.

Example:
  vigil addresses
  vigil addresses internal
  vigil addresses external -o json`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"external", "internal"},
	RunE:      runAddresses,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(addressesCmd)
}

func runAddresses(cmd *cobra.Command, args []string) error {
	branches := wallet.Branches()
	if len(args) == 1 {
		b, err := parseBranchArg(args[0])
		if err != nil {
			return err
		}
		branches = []wallet.Branch{b}
	}

	return withCommandContext(cmd, func(cc *CommandContext) error {
		statuses, err := cc.Service.Statuses()
		if err != nil {
			return err
		}
		byAddress := make(map[string]tracker.AddressStatus, len(statuses))
		for _, s := range statuses {
			byAddress[s.Address] = s
		}

		var rows []tracker.AddressStatus
		for _, b := range branches {
			addrs, err := cc.Service.Addresses(b)
			if err != nil {
				return err
			}
			for _, a := range addrs {
				st, ok := byAddress[a.Address]
				if !ok {
					st = tracker.AddressStatus{Path: a.Path, Address: a.Address}
				}
				rows = append(rows, st)
			}
		}
		if len(rows) == 0 {
			return vigilerr.Input("no addresses generated", "run: vigil generate --xpub <zpub>")
		}

		return cc.Formatter.Render(rows, func(w io.Writer) error {
			if len(statuses) == 0 {
				outln(w, "Not scanned yet; run vigil check for usage and balances.")
				outln(w)
			}
			return statusTable(rows).Render(w)
		})
	})
}

// parseBranchArg parses a branch name and suggests the closest one on a typo.
func parseBranchArg(s string) (wallet.Branch, error) {
	b, err := wallet.ParseBranch(s)
	if err == nil {
		return b, nil
	}

	best, bestDist := "", 3
	for _, name := range []string{"external", "internal", "receive", "change"} {
		if d := levenshtein.ComputeDistance(s, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	suggestion := "use external or internal"
	if best != "" {
		suggestion = "did you mean " + best + "?"
	}
	return 0, vigilerr.WithSuggestion(vigilerr.WithCause(vigilerr.ErrInput, err), suggestion)
}
