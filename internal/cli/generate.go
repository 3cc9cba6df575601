package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/wallet"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var generateXpub string

// generateCmd derives and stores the watched addresses.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Derive receive and change addresses from an extended public key",
	Long: `Derive the receive (m/0/i) and change (m/1/i) addresses of an
account-level extended public key and store them for scanning.

The key's version selects the address type: xpub for legacy, ypub for
nested segwit and zpub for native segwit. Generating from a different key
clears every record derived from the previous one.

When --xpub is omitted, wallet.xpub from the config (or VIGIL_XPUB) is used.

Example:
  vigil generate --xpub zpub6rFR7y4Q2AijBEqTUquhVz398htDFrtymD9xYYfG1m4wAcvPhXNfE3EfH1r1ADqtfSdVCToUG868RvUUkgDKf31mGDtKsAYz2oz2AGutZYs
  VIGIL_XPUB=zpub6r... vigil generate`,
	RunE: runGenerate,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&generateXpub, "xpub", "", "account-level xpub, ypub or zpub")
}

type generateView struct {
	ScriptType   string `json:"script_type"`
	Key          string `json:"key"`
	External     int    `json:"external"`
	Internal     int    `json:"internal"`
	FirstAddress string `json:"first_address,omitempty"`
	Replaced     bool   `json:"replaced"`
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	xpub := strings.TrimSpace(generateXpub)
	if xpub == "" {
		xpub = cfg.Wallet.Xpub
	}
	if xpub == "" {
		return vigilerr.Input("no extended public key given", "run: vigil generate --xpub <zpub>")
	}

	return withCommandContext(cmd, func(cc *CommandContext) error {
		res, err := cc.Service.Generate(xpub)
		if err != nil {
			return err
		}

		view := generateView{
			ScriptType: res.ScriptType.String(),
			Key:        wallet.Redact(xpub),
			External:   len(res.External),
			Internal:   len(res.Internal),
			Replaced:   res.Replaced,
		}
		if len(res.External) > 0 {
			view.FirstAddress = res.External[0].Address
		}

		return cc.Formatter.Render(view, func(w io.Writer) error {
			out(w, "Generated %d receive and %d change addresses (%s) for %s\n",
				view.External, view.Internal, view.ScriptType, view.Key)
			if view.FirstAddress != "" {
				out(w, "First receive address: %s\n", view.FirstAddress)
			}
			if view.Replaced {
				outln(w, "A different key was stored before; its balances and history were cleared.")
			}
			outln(w, "Next: vigil check")
			return nil
		})
	})
}
