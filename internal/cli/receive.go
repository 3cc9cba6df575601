package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	receiveQR    bool
	receiveLabel string
)

// receiveCmd shows the next unused receive address.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Show the next unused receive address",
	Long: `Show the first external address the last check found unused, as a
plain address and a BIP21 payment URI. Before any check this is the
first generated address.

Example:
  vigil receive
  vigil receive --qr --label "invoice 42"`,
	RunE: runReceive,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().BoolVar(&receiveQR, "qr", false, "draw the payment URI as a QR code")
	receiveCmd.Flags().StringVar(&receiveLabel, "label", "", "label added to the payment URI")
}

type receiveView struct {
	Address string `json:"address"`
	Path    string `json:"path"`
	URI     string `json:"uri"`
}

func runReceive(cmd *cobra.Command, _ []string) error {
	return withCommandContext(cmd, func(cc *CommandContext) error {
		addr, err := cc.Service.NextReceiveAddress()
		if err != nil {
			return err
		}

		view := receiveView{
			Address: addr.Address,
			Path:    addr.Path,
			URI:     output.BitcoinURI(addr.Address, receiveLabel),
		}

		return cc.Formatter.Render(view, func(w io.Writer) error {
			out(w, "Address: %s\n", view.Address)
			out(w, "Path:    %s\n", view.Path)
			out(w, "URI:     %s\n", view.URI)
			if receiveQR {
				outln(w)
				if !output.RenderQR(w, view.URI, output.DefaultQRConfig()) {
					outln(w, "(QR code is only drawn on a terminal)")
				}
			}
			return nil
		})
	})
}
