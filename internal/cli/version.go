package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/version"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	versionCheck      bool
	versionReleaseAPI = version.DefaultBaseURL
)

// versionCheckTimeout bounds the release lookup.
const versionCheckTimeout = 10 * time.Second

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the vigil version, commit and platform.

With --check the latest GitHub release is looked up as well.

Example:
  vigil version
  vigil version --check`,
	RunE: runVersion,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}

type versionView struct {
	version.Info

	Check *version.Check `json:"check,omitempty"`
}

func runVersion(cmd *cobra.Command, _ []string) error {
	view := versionView{Info: version.Get()}

	if versionCheck {
		ctx, cancel := contextWithTimeout(cmd, versionCheckTimeout)
		defer cancel()

		check, err := version.NewClient(version.WithBaseURL(versionReleaseAPI)).CheckLatest(ctx, view.Version)
		if err != nil {
			return err
		}
		view.Check = check
	}

	return commandFormatter(cmd).Render(view, func(w io.Writer) error {
		outln(w, view.Info.String())
		if view.Check == nil {
			return nil
		}
		if view.Check.IsNewer {
			out(w, "A newer release is available: %s\n  %s\n", view.Check.Latest, view.Check.URL)
		} else {
			out(w, "You are running the latest release (%s)\n", view.Check.Latest)
		}
		return nil
	})
}
