// Package cli implements the vigil command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/vigil/internal/config"
	"github.com/mrz1836/vigil/internal/output"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "A watch-only Bitcoin balance tracker",
	Long: `Vigil watches the addresses of one account-level extended public key.

It derives receive and change addresses, discovers which are used with a
gap-limited scan, aggregates confirmed history into a daily balance
timeline and polls the mempool for pending activity. No private key is
ever needed.

Example:
  vigil generate --xpub zpub6r...
  vigil check
  vigil balance
  vigil watch`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if formatter != nil {
			_ = output.FormatError(os.Stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(os.Stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return vigilerr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	switch {
	case err == nil:
	case os.IsNotExist(err):
		cfg = config.Defaults()
	default:
		return err
	}
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	if err := cfg.Validate(); err != nil {
		return vigilerr.WithSuggestion(err, "fix "+config.Path(home)+" or run: vigil config keys")
	}

	logger, err = config.NewLogger(
		config.ParseLogLevel(cfg.Logging.Level),
		cfg.Logging.File,
		cfg.Logging.MaxSizeKB,
		cfg.Logging.MaxRolls,
	)
	if err != nil {
		// Use null logger if we can't create the file
		logger = config.NullLogger()
	}

	format, err := output.ParseFormat(cfg.Output.DefaultFormat)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(output.DetectFormat(os.Stdout, format), os.Stdout)
	applyColor(formatter, cfg.Output.Color)

	return nil
}

// applyColor honors output.color: always, never or auto.
func applyColor(f *output.Formatter, mode string) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		f.SetColor(true)
	case "never", "false", "off":
		f.SetColor(false)
	}
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "vigil data directory (default: ~/.vigil)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
