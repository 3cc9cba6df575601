package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/vigil/internal/config"
	"github.com/mrz1836/vigil/internal/wallet"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify vigil configuration settings.`,
}

// configInitCmd writes the default configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.vigil/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  vigil config init
  vigil config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the effective configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: file values with environment
overrides and flags applied. The extended public key is redacted.

Example:
  vigil config show
  vigil config show -o json`,
	RunE: runConfigShow,
}

// configPathCmd prints the configuration file location.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

// configKeysCmd lists the settable keys.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	RunE:  runConfigKeys,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its dotted key.

Examples:
  vigil config get scan.gap_limit
  vigil config get watch.interval`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its dotted key.

The value is validated and the configuration file is updated immediately.

Examples:
  vigil config set watch.interval 1m
  vigil config set explorer.mempool_api https://mempool.space/api
  vigil config set store.backend file`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return vigilerr.WithSuggestion(
			vigilerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home

	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - wallet.xpub: The account key to watch (or pass --xpub to generate)")
	outln(w, "  - explorer.balance_api / explorer.mempool_api: Explorer endpoints")
	outln(w, "  - watch.interval: Time between reconciliation cycles")
	outln(w, "  - store.backend: badger, file or memory")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	shown := *cfg
	if shown.Wallet.Xpub != "" {
		shown.Wallet.Xpub = wallet.Redact(shown.Wallet.Xpub)
	}

	return commandFormatter(cmd).Render(shown, func(w io.Writer) error {
		data, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	outln(cmd.OutOrStdout(), config.Path(cfg.Home))
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	keys := config.Keys()
	return commandFormatter(cmd).Render(keys, func(w io.Writer) error {
		for _, k := range keys {
			outln(w, k)
		}
		return nil
	})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	configPath := config.Path(cfg.Home)
	currentCfg, err := config.Load(configPath)
	if err != nil {
		// If file doesn't exist, start with defaults
		currentCfg = config.Defaults()
		currentCfg.Home = cfg.Home
	}

	if err := currentCfg.Set(key, value); err != nil {
		return err
	}

	if err := config.Save(currentCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}
