// Package configcmder provides the config command for managing persistent
// vecstore configuration stored in the .vecstore/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vecstore/pkg/cliui"
	"github.com/papercomputeco/vecstore/pkg/config"
)

const configLongDesc string = `Manage persistent vecstore configuration.

Configuration is stored as config.toml in the .vecstore/ directory and provides
default values for "vecstore serve". CLI flags and VECSTORE_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example
storage.provider, cache.redis_addr or embedding.model. Run "vecstore config
list" to see every key.

Use subcommands to get, set, or list configuration values:
  vecstore config set <key> <value>    Set a configuration value
  vecstore config get <key>            Get a configuration value
  vecstore config list                 List all configuration values

Examples:
  vecstore config set storage.provider pgvector
  vecstore config set cache.redis_addr localhost:6379
  vecstore config get storage.provider
  vecstore config list`

const configShortDesc string = "Manage persistent vecstore configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

// printTarget reports which config file a command reads or writes.
func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

func configDirFlag(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}
