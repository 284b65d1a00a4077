package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vecstore/pkg/cliui"
	"github.com/papercomputeco/vecstore/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .vecstore/ directory.

Use --plain for one "key = value" line per key.

Examples:
  vecstore config list
  vecstore config list --plain`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.OutOrStdout(), configDirFlag(cmd), plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print key = value lines instead of a table")

	return cmd
}

func runList(w io.Writer, configDir string, plain bool) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	keys := config.ValidConfigKeys()
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			value = "<not set>"
		}
		rows = append(rows, []string{key, value})
	}

	if plain {
		maxLen := 0
		for _, k := range keys {
			maxLen = max(maxLen, len(k))
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%-*s = %s\n", maxLen, r[0], r[1])
		}
		return nil
	}

	printTarget(w, cfger)

	table := cliui.MarkdownTable([]string{"Key", "Value"}, rows)
	rendered, err := cliui.RenderMarkdown(table)
	if err != nil {
		// Raw markdown is still readable.
		fmt.Fprint(w, table)
		return nil
	}
	fmt.Fprint(w, rendered)
	return nil
}
