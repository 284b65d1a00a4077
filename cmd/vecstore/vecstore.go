// Package vecstorecmder
package vecstorecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/vecstore/cmd/vecstore/config"
	initcmder "github.com/papercomputeco/vecstore/cmd/vecstore/init"
	searchcmder "github.com/papercomputeco/vecstore/cmd/vecstore/search"
	servecmder "github.com/papercomputeco/vecstore/cmd/vecstore/serve"
	statscmder "github.com/papercomputeco/vecstore/cmd/vecstore/stats"
	versioncmder "github.com/papercomputeco/vecstore/cmd/version"
)

const vecstoreLongDesc string = `Vecstore is a vector storage and similarity search service.

Vectors live in named collections backed by pgvector, sqlite-vec, Qdrant or
Chroma, with a linear scan fallback when no native backend is reachable.

  vecstore init --preset local    Create a .vecstore/ directory with a config
  vecstore serve                  Run the API and MCP server
  vecstore search <text>          Query a running server
  vecstore stats                  Show server performance counters`

const vecstoreShortDesc string = "Vecstore - Vector Storage and Search"

func NewVecstoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vecstore",
		Short:         vecstoreShortDesc,
		Long:          vecstoreLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .vecstore/ configuration directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
