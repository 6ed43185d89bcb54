// Package recallcmder
package recallcmder

import (
	"github.com/spf13/cobra"

	appendcmder "github.com/papercomputeco/recall/cmd/recall/append"
	configcmder "github.com/papercomputeco/recall/cmd/recall/config"
	flushcmder "github.com/papercomputeco/recall/cmd/recall/flush"
	harvestcmder "github.com/papercomputeco/recall/cmd/recall/harvest"
	prunecmder "github.com/papercomputeco/recall/cmd/recall/prune"
	searchcmder "github.com/papercomputeco/recall/cmd/recall/search"
	servecmder "github.com/papercomputeco/recall/cmd/recall/serve"
	versioncmder "github.com/papercomputeco/recall/cmd/version"
)

const recallLongDesc string = `Recall is a two-tier conversation memory pipeline.

Turns land in a cheap ephemeral buffer as they happen. A flush pass pairs
them up, skips what the durable store already holds, embeds the rest, and
commits the pairs to the vector store. Search merges both tiers so a memory
is findable the moment it is appended.

Common commands:
  recall append     Append a turn to the buffer
  recall harvest    Harvest session logs into the buffer
  recall flush      Commit buffered pairs to the durable store
  recall search     Search durable and buffered memories
  recall serve      Run the HTTP API server`

const recallShortDesc string = "Recall - conversation memory pipeline"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: recallShortDesc,
		Long:  recallLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .recall directory location")

	// Add subcommands
	cmd.AddCommand(appendcmder.NewAppendCmd())
	cmd.AddCommand(harvestcmder.NewHarvestCmd())
	cmd.AddCommand(flushcmder.NewFlushCmd())
	cmd.AddCommand(prunecmder.NewPruneCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
