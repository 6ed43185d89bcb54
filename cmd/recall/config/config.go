// Package configcmder provides the config command for managing persistent
// recall configuration stored in the .recall/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent recall configuration.

Configuration is stored as config.toml in the .recall/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  buffer.provider, buffer.target,
  vector_store.provider, vector_store.target, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  flush.workers, retrieval.buffer_window,
  events.enabled, events.brokers, events.topic,
  api.listen, harvest.sessions_dir, harvest.user_id

Use subcommands to get, set, or list configuration values:
  recall config set <key> <value>   Set a configuration value
  recall config get <key>           Get a configuration value
  recall config list                List all configuration values

Examples:
  recall config set buffer.target localhost:6379
  recall config set embedding.model snowflake-arctic-embed2
  recall config get vector_store.provider
  recall config list`

const configShortDesc string = "Manage persistent recall configuration"

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
