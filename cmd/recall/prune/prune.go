// Package prunecmder provides the prune command for deleting aged
// buffer entries.
package prunecmder

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	bufferutils "github.com/papercomputeco/recall/pkg/buffer/utils"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/flush"
	"github.com/papercomputeco/recall/pkg/logger"
)

const pruneLongDesc string = `Delete buffer entries older than a cutoff.

Pruning is the only operation that removes entries from the ephemeral
buffer. Flush never deletes; it only marks pairs as committed in the durable
store. Prune anything old enough that every flush has had a chance at it.

Examples:
  recall prune
  recall prune --older-than 168h`

const pruneShortDesc string = "Delete aged buffer entries"

const defaultOlderThan = 720 * time.Hour

type pruneCommander struct {
	olderThan      time.Duration
	bufferProvider string
	bufferTarget   string
	configDir      string

	v *viper.Viper
}

func NewPruneCmd() *cobra.Command {
	cmder := &pruneCommander{}
	fs := config.PipelineFlags()

	cmd := &cobra.Command{
		Use:   "prune",
		Short: pruneShortDesc,
		Long:  pruneLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagBufferProv,
				config.FlagBufferTgt,
			})
			cmder.v = v
			cmder.configDir = configDir
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), debug)
		},
	}

	cmd.Flags().DurationVar(&cmder.olderThan, "older-than", defaultOlderThan, "Delete entries older than this duration")
	config.AddStringFlag(cmd, fs, config.FlagBufferProv, &cmder.bufferProvider)
	config.AddStringFlag(cmd, fs, config.FlagBufferTgt, &cmder.bufferTarget)

	return cmd
}

func (c *pruneCommander) run(ctx context.Context, debug bool) error {
	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	if c.olderThan <= 0 {
		return fmt.Errorf("--older-than must be a positive duration")
	}

	cfg := config.FromViper(c.v)

	buf, err := bufferutils.NewBufferDriver(ctx, &bufferutils.NewBufferDriverOpts{
		ProviderType: cfg.Buffer.Provider,
		TargetURL:    cfg.Buffer.Target,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("creating buffer driver: %w", err)
	}
	defer buf.Close()

	cutoff := time.Now().Add(-c.olderThan)
	removed, err := buf.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning buffer: %w", err)
	}

	// Removed head entries shift every surviving entry's position, so the
	// flush watermarks no longer point at the entries they were set for.
	if removed > 0 {
		dataDir, err := dotdir.NewManager().Target(c.configDir)
		if err != nil {
			return fmt.Errorf("resolving data dir: %w", err)
		}
		watermarks, err := flush.NewWatermarkStore(dataDir)
		if err != nil {
			return fmt.Errorf("opening watermark store: %w", err)
		}
		if err := watermarks.Reset(); err != nil {
			return fmt.Errorf("resetting watermarks after prune: %w", err)
		}
	}

	fmt.Printf("\n  %s Pruned %s entries older than %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(fmt.Sprintf("%d", removed)),
		cliui.DimStyle.Render(c.olderThan.String()),
	)
	return nil
}
