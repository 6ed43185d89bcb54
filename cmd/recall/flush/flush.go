// Package flushcmder provides the flush command for committing buffered
// pairs to the durable store.
package flushcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/flush"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/pipeline"
)

const flushLongDesc string = `Run one flush pass over the ephemeral buffer.

Every user's buffer is scanned from its watermark, turns are paired up,
already-committed pairs are skipped, and the rest are embedded and committed
to the vector store. The buffer is never cleared by a flush; re-running is
always safe and converges on the same durable state.

Examples:
  recall flush
  recall flush --workers 8
  recall flush --vector-store-provider sqlite-vec --vector-store-target ./recall.db`

const flushShortDesc string = "Commit buffered pairs to the durable store"

type flushCommander struct {
	bufferProvider  string
	bufferTarget    string
	vectorProvider  string
	vectorTarget    string
	vectorColl      string
	embedProvider   string
	embedTarget     string
	embedModel      string
	embedDimensions uint
	workers         uint
	eventsTopic     string

	configDir string
	v         *viper.Viper
}

var flushFlagKeys = []string{
	config.FlagBufferProv,
	config.FlagBufferTgt,
	config.FlagVectorProv,
	config.FlagVectorTgt,
	config.FlagVectorColl,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagFlushWorkers,
	config.FlagEventsTopic,
}

func NewFlushCmd() *cobra.Command {
	cmder := &flushCommander{}
	fs := config.PipelineFlags()

	cmd := &cobra.Command{
		Use:   "flush",
		Short: flushShortDesc,
		Long:  flushLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, flushFlagKeys)
			cmder.configDir = configDir
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), debug)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagBufferProv, &cmder.bufferProvider)
	config.AddStringFlag(cmd, fs, config.FlagBufferTgt, &cmder.bufferTarget)
	config.AddStringFlag(cmd, fs, config.FlagVectorProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, fs, config.FlagVectorTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, fs, config.FlagVectorColl, &cmder.vectorColl)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embedDimensions)
	config.AddUintFlag(cmd, fs, config.FlagFlushWorkers, &cmder.workers)
	config.AddStringFlag(cmd, fs, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *flushCommander) run(ctx context.Context, debug bool) error {
	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	cfg := config.FromViper(c.v)

	dataDir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving data dir: %w", err)
	}

	p, err := pipeline.New(ctx, cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer p.Close()

	var report *flush.Report
	if err := cliui.Step(os.Stdout, "Flushing buffered pairs", func() error {
		var runErr error
		report, runErr = p.Flusher.Run(ctx)
		return runErr
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s %s\n\n", cliui.SuccessMark, report.Summary())
	if !report.Clean() {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Some pairs were deferred or failed. Re-run flush to retry them."))
	}
	return nil
}
