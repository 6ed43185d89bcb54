// Package servecmder provides the serve command running the recall API
// server with an optional background flush loop.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/pipeline"
)

const serveLongDesc string = `Run the recall HTTP API server.

Exposes append, flush, prune, and search over HTTP. With --flush-interval
a background loop runs a flush pass on that cadence so buffered pairs
reach the durable store without an external scheduler.

Examples:
  recall serve
  recall serve --listen :9000
  recall serve --flush-interval 5m`

const serveShortDesc string = "Run the recall API server"

type serveCommander struct {
	listen          string
	flushInterval   time.Duration
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
	bufferWindow    uint
	eventsTopic     string

	configDir string
	v         *viper.Viper
}

var serveFlagKeys = []string{
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
	config.FlagBufferWindow,
	config.FlagEventsTopic,
	config.FlagAPIListen,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}
	fs := config.PipelineFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, serveFlagKeys)
			cmder.configDir = configDir
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), debug)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.listen)
	cmd.Flags().DurationVar(&cmder.flushInterval, "flush-interval", 0, "Run a background flush on this cadence (0 disables)")
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
	config.AddUintFlag(cmd, fs, config.FlagBufferWindow, &cmder.bufferWindow)
	config.AddStringFlag(cmd, fs, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, debug bool) error {
	log := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
	)

	cfg := config.FromViper(c.v)

	dataDir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer p.Close()

	server := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, p.Buffer, p.Flusher, p.Retriever, log)

	if c.flushInterval > 0 {
		go c.flushLoop(ctx, p, log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return server.Shutdown()
	}
}

// flushLoop runs flush passes until the context is cancelled. A failing
// pass is logged and retried on the next tick; flush convergence makes
// missed passes harmless.
func (c *serveCommander) flushLoop(ctx context.Context, p *pipeline.Pipeline, log *slog.Logger) {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := p.Flusher.Run(ctx)
			if err != nil {
				log.Error("background flush failed", "error", err)
				continue
			}
			log.Info("background flush complete", "summary", report.Summary())
		}
	}
}
