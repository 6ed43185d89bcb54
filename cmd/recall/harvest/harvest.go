// Package harvestcmder provides the harvest command for pulling session
// logs into the ephemeral buffer.
package harvestcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	bufferutils "github.com/papercomputeco/recall/pkg/buffer/utils"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/harvest"
	"github.com/papercomputeco/recall/pkg/logger"
)

const harvestLongDesc string = `Harvest session log files into the ephemeral buffer.

Reads every .json and .jsonl file under the sessions directory and appends
their turns to the buffer. Harvesting the same files twice is safe: the
flush pass deduplicates against the durable store, so re-reads collapse at
commit time.

With --watch the command keeps running and harvests files as they are
written, which suits tailing a live assistant's session directory.

Examples:
  recall harvest --sessions-dir ~/.assistant/sessions --user alice
  recall harvest --sessions-dir ./logs --user alice --watch`

const harvestShortDesc string = "Harvest session logs into the buffer"

type harvestCommander struct {
	sessionsDir    string
	user           string
	watch          bool
	bufferProvider string
	bufferTarget   string

	v *viper.Viper
}

func NewHarvestCmd() *cobra.Command {
	cmder := &harvestCommander{}
	fs := config.PipelineFlags()

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: harvestShortDesc,
		Long:  harvestLongDesc,
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
				config.FlagSessionsDir,
				config.FlagHarvestUser,
			})
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), debug)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagSessionsDir, &cmder.sessionsDir)
	config.AddStringFlag(cmd, fs, config.FlagHarvestUser, &cmder.user)
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Keep running and harvest files as they change")
	config.AddStringFlag(cmd, fs, config.FlagBufferProv, &cmder.bufferProvider)
	config.AddStringFlag(cmd, fs, config.FlagBufferTgt, &cmder.bufferTarget)

	return cmd
}

func (c *harvestCommander) run(ctx context.Context, debug bool) error {
	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	cfg := config.FromViper(c.v)

	if cfg.Harvest.SessionsDir == "" {
		return fmt.Errorf("--sessions-dir is required (or set harvest.sessions_dir)")
	}

	buf, err := bufferutils.NewBufferDriver(ctx, &bufferutils.NewBufferDriverOpts{
		ProviderType: cfg.Buffer.Provider,
		TargetURL:    cfg.Buffer.Target,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("creating buffer driver: %w", err)
	}
	defer buf.Close()

	harvester, err := harvest.NewHarvester(&harvest.Config{
		Buffer: buf,
		UserID: cfg.Harvest.UserID,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating harvester: %w", err)
	}

	var result *harvest.Result
	if err := cliui.Step(os.Stdout, "Harvesting session logs", func() error {
		var runErr error
		result, runErr = harvester.Run(ctx, cfg.Harvest.SessionsDir)
		return runErr
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s %s\n\n", cliui.SuccessMark, result.Summary())

	if !c.watch {
		return nil
	}

	log.Info("watching for session changes", "dir", cfg.Harvest.SessionsDir)
	return harvester.Watch(ctx, cfg.Harvest.SessionsDir)
}
