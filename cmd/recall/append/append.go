// Package appendcmder provides the append command for writing single turns
// into the ephemeral buffer.
package appendcmder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/pkg/buffer"
	bufferutils "github.com/papercomputeco/recall/pkg/buffer/utils"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/turn"
)

const appendLongDesc string = `Append a single turn to the ephemeral buffer.

The buffer write is cheap: no embedding or deduplication happens until the
next flush pass. Turn index defaults to the user's current buffer length so
consecutive appends form user/agent pairs.

Examples:
  recall append --user alice "remember my wifi password is hunter2"
  recall append --user alice --role agent "Noted, I'll remember that."
  recall append --user alice --session 2026-09-01 "what did we decide?"`

const appendShortDesc string = "Append a turn to the buffer"

type appendCommander struct {
	user           string
	session        string
	role           string
	index          int
	bufferProvider string
	bufferTarget   string

	v *viper.Viper
}

func NewAppendCmd() *cobra.Command {
	cmder := &appendCommander{}
	fs := config.PipelineFlags()

	cmd := &cobra.Command{
		Use:   "append <text>",
		Short: appendShortDesc,
		Long:  appendLongDesc,
		Args:  cobra.MinimumNArgs(1),
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
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), debug, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.user, "user", "u", "default", "User the turn belongs to")
	cmd.Flags().StringVarP(&cmder.session, "session", "s", "", "Session the turn belongs to")
	cmd.Flags().StringVarP(&cmder.role, "role", "r", "user", "Turn role (user or agent)")
	cmd.Flags().IntVar(&cmder.index, "index", -1, "Turn index within the session (default: next buffer position)")
	config.AddStringFlag(cmd, fs, config.FlagBufferProv, &cmder.bufferProvider)
	config.AddStringFlag(cmd, fs, config.FlagBufferTgt, &cmder.bufferTarget)

	return cmd
}

func (c *appendCommander) run(ctx context.Context, debug bool, text string) error {
	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	role := turn.Role(c.role)
	if role != turn.RoleUser && role != turn.RoleAgent {
		return fmt.Errorf("role must be %q or %q, got %q", turn.RoleUser, turn.RoleAgent, c.role)
	}

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("turn text is empty")
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

	index := c.index
	if index < 0 {
		length, err := buf.Len(ctx, c.user)
		if err != nil {
			return fmt.Errorf("reading buffer length: %w", err)
		}
		index = length
	}

	entry := buffer.Entry{
		UserID:     c.user,
		SessionID:  c.session,
		TurnIndex:  index,
		Role:       role,
		Text:       text,
		AppendedAt: time.Now().UTC(),
	}

	if err := buf.Append(ctx, entry); err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}

	fmt.Printf("\n  %s Buffered %s turn %s for %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(string(role)),
		cliui.DimStyle.Render(fmt.Sprintf("#%d", index)),
		cliui.NameStyle.Render(c.user),
	)
	return nil
}
