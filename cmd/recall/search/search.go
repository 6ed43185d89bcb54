// Package searchcmder provides the search command for querying memories
// across both tiers.
package searchcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/pipeline"
	"github.com/papercomputeco/recall/pkg/retrieval"
	"github.com/papercomputeco/recall/pkg/utils"
)

const searchLongDesc string = `Search a user's memories.

Durable similarity hits come first, then uncommitted buffer pairs newest
first, so a memory is findable the moment it is appended. If the embedder
or vector store is unreachable the search degrades to the buffer tier
instead of failing.

Examples:
  recall search --user alice "wifi password"
  recall search --user alice --top 3 "what did we decide about the deploy?"`

const searchShortDesc string = "Search durable and buffered memories"

var sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

type searchCommander struct {
	user            string
	top             int
	bufferProvider  string
	bufferTarget    string
	vectorProvider  string
	vectorTarget    string
	vectorColl      string
	embedProvider   string
	embedTarget     string
	embedModel      string
	embedDimensions uint
	bufferWindow    uint

	v *viper.Viper
}

var searchFlagKeys = []string{
	config.FlagBufferProv,
	config.FlagBufferTgt,
	config.FlagVectorProv,
	config.FlagVectorTgt,
	config.FlagVectorColl,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagBufferWindow,
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}
	fs := config.PipelineFlags()

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, searchFlagKeys)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), debug, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.user, "user", "u", "default", "User whose memories to search")
	cmd.Flags().IntVarP(&cmder.top, "top", "k", 10, "Maximum results to return")
	config.AddStringFlag(cmd, fs, config.FlagBufferProv, &cmder.bufferProvider)
	config.AddStringFlag(cmd, fs, config.FlagBufferTgt, &cmder.bufferTarget)
	config.AddStringFlag(cmd, fs, config.FlagVectorProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, fs, config.FlagVectorTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, fs, config.FlagVectorColl, &cmder.vectorColl)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embedDimensions)
	config.AddUintFlag(cmd, fs, config.FlagBufferWindow, &cmder.bufferWindow)

	return cmd
}

func (c *searchCommander) run(ctx context.Context, debug bool, query string) error {
	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	cfg := config.FromViper(c.v)

	p, err := pipeline.New(ctx, cfg, "", log)
	if err != nil {
		return err
	}
	defer p.Close()

	results, err := p.Retriever.Search(ctx, c.user, query, c.top)
	if err != nil {
		return fmt.Errorf("searching memories: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No memories found."))
		return nil
	}

	fmt.Printf("\n  %s memories for %s\n\n",
		cliui.NameStyle.Render(fmt.Sprintf("%d", len(results))),
		cliui.NameStyle.Render(c.user),
	)

	for i, r := range results {
		printResult(i+1, r)
	}
	fmt.Println()

	return nil
}

func printResult(rank int, r retrieval.Result) {
	meta := fmt.Sprintf("[%s]", r.Source)
	if r.Source == retrieval.SourceDurable {
		meta = fmt.Sprintf("[%s %.3f]", r.Source, r.Score)
	}

	fmt.Printf("  %s %s %s\n",
		cliui.KeyStyle.Render(fmt.Sprintf("%2d.", rank)),
		sourceStyle.Render(meta),
		utils.Truncate(r.Text, 120),
	)

	details := make([]string, 0, 2)
	if r.SessionID != "" {
		details = append(details, "session "+r.SessionID)
	}
	if r.Importance != "" {
		details = append(details, "importance "+r.Importance)
	}
	if len(details) > 0 {
		fmt.Printf("      %s\n", cliui.DimStyle.Render(strings.Join(details, ", ")))
	}
}
