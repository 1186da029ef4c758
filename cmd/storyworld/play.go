package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyworld/internal/logger"
	"storyworld/internal/player"
	"storyworld/internal/tui"
)

var playLogFile string

var playCmd = &cobra.Command{
	Use:   "play [story-id]",
	Short: "Play a story in the terminal",
	Long:  "Play a story in the terminal. Without a story id the available stories are listed.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.ForTerminal(playLogFile)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		a, err := newApp(log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		src, err := a.storySource(ctx)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			stories, err := src.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range stories {
				fmt.Fprintf(out, "%-6s %s\n", s.ID, s.Title)
			}
			return nil
		}

		game, _, err := player.Load(ctx, src, args[0])
		if err != nil {
			return err
		}
		return tui.Run(ctx, game, a.cfg.Reveal.Interval, a.logger)
	},
}

func init() {
	playCmd.Flags().StringVar(&playLogFile, "log-file", "", "write logs to this file")
}
