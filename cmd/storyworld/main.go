// Command storyworld serves interactive branching stories on the web and in
// the terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storyworld/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "storyworld <command>",
	Short: "Interactive story player",
	Long: `storyworld plays branching stories: in the browser through "serve",
in the terminal through "play". Stories come from the embedded catalogue,
a local JSON or YAML file, a remote document or Postgres.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
