package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyworld/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Manage the story database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		pool, err := a.postgres(cmd.Context())
		if err != nil {
			return err
		}
		m := database.NewMigrator(pool, a.logger)

		action := "up"
		if len(args) == 1 {
			action = args[0]
		}
		switch action {
		case "down":
			return m.Down()
		case "version":
			version, dirty, ok, err := m.Version()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		default:
			return m.Up()
		}
	},
}
