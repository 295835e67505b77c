package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Board game metadata harvester",
	Long: `harvester collects board game metadata from the public catalog:
it discovers ranked games, ingests their details and mechanics, mines
forum discussions for mechanic mentions and serves the results over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(
		topGamesCmd,
		mechanicsCmd,
		scrapeForumsCmd,
		computeCommonCmd,
		serveCmd,
	)
}
