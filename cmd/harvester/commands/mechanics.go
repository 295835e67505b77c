package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meepledex/harvester"
)

var mechanicsCmd = &cobra.Command{
	Use:   "mechanics",
	Short: "Harvest the full mechanic catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		fetcher := harvester.NewFetcher(harvester.DefaultFetchConfig())
		ingester := harvester.NewIngester(fetcher, database, viper.GetString("api_base_url"))

		created, err := ingester.HarvestMechanics(cmd.Context())
		if err != nil {
			return err
		}

		slog.Info("mechanics run complete", "created", created)
		return nil
	},
}
