package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meepledex/harvester"
)

var topGamesPages int

var topGamesCmd = &cobra.Command{
	Use:   "top-games",
	Short: "Discover ranked games and ingest their details",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		fetcher := harvester.NewFetcher(harvester.DefaultFetchConfig())
		discoverer := harvester.NewDiscoverer(fetcher, viper.GetString("listing_base_url"))

		ids, stats, err := discoverer.Discover(cmd.Context(), topGamesPages)
		if err != nil {
			return err
		}
		for _, s := range stats {
			slog.Info("listing page", "page", s.Page, "found", s.Found, "skipped", s.Skipped)
		}

		ingester := harvester.NewIngester(fetcher, database, viper.GetString("api_base_url"))
		result, err := ingester.Ingest(cmd.Context(), ids)
		if err != nil {
			return err
		}

		slog.Info("top games run complete",
			"discovered", len(ids),
			"games_created", result.GamesCreated,
			"mechanics_created", result.MechanicsCreated,
			"links_created", result.LinksCreated)
		return nil
	},
}

func init() {
	topGamesCmd.Flags().IntVar(&topGamesPages, "pages", 10, "number of listing pages to walk")
}
