package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meepledex/harvester"
)

var (
	computeCommonTopK     int
	computeCommonMinCount int
)

var computeCommonCmd = &cobra.Command{
	Use:   "compute-common",
	Short: "Flag common mechanics from game usage counts",
	Long: `compute-common scores each mechanic by the number of distinct stored
games using it, instead of crawling forum text. Useful when the catalog
is already ingested and no crawl is wanted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		mechanics, err := database.ListMechanics()
		if err != nil {
			return err
		}
		counts, err := database.CountMechanicUsage()
		if err != nil {
			return err
		}

		scorer := harvester.NewScorer(database)
		common, err := scorer.Apply(mechanics, counts, computeCommonTopK, computeCommonMinCount)
		if err != nil {
			return err
		}

		for _, m := range common {
			slog.Info("common mechanic", "name", m.Name, "games", m.MentionsCount)
		}
		return nil
	},
}

func init() {
	computeCommonCmd.Flags().IntVar(&computeCommonTopK, "top-k", 30, "number of mechanics to flag as common")
	computeCommonCmd.Flags().IntVar(&computeCommonMinCount, "min-count", 1, "minimum game count for a mechanic to qualify")
}
