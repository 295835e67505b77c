package commands

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meepledex/harvester"
)

var (
	scrapeForumsMaxPages   int
	scrapeForumsMaxDepth   int
	scrapeForumsTopK       int
	scrapeForumsMinCount   int
	scrapeForumsSleep      time.Duration
	scrapeForumsArchiveDir string
	scrapeForumsNoStore    bool
)

var scrapeForumsCmd = &cobra.Command{
	Use:   "scrape-forums [seed-url...]",
	Short: "Mine forum discussions for mechanic mentions",
	Long: `scrape-forums crawls discussion pages starting from the given seed
URLs, counts mechanic name mentions in the collected text and flags the
most-mentioned mechanics as common. With no seeds, a forum search for
each stored mechanic name is used.`,
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
		if len(mechanics) == 0 {
			return fmt.Errorf("no mechanics stored; run the mechanics command first")
		}

		seeds := args
		if len(seeds) == 0 {
			for _, m := range mechanics {
				seeds = append(seeds, "https://boardgamegeek.com/forums/search?searchTerm="+url.QueryEscape(m.Name))
			}
		}

		var archive harvester.SnapshotArchive
		if !scrapeForumsNoStore {
			if scrapeForumsArchiveDir != "" {
				viper.Set("storage_base_path", scrapeForumsArchiveDir)
			}
			archive, err = newArchive(cmd.Context())
			if err != nil {
				return err
			}
		}

		fetchConfig := harvester.DefaultFetchConfig()
		fetchConfig.Delay = scrapeForumsSleep
		fetcher := harvester.NewFetcher(fetchConfig)
		crawler := harvester.NewCrawler(fetcher, archive, harvester.CrawlConfig{
			MaxPages: scrapeForumsMaxPages,
			MaxDepth: scrapeForumsMaxDepth,
		})

		pages, err := crawler.Crawl(cmd.Context(), seeds)
		if err != nil {
			return err
		}
		slog.Info("crawl complete", "pages", len(pages))

		scorer := harvester.NewScorer(database)
		common, err := scorer.Score(mechanics, pages, scrapeForumsTopK, scrapeForumsMinCount)
		if err != nil {
			return err
		}

		for _, m := range common {
			slog.Info("common mechanic", "name", m.Name, "mentions", m.MentionsCount)
		}
		return nil
	},
}

func init() {
	scrapeForumsCmd.Flags().IntVar(&scrapeForumsMaxPages, "max-pages", 200, "detail page budget per run")
	scrapeForumsCmd.Flags().IntVar(&scrapeForumsMaxDepth, "max-depth", 1, "pagination depth from each seed")
	scrapeForumsCmd.Flags().IntVar(&scrapeForumsTopK, "top-k", 30, "number of mechanics to flag as common")
	scrapeForumsCmd.Flags().IntVar(&scrapeForumsMinCount, "min-count", 1, "minimum mentions for a mechanic to qualify")
	scrapeForumsCmd.Flags().DurationVar(&scrapeForumsSleep, "sleep", 500*time.Millisecond, "politeness delay between requests")
	scrapeForumsCmd.Flags().StringVar(&scrapeForumsArchiveDir, "archive-dir", "", "directory for page snapshots (default from config)")
	scrapeForumsCmd.Flags().BoolVar(&scrapeForumsNoStore, "no-store", false, "skip archiving page snapshots")
}
