package harvester

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/meepledex/harvester/models"
)

var gameIDPattern = regexp.MustCompile(`/boardgame/(\d+)`)

// Discoverer walks the paginated ranking listing and collects game IDs
// from the rank table of each page.
type Discoverer struct {
	fetcher   *Fetcher
	baseURL   string
	pageDelay time.Duration
	sleep     func(time.Duration)
}

// NewDiscoverer creates a new Discoverer
func NewDiscoverer(fetcher *Fetcher, baseURL string) *Discoverer {
	return &Discoverer{
		fetcher:   fetcher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		pageDelay: 500 * time.Millisecond,
		sleep:     time.Sleep,
	}
}

// pageURL returns the listing URL for a 1-based page number. The first
// page has no page suffix.
func (d *Discoverer) pageURL(page int) string {
	if page <= 1 {
		return d.baseURL
	}
	return fmt.Sprintf("%s/page/%d", d.baseURL, page)
}

// Discover fetches pages [1, pages] and returns the unique set of game
// IDs found, along with per-page statistics. A page that fails to fetch
// or has no table is logged and skipped; discovery continues.
func (d *Discoverer) Discover(ctx context.Context, pages int) (map[int64]bool, []models.PageStats, error) {
	ids := make(map[int64]bool)
	stats := make([]models.PageStats, 0, pages)

	for page := 1; page <= pages; page++ {
		url := d.pageURL(page)
		body, err := d.fetcher.Fetch(ctx, url)
		if err != nil {
			slog.Error("failed to fetch listing page", "page", page, "url", url, "error", err)
			stats = append(stats, models.PageStats{Page: page})
			continue
		}

		found, skipped := d.parsePage(body, ids)
		stats = append(stats, models.PageStats{Page: page, Found: found, Skipped: skipped})
		slog.Info("discovered listing page", "page", page, "found", found, "skipped", skipped, "total", len(ids))

		if page < pages {
			d.sleep(d.pageDelay)
		}
	}

	return ids, stats, nil
}

// parsePage scans the first table on the page. Rows whose first cell is
// not an integer rank (header rows, ad rows, section separators) are
// skipped, as are rows with fewer than three cells.
func (d *Discoverer) parsePage(body []byte, ids map[int64]bool) (found, skipped int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to parse listing page", "error", err)
		return 0, 0
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		slog.Error("listing page has no rank table")
		return 0, 0
	}

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			skipped++
			return
		}
		if _, err := strconv.Atoi(strings.TrimSpace(cells.Eq(0).Text())); err != nil {
			skipped++
			return
		}

		href, ok := cells.Eq(1).Find("a").First().Attr("href")
		if !ok {
			skipped++
			return
		}
		m := gameIDPattern.FindStringSubmatch(href)
		if m == nil {
			skipped++
			return
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			skipped++
			return
		}

		if !ids[id] {
			ids[id] = true
			found++
		}
	})

	return found, skipped
}
