package harvester

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"

	"github.com/meepledex/harvester/models"
	"github.com/meepledex/harvester/slug"
)

var (
	detailMarkers     = []string{"/thread/", "/article/", "/post/"}
	paginationMarkers = []string{"/page/", "page=", "pageid="}

	absoluteDetailPattern = regexp.MustCompile(`https?://[^\s"']*(?:boardgamegeek|geekdo)\.com/(?:thread|article|post)/[^\s"']+`)
	relativeDetailPattern = regexp.MustCompile(`/(?:thread|article|post)/[\w\-./]+`)
)

// SnapshotArchive persists raw page text for later inspection. Returns
// the location the snapshot was written to.
type SnapshotArchive interface {
	SaveSnapshot(runID, name, text string) (string, error)
}

// CrawlConfig contains crawler configuration
type CrawlConfig struct {
	MaxPages int // detail page budget per run
	MaxDepth int // pagination depth from each seed
}

// DefaultCrawlConfig returns default crawler configuration
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		MaxPages: 200,
		MaxDepth: 1,
	}
}

// Crawler walks forum search results breadth-first from seed URLs,
// collecting visible text from discussion detail pages. It stays on the
// seed's host, never fetches a URL twice within a run, and stops once
// the detail page budget is spent.
type Crawler struct {
	fetcher *Fetcher
	archive SnapshotArchive // optional
	config  CrawlConfig
}

// NewCrawler creates a new Crawler. archive may be nil, in which case
// page text is kept in memory only.
func NewCrawler(fetcher *Fetcher, archive SnapshotArchive, config CrawlConfig) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		archive: archive,
		config:  config,
	}
}

type crawlItem struct {
	url   string
	depth int
}

// Crawl runs one collection pass over all seeds and returns the text
// of every detail page visited. Fetch failures, including blocked
// responses, skip the one URL and leave the rest of the run intact.
func (c *Crawler) Crawl(ctx context.Context, seeds []string) ([]models.PageText, error) {
	ctx, span := tracer.Start(ctx, "crawl")
	defer span.End()

	runID := uuid.New().String()
	visited := make(map[string]bool)
	var pages []models.PageText

	for _, seed := range seeds {
		if len(pages) >= c.config.MaxPages {
			break
		}
		collected := c.collectFromSeed(ctx, seed, runID, visited, &pages)
		slog.Info("seed crawled", "seed", seed, "pages", collected, "total", len(pages))
	}

	span.SetAttributes(attribute.Int("pages.collected", len(pages)))
	return pages, nil
}

// collectFromSeed runs BFS from one seed URL and returns the number of
// pages it recorded. For legacy search seeds the rewritten URLs are
// crawled instead.
func (c *Crawler) collectFromSeed(ctx context.Context, seed, runID string, visited map[string]bool, pages *[]models.PageText) int {
	queue := make([]crawlItem, 0, 8)
	for _, u := range rewriteLegacySearch(seed) {
		if !visited[u] {
			visited[u] = true
			queue = append(queue, crawlItem{url: u, depth: 0})
		}
	}

	collected := 0
	for len(queue) > 0 && len(*pages) < c.config.MaxPages {
		item := queue[0]
		queue = queue[1:]

		body, err := c.fetcher.Fetch(ctx, item.url)
		if err != nil {
			if errors.Is(err, ErrBlocked) {
				slog.Warn("remote host refused crawl page, skipping", "url", item.url)
			} else {
				slog.Warn("failed to fetch crawl page", "url", item.url, "error", err)
			}
			continue
		}

		doc, err := html.Parse(bytes.NewReader(body))
		if err != nil {
			slog.Warn("failed to parse crawl page", "url", item.url, "error", err)
			continue
		}
		base, err := url.Parse(item.url)
		if err != nil {
			continue
		}

		if isDetailURL(item.url) {
			text := extractVisibleText(doc)
			c.record(runID, item.url, text, pages)
			collected++
			continue
		}

		// Listing page: queue detail links and pagination links.
		enqueue := func(link string, depth int) {
			visited[link] = true
			queue = append(queue, crawlItem{url: link, depth: depth})
		}

		enqueued := 0
		for _, link := range extractHrefs(doc, base) {
			if visited[link] {
				continue
			}
			switch {
			case isDetailURL(link):
				enqueue(link, item.depth+1)
				enqueued++
			case item.depth < c.config.MaxDepth && isPaginationURL(link) && sameHost(base, link):
				enqueue(link, item.depth+1)
				enqueued++
			}
		}

		if enqueued == 0 {
			// Markup-hostile listing: scan the raw HTML for detail URLs.
			for _, link := range detailURLsFromRaw(body, base) {
				if visited[link] {
					continue
				}
				enqueue(link, item.depth+1)
				enqueued++
			}
		}

		if enqueued == 0 {
			// Nothing to follow at all: keep the listing's own text so
			// the run still yields something to score.
			text := extractVisibleText(doc)
			if text != "" {
				c.record(runID, item.url, text, pages)
				collected++
			}
		}
	}

	return collected
}

func (c *Crawler) record(runID, pageURL, text string, pages *[]models.PageText) {
	*pages = append(*pages, models.PageText{URL: pageURL, Text: text})
	if c.archive == nil {
		return
	}
	location, err := c.archive.SaveSnapshot(runID, slug.FromURL(pageURL), text)
	if err != nil {
		slog.Warn("failed to archive page snapshot", "url", pageURL, "error", err)
		return
	}
	slog.Debug("archived page snapshot", "url", pageURL, "location", location)
}

// rewriteLegacySearch maps the old-style forum search URL onto the two
// legacy geeksearch endpoints that still serve parseable results. Other
// URLs pass through untouched.
func rewriteLegacySearch(seed string) []string {
	parsed, err := url.Parse(seed)
	if err != nil {
		return []string{seed}
	}
	if !strings.Contains(parsed.Host, "boardgamegeek.com") || !strings.Contains(parsed.Path, "/forums/search") {
		return []string{seed}
	}
	term := parsed.Query().Get("searchTerm")
	if term == "" {
		return []string{seed}
	}
	escaped := url.QueryEscape(term)
	return []string{
		fmt.Sprintf("https://%s/geeksearch.php?action=search&objecttype=thread&q=%s", parsed.Host, escaped),
		fmt.Sprintf("https://%s/geeksearch.php?action=search&objecttype=article&q=%s", parsed.Host, escaped),
	}
}

func isDetailURL(u string) bool {
	for _, marker := range detailMarkers {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

func isPaginationURL(u string) bool {
	for _, marker := range paginationMarkers {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

func sameHost(base *url.URL, link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	return parsed.Host == base.Host
}

// detailURLsFromRaw scans raw HTML for discussion URLs that the DOM walk
// missed, resolving relative matches against base.
func detailURLsFromRaw(body []byte, base *url.URL) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range absoluteDetailPattern.FindAllString(string(body), -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range relativeDetailPattern.FindAllString(string(body), -1) {
		resolved, err := resolveURL(base, m)
		if err != nil {
			continue
		}
		if !seen[resolved] {
			seen[resolved] = true
			out = append(out, resolved)
		}
	}
	return out
}

// extractVisibleText extracts all rendered text from the document,
// skipping script and style contents.
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.TrimSpace(buf.String())
}

// extractHrefs collects every anchor href in document order, resolved
// against base and de-duplicated.
func extractHrefs(n *html.Node, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					if linkURL, err := resolveURL(base, attr.Val); err == nil {
						if !seen[linkURL] {
							seen[linkURL] = true
							links = append(links, linkURL)
						}
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return links
}

func resolveURL(base *url.URL, href string) (string, error) {
	parsed, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(parsed).String(), nil
}
