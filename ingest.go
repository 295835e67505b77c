package harvester

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/meepledex/harvester/models"
	"github.com/meepledex/harvester/slug"
)

var tracer = otel.Tracer("harvester")

const (
	ingestBatchSize       = 20
	mechanicSearchDelay   = 200 * time.Millisecond
	mechanicLinkType      = "boardgamemechanic"
	primaryNameType       = "primary"
	mechanicSearchLetters = "abcdefghijklmnopqrstuvwxyz"
)

type thingItems struct {
	Items []thingItem `xml:"item"`
}

type thingItem struct {
	ID          string      `xml:"id,attr"`
	Names       []thingName `xml:"name"`
	Year        thingValue  `xml:"yearpublished"`
	MinPlayers  thingValue  `xml:"minplayers"`
	MaxPlayers  thingValue  `xml:"maxplayers"`
	PlayingTime thingValue  `xml:"playingtime"`
	Thumbnail   string      `xml:"thumbnail"`
	Description string      `xml:"description"`
	Links       []thingLink `xml:"link"`
	Statistics  thingStats  `xml:"statistics"`
}

type thingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type thingValue struct {
	Value string `xml:"value,attr"`
}

type thingLink struct {
	Type  string `xml:"type,attr"`
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

type thingStats struct {
	Ratings struct {
		Average       thingValue `xml:"average"`
		AverageWeight thingValue `xml:"averageweight"`
	} `xml:"ratings"`
}

type searchItems struct {
	Items []searchItem `xml:"item"`
}

type searchItem struct {
	ID   string `xml:"id,attr"`
	Name struct {
		Value string `xml:"value,attr"`
	} `xml:"name"`
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	GamesCreated     int
	GamesSeen        int
	MechanicsCreated int
	LinksCreated     int
}

// Ingester pulls game detail XML in batches and writes games, mechanics
// and their links through the store. Records are create-only: the store
// keeps whatever version it already has.
type Ingester struct {
	fetcher    *Fetcher
	store      Store
	apiBase    string
	batchDelay time.Duration
	sleep      func(time.Duration)
}

// NewIngester creates a new Ingester
func NewIngester(fetcher *Fetcher, store Store, apiBase string) *Ingester {
	return &Ingester{
		fetcher:    fetcher,
		store:      store,
		apiBase:    strings.TrimRight(apiBase, "/"),
		batchDelay: 500 * time.Millisecond,
		sleep:      time.Sleep,
	}
}

// Ingest fetches detail records for ids in batches of twenty. A batch
// that fails to fetch or parse is logged and skipped; the remaining
// batches still run.
func (in *Ingester) Ingest(ctx context.Context, ids map[int64]bool) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()

	sorted := make([]int64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var result IngestResult
	for start := 0; start < len(sorted); start += ingestBatchSize {
		end := start + ingestBatchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batch := sorted[start:end]

		if err := in.ingestBatch(ctx, batch, &result); err != nil {
			slog.Error("batch ingest failed", "first_id", batch[0], "size", len(batch), "error", err)
		}
		in.sleep(in.batchDelay)
	}

	span.SetAttributes(
		attribute.Int("games.seen", result.GamesSeen),
		attribute.Int("games.created", result.GamesCreated),
	)
	slog.Info("ingest complete",
		"games_seen", result.GamesSeen,
		"games_created", result.GamesCreated,
		"mechanics_created", result.MechanicsCreated,
		"links_created", result.LinksCreated)
	return result, nil
}

func (in *Ingester) ingestBatch(ctx context.Context, batch []int64, result *IngestResult) error {
	idList := make([]string, len(batch))
	for i, id := range batch {
		idList[i] = strconv.FormatInt(id, 10)
	}
	url := fmt.Sprintf("%s/xmlapi2/thing?id=%s&stats=1", in.apiBase, strings.Join(idList, ","))

	body, err := in.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetching batch: %w", err)
	}

	var items thingItems
	if err := xml.Unmarshal(body, &items); err != nil {
		return fmt.Errorf("parsing batch XML: %w", err)
	}

	for _, item := range items.Items {
		if err := in.ingestItem(item, result); err != nil {
			slog.Error("failed to ingest item", "id", item.ID, "error", err)
		}
	}
	return nil
}

func (in *Ingester) ingestItem(item thingItem, result *IngestResult) error {
	id, err := strconv.ParseInt(item.ID, 10, 64)
	if err != nil || id == 0 {
		slog.Warn("skipping item with bad id", "id", item.ID)
		return nil
	}

	name := primaryName(item.Names)
	if name == "" {
		slog.Warn("skipping item without a name", "id", id)
		return nil
	}
	game := &models.Game{
		ExternalID:   id,
		Name:         name,
		Slug:         slug.GenerateWithFallback(name, strconv.FormatInt(id, 10)),
		Year:         SafeInt(item.Year.Value),
		MinPlayers:   SafeInt(item.MinPlayers.Value),
		MaxPlayers:   SafeInt(item.MaxPlayers.Value),
		PlayingTime:  SafeInt(item.PlayingTime.Value),
		Weight:       SafeFloat(item.Statistics.Ratings.AverageWeight.Value),
		Rating:       SafeFloat(item.Statistics.Ratings.Average.Value),
		ThumbnailURL: strings.TrimSpace(item.Thumbnail),
		Description:  strings.TrimSpace(item.Description),
	}

	created, err := in.store.GetOrCreateGame(game)
	if err != nil {
		return fmt.Errorf("storing game %d: %w", id, err)
	}
	result.GamesSeen++
	if created {
		result.GamesCreated++
	}

	for _, link := range item.Links {
		if link.Type != mechanicLinkType {
			continue
		}
		mechID, err := strconv.ParseInt(link.ID, 10, 64)
		if err != nil || mechID == 0 {
			continue
		}
		mechName := strings.TrimSpace(link.Value)
		if mechName == "" {
			mechName = fmt.Sprintf("mechanic-%d", mechID)
		}

		mechCreated, err := in.store.GetOrCreateMechanic(&models.Mechanic{ExternalID: mechID, Name: mechName})
		if err != nil {
			slog.Error("failed to store mechanic", "id", mechID, "error", err)
			continue
		}
		if mechCreated {
			result.MechanicsCreated++
		}
		if err := in.store.LinkGameMechanic(id, mechID); err != nil {
			slog.Error("failed to link mechanic", "game", id, "mechanic", mechID, "error", err)
			continue
		}
		result.LinksCreated++
	}
	return nil
}

func primaryName(names []thingName) string {
	for _, n := range names {
		if n.Type == primaryNameType {
			return strings.TrimSpace(n.Value)
		}
	}
	if len(names) > 0 {
		return strings.TrimSpace(names[0].Value)
	}
	return ""
}

// HarvestMechanics sweeps the search API one letter at a time and stores
// every mechanic found. The union of single-letter searches covers the
// full catalog.
func (in *Ingester) HarvestMechanics(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "harvest-mechanics")
	defer span.End()

	created := 0
	for _, letter := range mechanicSearchLetters {
		url := fmt.Sprintf("%s/xmlapi2/search?query=%c&type=boardgamemechanic", in.apiBase, letter)
		body, err := in.fetcher.Fetch(ctx, url)
		if err != nil {
			slog.Error("mechanic search failed", "letter", string(letter), "error", err)
			in.sleep(mechanicSearchDelay)
			continue
		}

		var items searchItems
		if err := xml.Unmarshal(body, &items); err != nil {
			slog.Error("failed to parse mechanic search XML", "letter", string(letter), "error", err)
			in.sleep(mechanicSearchDelay)
			continue
		}

		for _, item := range items.Items {
			id, err := strconv.ParseInt(item.ID, 10, 64)
			if err != nil || id == 0 {
				continue
			}
			name := strings.TrimSpace(item.Name.Value)
			if name == "" {
				name = fmt.Sprintf("mechanic-%d", id)
			}
			wasCreated, err := in.store.GetOrCreateMechanic(&models.Mechanic{ExternalID: id, Name: name})
			if err != nil {
				slog.Error("failed to store mechanic", "id", id, "error", err)
				continue
			}
			if wasCreated {
				created++
			}
		}
		in.sleep(mechanicSearchDelay)
	}

	span.SetAttributes(attribute.Int("mechanics.created", created))
	slog.Info("mechanic harvest complete", "created", created)
	return created, nil
}
