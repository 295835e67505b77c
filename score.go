package harvester

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/meepledex/harvester/models"
)

// Scorer counts mechanic name mentions in collected page text and flags
// the most-mentioned mechanics as common.
type Scorer struct {
	store Store
}

// NewScorer creates a new Scorer
func NewScorer(store Store) *Scorer {
	return &Scorer{store: store}
}

// Score counts whole-word, case-insensitive mentions of each mechanic
// name across pages, persists the counts and re-flags the top mechanics.
// The selection takes at most topK mechanics with at least minCount
// mentions, ordered by count descending with name ascending as the
// tie-break. Returns the selected mechanics.
func (s *Scorer) Score(mechanics []models.Mechanic, pages []models.PageText, topK, minCount int) ([]models.Mechanic, error) {
	type compiled struct {
		id      int64
		pattern *regexp.Regexp
	}
	patterns := make([]compiled, 0, len(mechanics))
	for _, m := range mechanics {
		if m.Name == "" {
			continue
		}
		patterns = append(patterns, compiled{
			id:      m.ExternalID,
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(m.Name) + `\b`),
		})
	}

	counts := make(map[int64]int, len(patterns))
	for _, p := range patterns {
		counts[p.id] = 0
	}
	for _, page := range pages {
		for _, p := range patterns {
			counts[p.id] += len(p.pattern.FindAllStringIndex(page.Text, -1))
		}
	}

	return s.Apply(mechanics, counts, topK, minCount)
}

// Apply persists counts and recomputes common flags from scratch: all
// flags are cleared first, so mechanics flagged in a previous run that
// fell out of the selection lose the flag.
func (s *Scorer) Apply(mechanics []models.Mechanic, counts map[int64]int, topK, minCount int) ([]models.Mechanic, error) {
	if err := s.store.ResetCommonFlags(); err != nil {
		return nil, fmt.Errorf("resetting common flags: %w", err)
	}
	if err := s.store.OverwriteMentionCounts(counts); err != nil {
		return nil, fmt.Errorf("storing mention counts: %w", err)
	}

	eligible := make([]models.Mechanic, 0, len(mechanics))
	for _, m := range mechanics {
		count, ok := counts[m.ExternalID]
		if !ok || count < minCount {
			continue
		}
		m.MentionsCount = count
		eligible = append(eligible, m)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].MentionsCount != eligible[j].MentionsCount {
			return eligible[i].MentionsCount > eligible[j].MentionsCount
		}
		return eligible[i].Name < eligible[j].Name
	})
	if topK >= 0 && len(eligible) > topK {
		eligible = eligible[:topK]
	}

	ids := make([]int64, len(eligible))
	for i := range eligible {
		eligible[i].IsCommon = true
		ids[i] = eligible[i].ExternalID
	}
	if err := s.store.MarkCommon(ids); err != nil {
		return nil, fmt.Errorf("marking common mechanics: %w", err)
	}

	slog.Info("scored mechanics", "scored", len(counts), "common", len(eligible))
	return eligible, nil
}
