package models

// Game is a board game record keyed by the catalog's external id.
// Optional numeric fields are pointers: nil means the source did not
// provide a usable value. Identity fields are written once at creation
// and never refreshed by later ingestion passes.
type Game struct {
	ExternalID   int64    `json:"external_id"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug,omitempty"`
	Year         *int     `json:"year,omitempty"`
	MinPlayers   *int     `json:"min_players,omitempty"`
	MaxPlayers   *int     `json:"max_players,omitempty"`
	PlayingTime  *int     `json:"playing_time,omitempty"` // minutes
	Weight       *float64 `json:"weight,omitempty"`       // complexity rating
	Rating       *float64 `json:"rating,omitempty"`       // average user score
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// Mechanic is a gameplay-rule category. MentionsCount and IsCommon are
// derived scoring fields, fully recomputed on every scoring pass.
type Mechanic struct {
	ExternalID    int64  `json:"external_id"`
	Name          string `json:"name"`
	MentionsCount int    `json:"mentions_count"`
	IsCommon      bool   `json:"is_common"`
}

// PageText is one crawled page's visible text.
type PageText struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// PageStats reports how a single listing page parsed during discovery.
type PageStats struct {
	Page    int `json:"page"`
	Found   int `json:"found"`
	Skipped int `json:"skipped"`
}

// GameFilter holds the optional range bounds and mechanic set accepted
// by the query endpoint. Nil bounds are not applied. MechanicIDs selects
// games linked to at least one of the given mechanics.
type GameFilter struct {
	MinPlayers     *int
	MaxPlayers     *int
	MinPlayingTime *int
	MaxPlayingTime *int
	MinWeight      *float64
	MaxWeight      *float64
	MinRating      *float64
	MaxRating      *float64
	MechanicIDs    []int64
}
