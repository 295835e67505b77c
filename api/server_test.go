package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meepledex/harvester/models"
)

// fakeStore implements Store for handler tests
type fakeStore struct {
	games      []models.Game
	mechanics  []models.Mechanic
	lastFilter models.GameFilter
}

func (f *fakeStore) FilterGames(filter models.GameFilter) ([]models.Game, error) {
	f.lastFilter = filter
	return f.games, nil
}

func (f *fakeStore) ListMechanics() ([]models.Mechanic, error) {
	return f.mechanics, nil
}

func (f *fakeStore) CountGames() (int, error) {
	return len(f.games), nil
}

func newTestServer(store Store) *Server {
	return NewServer(Config{Addr: ":0", CORSEnabled: true}, store)
}

func TestHandleHealth(t *testing.T) {
	store := &fakeStore{games: []models.Game{{ExternalID: 1}, {ExternalID: 2}}}
	server := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", body["status"])
	}
	if body["games"] != float64(2) {
		t.Errorf("Expected 2 games, got %v", body["games"])
	}
}

func TestHandleHealthMethodNotAllowed(t *testing.T) {
	server := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected status 405, got %d", w.Code)
	}
}

func TestHandleGamesFilterParsing(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		check  func(t *testing.T, f models.GameFilter)
		status int
	}{
		{
			name:   "no filters",
			query:  "",
			status: http.StatusOK,
			check: func(t *testing.T, f models.GameFilter) {
				if f.MinPlayers != nil || f.MaxPlayers != nil || len(f.MechanicIDs) != 0 {
					t.Errorf("Expected empty filter, got %+v", f)
				}
			},
		},
		{
			name:   "player bounds",
			query:  "?min_players=2&max_players=4",
			status: http.StatusOK,
			check: func(t *testing.T, f models.GameFilter) {
				if f.MinPlayers == nil || *f.MinPlayers != 2 {
					t.Errorf("Expected min_players 2, got %v", f.MinPlayers)
				}
				if f.MaxPlayers == nil || *f.MaxPlayers != 4 {
					t.Errorf("Expected max_players 4, got %v", f.MaxPlayers)
				}
			},
		},
		{
			name:   "weight and rating bounds",
			query:  "?min_weight=1.5&max_rating=8.2",
			status: http.StatusOK,
			check: func(t *testing.T, f models.GameFilter) {
				if f.MinWeight == nil || *f.MinWeight != 1.5 {
					t.Errorf("Expected min_weight 1.5, got %v", f.MinWeight)
				}
				if f.MaxRating == nil || *f.MaxRating != 8.2 {
					t.Errorf("Expected max_rating 8.2, got %v", f.MaxRating)
				}
			},
		},
		{
			name:   "mechanics list",
			query:  "?mechanics=2001,2015",
			status: http.StatusOK,
			check: func(t *testing.T, f models.GameFilter) {
				if len(f.MechanicIDs) != 2 || f.MechanicIDs[0] != 2001 || f.MechanicIDs[1] != 2015 {
					t.Errorf("Expected mechanics [2001 2015], got %v", f.MechanicIDs)
				}
			},
		},
		{
			name:   "bad integer",
			query:  "?min_players=two",
			status: http.StatusBadRequest,
		},
		{
			name:   "bad mechanics list",
			query:  "?mechanics=2001,abc",
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			server := newTestServer(store)

			req := httptest.NewRequest(http.MethodGet, "/api/games"+tt.query, nil)
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, store.lastFilter)
			}
		})
	}
}

func TestHandleGamesResponse(t *testing.T) {
	rating := 8.5
	store := &fakeStore{games: []models.Game{
		{ExternalID: 174430, Name: "Gloomhaven", Slug: "gloomhaven", Rating: &rating},
	}}
	server := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Games []models.Game `json:"games"`
		Count int           `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Count != 1 || len(body.Games) != 1 {
		t.Fatalf("Expected 1 game, got count=%d len=%d", body.Count, len(body.Games))
	}
	if body.Games[0].Name != "Gloomhaven" {
		t.Errorf("Expected Gloomhaven, got %q", body.Games[0].Name)
	}
}

func TestHandleGamesEmptyResult(t *testing.T) {
	server := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if string(body["games"]) != "[]" {
		t.Errorf("Expected empty array, got %s", body["games"])
	}
}

func TestHandleMechanicsPrefersCommon(t *testing.T) {
	store := &fakeStore{mechanics: []models.Mechanic{
		{ExternalID: 2001, Name: "Area Control", MentionsCount: 12, IsCommon: true},
		{ExternalID: 2015, Name: "Worker Placement", MentionsCount: 3},
	}}
	server := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/mechanics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Mechanics []models.Mechanic `json:"mechanics"`
		Count     int               `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("Expected the common mechanic only, got %d", body.Count)
	}
	if body.Mechanics[0].Name != "Area Control" {
		t.Errorf("Expected Area Control, got %q", body.Mechanics[0].Name)
	}
}

func TestHandleMechanicsFallsBackToAll(t *testing.T) {
	store := &fakeStore{mechanics: []models.Mechanic{
		{ExternalID: 2001, Name: "Area Control", MentionsCount: 12},
		{ExternalID: 2015, Name: "Worker Placement", MentionsCount: 3},
	}}
	server := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/mechanics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Mechanics []models.Mechanic `json:"mechanics"`
		Count     int               `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("Expected all mechanics when none are common, got %d", body.Count)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected CORS origin header to be set")
	}
}
