package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meepledex/harvester/models"
)

// Store is the read surface the API serves from
type Store interface {
	FilterGames(filter models.GameFilter) ([]models.Game, error)
	ListMechanics() ([]models.Mechanic, error)
	CountGames() (int, error)
}

// Server represents the API server
type Server struct {
	store       Store
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	corsEnabled bool
}

// Config contains server configuration
type Config struct {
	Addr        string
	CORSEnabled bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		CORSEnabled: true,
	}
}

// NewServer creates a new API server
func NewServer(config Config, store Store) *Server {
	s := &Server{
		store:       store,
		addr:        config.Addr,
		mux:         http.NewServeMux(),
		corsEnabled: config.CORSEnabled,
	}

	// Register routes
	s.registerRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.middleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/games", s.handleGames)
	s.mux.HandleFunc("/api/mechanics", s.handleMechanics)
}

// Start starts the API server
func (s *Server) Start() error {
	slog.Info("starting API server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Handler returns the server's HTTP handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// middleware applies common middleware to all routes
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS headers
		if s.corsEnabled {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// Logging (skip health checks to reduce noise)
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := s.store.CountGames()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"games":  count,
		"time":   time.Now(),
	})
}

// handleGames lists games filtered by the query parameters. Numeric
// bounds are inclusive; mechanics takes a comma-separated list of
// mechanic IDs and matches games using any of them.
func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	games, err := s.store.FilterGames(filter)
	if err != nil {
		slog.Error("failed to filter games", "error", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if games == nil {
		games = []models.Game{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

// handleMechanics lists mechanics with mention counts and common flags.
// When any mechanic is flagged common, only those are returned; an
// unscored dictionary falls back to the full list.
func (s *Server) handleMechanics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	mechanics, err := s.store.ListMechanics()
	if err != nil {
		slog.Error("failed to list mechanics", "error", err)
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	var common []models.Mechanic
	for _, m := range mechanics {
		if m.IsCommon {
			common = append(common, m)
		}
	}
	if len(common) > 0 {
		mechanics = common
	}
	if mechanics == nil {
		mechanics = []models.Mechanic{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"mechanics": mechanics,
		"count":     len(mechanics),
	})
}

func filterFromQuery(r *http.Request) (models.GameFilter, error) {
	var filter models.GameFilter
	q := r.URL.Query()

	intParam := func(name string, dest **int) error {
		value := q.Get(name)
		if value == "" {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer", name)
		}
		*dest = &n
		return nil
	}
	floatParam := func(name string, dest **float64) error {
		value := q.Get(name)
		if value == "" {
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number", name)
		}
		*dest = &f
		return nil
	}

	for _, p := range []struct {
		name string
		dest **int
	}{
		{"min_players", &filter.MinPlayers},
		{"max_players", &filter.MaxPlayers},
		{"min_playing_time", &filter.MinPlayingTime},
		{"max_playing_time", &filter.MaxPlayingTime},
	} {
		if err := intParam(p.name, p.dest); err != nil {
			return filter, err
		}
	}
	for _, p := range []struct {
		name string
		dest **float64
	}{
		{"min_weight", &filter.MinWeight},
		{"max_weight", &filter.MaxWeight},
		{"min_rating", &filter.MinRating},
		{"max_rating", &filter.MaxRating},
	} {
		if err := floatParam(p.name, p.dest); err != nil {
			return filter, err
		}
	}

	if mechanics := q.Get("mechanics"); mechanics != "" {
		for _, part := range strings.Split(mechanics, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return filter, fmt.Errorf("mechanics must be a comma-separated list of IDs")
			}
			filter.MechanicIDs = append(filter.MechanicIDs, id)
		}
	}

	return filter, nil
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
