package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/meepledex/harvester/models"
)

// DB wraps the database connection and provides data access methods
type DB struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new database connection and runs pending migrations
func New(config Config) (*DB, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (db *DB) DB() *sql.DB {
	return db.conn
}

// GetOrCreateGame inserts the game unless a row with its external ID
// already exists. Existing rows keep their stored values.
func (db *DB) GetOrCreateGame(game *models.Game) (bool, error) {
	result, err := db.conn.Exec(`
		INSERT INTO games (external_id, name, slug, year, min_players, max_players,
			playing_time, weight, rating, thumbnail_url, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_id) DO NOTHING`,
		game.ExternalID, game.Name, game.Slug, game.Year, game.MinPlayers,
		game.MaxPlayers, game.PlayingTime, game.Weight, game.Rating,
		game.ThumbnailURL, game.Description,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert game: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows == 1, nil
}

// GetOrCreateMechanic inserts the mechanic unless a row with its
// external ID already exists.
func (db *DB) GetOrCreateMechanic(mechanic *models.Mechanic) (bool, error) {
	result, err := db.conn.Exec(`
		INSERT INTO mechanics (external_id, name)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO NOTHING`,
		mechanic.ExternalID, mechanic.Name,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert mechanic: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows == 1, nil
}

// LinkGameMechanic records that a game uses a mechanic
func (db *DB) LinkGameMechanic(gameID, mechanicID int64) error {
	_, err := db.conn.Exec(`
		INSERT INTO game_mechanics (game_external_id, mechanic_external_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		gameID, mechanicID,
	)
	if err != nil {
		return fmt.Errorf("failed to link game %d to mechanic %d: %w", gameID, mechanicID, err)
	}
	return nil
}

// OverwriteMentionCounts replaces the stored mention count for every
// mechanic present in counts, in a single transaction.
func (db *DB) OverwriteMentionCounts(counts map[int64]int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for id, count := range counts {
		if _, err := tx.Exec(`
			UPDATE mechanics SET mentions_count = $1, updated_at = NOW()
			WHERE external_id = $2`,
			count, id,
		); err != nil {
			return fmt.Errorf("failed to update mention count for mechanic %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// ResetCommonFlags clears the common flag on all mechanics
func (db *DB) ResetCommonFlags() error {
	_, err := db.conn.Exec(`UPDATE mechanics SET is_common = FALSE, updated_at = NOW() WHERE is_common`)
	if err != nil {
		return fmt.Errorf("failed to reset common flags: %w", err)
	}
	return nil
}

// MarkCommon sets the common flag on the given mechanics
func (db *DB) MarkCommon(mechanicIDs []int64) error {
	if len(mechanicIDs) == 0 {
		return nil
	}
	_, err := db.conn.Exec(`
		UPDATE mechanics SET is_common = TRUE, updated_at = NOW()
		WHERE external_id = ANY($1)`,
		pq.Array(mechanicIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to mark common mechanics: %w", err)
	}
	return nil
}

// ListMechanics returns all mechanics ordered by name
func (db *DB) ListMechanics() ([]models.Mechanic, error) {
	rows, err := db.conn.Query(`
		SELECT external_id, name, mentions_count, is_common
		FROM mechanics ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mechanics: %w", err)
	}
	defer rows.Close()

	var mechanics []models.Mechanic
	for rows.Next() {
		var m models.Mechanic
		if err := rows.Scan(&m.ExternalID, &m.Name, &m.MentionsCount, &m.IsCommon); err != nil {
			return nil, fmt.Errorf("failed to scan mechanic: %w", err)
		}
		mechanics = append(mechanics, m)
	}
	return mechanics, rows.Err()
}

// CountMechanicUsage returns, per mechanic, how many distinct games use
// it. Mechanics linked to no game appear with a count of zero.
func (db *DB) CountMechanicUsage() (map[int64]int, error) {
	rows, err := db.conn.Query(`
		SELECT m.external_id, COUNT(DISTINCT gm.game_external_id)
		FROM mechanics m
		LEFT JOIN game_mechanics gm ON gm.mechanic_external_id = m.external_id
		GROUP BY m.external_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mechanic usage: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mechanic usage: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// CountGames returns the total number of stored games
func (db *DB) CountGames() (int, error) {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM games").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

// FilterGames returns games matching every bound set in filter, ordered
// by rating descending. An empty filter returns everything. A game
// matches the mechanics bound when it uses any of the listed mechanics.
func (db *DB) FilterGames(filter models.GameFilter) ([]models.Game, error) {
	var conditions []string
	var args []interface{}

	addBound := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.MinPlayers != nil {
		addBound("min_players >= $%d", *filter.MinPlayers)
	}
	if filter.MaxPlayers != nil {
		addBound("max_players <= $%d", *filter.MaxPlayers)
	}
	if filter.MinPlayingTime != nil {
		addBound("playing_time >= $%d", *filter.MinPlayingTime)
	}
	if filter.MaxPlayingTime != nil {
		addBound("playing_time <= $%d", *filter.MaxPlayingTime)
	}
	if filter.MinWeight != nil {
		addBound("weight >= $%d", *filter.MinWeight)
	}
	if filter.MaxWeight != nil {
		addBound("weight <= $%d", *filter.MaxWeight)
	}
	if filter.MinRating != nil {
		addBound("rating >= $%d", *filter.MinRating)
	}
	if filter.MaxRating != nil {
		addBound("rating <= $%d", *filter.MaxRating)
	}
	if len(filter.MechanicIDs) > 0 {
		addBound(`external_id IN (
			SELECT game_external_id FROM game_mechanics
			WHERE mechanic_external_id = ANY($%d))`, pq.Array(filter.MechanicIDs))
	}

	query := `
		SELECT external_id, name, slug, year, min_players, max_players,
			playing_time, weight, rating, thumbnail_url, description
		FROM games`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rating DESC NULLS LAST, name"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(&g.ExternalID, &g.Name, &g.Slug, &g.Year, &g.MinPlayers,
			&g.MaxPlayers, &g.PlayingTime, &g.Weight, &g.Rating,
			&g.ThumbnailURL, &g.Description); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
