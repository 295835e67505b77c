package db

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_games_table",
		Up: `
			CREATE TABLE IF NOT EXISTS games (
				id BIGSERIAL PRIMARY KEY,
				external_id BIGINT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				slug TEXT NOT NULL,
				year INTEGER,
				min_players INTEGER,
				max_players INTEGER,
				playing_time INTEGER,
				weight DOUBLE PRECISION,
				rating DOUBLE PRECISION,
				thumbnail_url TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ DEFAULT NOW(),
				updated_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_games_slug ON games(slug);
			CREATE INDEX IF NOT EXISTS idx_games_rating ON games(rating);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_games_rating;
			DROP INDEX IF EXISTS idx_games_slug;
			DROP TABLE IF EXISTS games;
		`,
	},
	{
		Version: 2,
		Name:    "create_mechanics_table",
		Up: `
			CREATE TABLE IF NOT EXISTS mechanics (
				id BIGSERIAL PRIMARY KEY,
				external_id BIGINT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				mentions_count INTEGER NOT NULL DEFAULT 0,
				is_common BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				updated_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_mechanics_is_common ON mechanics(is_common);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_mechanics_is_common;
			DROP TABLE IF EXISTS mechanics;
		`,
	},
	{
		Version: 3,
		Name:    "create_game_mechanics_table",
		Up: `
			CREATE TABLE IF NOT EXISTS game_mechanics (
				game_external_id BIGINT NOT NULL REFERENCES games(external_id) ON DELETE CASCADE,
				mechanic_external_id BIGINT NOT NULL REFERENCES mechanics(external_id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				PRIMARY KEY (game_external_id, mechanic_external_id)
			);
			CREATE INDEX IF NOT EXISTS idx_game_mechanics_mechanic ON game_mechanics(mechanic_external_id);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_game_mechanics_mechanic;
			DROP TABLE IF EXISTS game_mechanics;
		`,
	},
}

// Migrate runs all pending migrations
func Migrate(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	sortedMigrations := make([]Migration, len(migrations))
	copy(sortedMigrations, migrations)
	sort.Slice(sortedMigrations, func(i, j int) bool {
		return sortedMigrations[i].Version < sortedMigrations[j].Version
	})

	for _, m := range sortedMigrations {
		if m.Version <= currentVersion {
			continue
		}
		if err := runMigration(db, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// getCurrentVersion returns the current migration version
func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration in a transaction
func runMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// Rollback rolls back the last migration
func Rollback(db *sql.DB) error {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion == 0 {
		return fmt.Errorf("no migrations to roll back")
	}

	var target Migration
	found := false
	for _, m := range migrations {
		if m.Version == currentVersion {
			target = m
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(target.Down); err != nil {
		return fmt.Errorf("failed to execute rollback SQL: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", target.Version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit()
}
