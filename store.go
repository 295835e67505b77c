package harvester

import "github.com/meepledex/harvester/models"

// Store is the persistence surface the harvester writes through.
// Get-or-create operations report whether a row was created; existing
// rows are never updated, so the first harvested version of a record
// wins.
type Store interface {
	// GetOrCreateGame inserts game if no row with its external ID
	// exists. Returns true when a new row was created.
	GetOrCreateGame(game *models.Game) (bool, error)

	// GetOrCreateMechanic inserts mechanic if no row with its external
	// ID exists. Returns true when a new row was created.
	GetOrCreateMechanic(mechanic *models.Mechanic) (bool, error)

	// LinkGameMechanic records that a game uses a mechanic. Linking the
	// same pair twice is a no-op.
	LinkGameMechanic(gameID, mechanicID int64) error

	// OverwriteMentionCounts replaces the stored mention count for every
	// mechanic present in counts.
	OverwriteMentionCounts(counts map[int64]int) error

	// ResetCommonFlags clears the common flag on all mechanics.
	ResetCommonFlags() error

	// MarkCommon sets the common flag on the mechanics with the given
	// external IDs.
	MarkCommon(mechanicIDs []int64) error
}
