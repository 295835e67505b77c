package harvester

import (
	"github.com/meepledex/harvester/models"
)

// memStore is an in-memory Store for tests
type memStore struct {
	games     map[int64]*models.Game
	mechanics map[int64]*models.Mechanic
	links     map[[2]int64]bool
	resets    int
}

func newMemStore() *memStore {
	return &memStore{
		games:     make(map[int64]*models.Game),
		mechanics: make(map[int64]*models.Mechanic),
		links:     make(map[[2]int64]bool),
	}
}

func (m *memStore) GetOrCreateGame(game *models.Game) (bool, error) {
	if _, ok := m.games[game.ExternalID]; ok {
		return false, nil
	}
	copied := *game
	m.games[game.ExternalID] = &copied
	return true, nil
}

func (m *memStore) GetOrCreateMechanic(mechanic *models.Mechanic) (bool, error) {
	if _, ok := m.mechanics[mechanic.ExternalID]; ok {
		return false, nil
	}
	copied := *mechanic
	m.mechanics[mechanic.ExternalID] = &copied
	return true, nil
}

func (m *memStore) LinkGameMechanic(gameID, mechanicID int64) error {
	m.links[[2]int64{gameID, mechanicID}] = true
	return nil
}

func (m *memStore) OverwriteMentionCounts(counts map[int64]int) error {
	for id, count := range counts {
		if mech, ok := m.mechanics[id]; ok {
			mech.MentionsCount = count
		}
	}
	return nil
}

func (m *memStore) ResetCommonFlags() error {
	m.resets++
	for _, mech := range m.mechanics {
		mech.IsCommon = false
	}
	return nil
}

func (m *memStore) MarkCommon(mechanicIDs []int64) error {
	for _, id := range mechanicIDs {
		if mech, ok := m.mechanics[id]; ok {
			mech.IsCommon = true
		}
	}
	return nil
}
