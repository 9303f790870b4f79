package store

import (
	"sync"

	"github.com/set-night/saboteur/internal/game"
)

// GameStore holds the live game engine for each chat. Sessions are
// ephemeral: nothing survives a restart.
type GameStore struct {
	mu    sync.RWMutex
	games map[int64]*game.Engine
}

func NewGameStore() *GameStore {
	return &GameStore{games: make(map[int64]*game.Engine)}
}

// Get retrieves the engine for a chat.
func (s *GameStore) Get(chatID int64) (*game.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eng, ok := s.games[chatID]
	return eng, ok
}

// GetOrCreate returns the chat's engine, building one with create on
// first use. Create runs under the lock at most once per chat.
func (s *GameStore) GetOrCreate(chatID int64, create func() *game.Engine) *game.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eng, ok := s.games[chatID]; ok {
		return eng
	}
	eng := create()
	s.games[chatID] = eng
	return eng
}

// Delete removes the chat's engine.
func (s *GameStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, chatID)
}

// Count returns the number of live sessions.
func (s *GameStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}
