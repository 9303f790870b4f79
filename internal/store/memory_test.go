package store

import (
	"sync"
	"testing"

	"github.com/set-night/saboteur/internal/game"
	"github.com/stretchr/testify/assert"
)

func TestGameStore(t *testing.T) {
	s := NewGameStore()

	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count())

	created := 0
	eng := s.GetOrCreate(1, func() *game.Engine {
		created++
		return game.New(nil, nil, game.Timing{})
	})
	assert.NotNil(t, eng)

	again := s.GetOrCreate(1, func() *game.Engine {
		created++
		return game.New(nil, nil, game.Timing{})
	})
	assert.Same(t, eng, again)
	assert.Equal(t, 1, created, "create runs once per chat")
	assert.Equal(t, 1, s.Count())

	s.Delete(1)
	_, ok = s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count())
}

func TestGameStoreConcurrentGetOrCreate(t *testing.T) {
	s := NewGameStore()

	var wg sync.WaitGroup
	engines := make([]*game.Engine, 16)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i] = s.GetOrCreate(42, func() *game.Engine {
				return game.New(nil, nil, game.Timing{})
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Count())
	for _, eng := range engines {
		assert.Same(t, engines[0], eng)
	}
}
