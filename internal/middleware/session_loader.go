package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/saboteur/internal/game"
	"github.com/set-night/saboteur/internal/store"
)

type ctxKey string

const engineKey ctxKey = "engine"

// SessionLoader returns middleware that resolves the chat's game engine,
// creating one on first contact, and injects it into the context.
func SessionLoader(games *store.GameStore, newEngine func(chatID int64) *game.Engine) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if id := chatID(update); id != 0 {
				eng := games.GetOrCreate(id, func() *game.Engine {
					return newEngine(id)
				})
				ctx = context.WithValue(ctx, engineKey, eng)
			}
			next(ctx, b, update)
		}
	}
}

// GetEngine returns the engine loaded for this update, or nil.
func GetEngine(ctx context.Context) *game.Engine {
	eng, _ := ctx.Value(engineKey).(*game.Engine)
	return eng
}
