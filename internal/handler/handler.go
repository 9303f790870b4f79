package handler

import (
	"github.com/go-telegram/bot"
	"github.com/set-night/saboteur/internal/config"
	"github.com/set-night/saboteur/internal/service"
	"github.com/set-night/saboteur/internal/store"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot         *bot.Bot
	cfg         *config.Config
	games       *store.GameStore
	ai          *service.OpenRouterService
	botUsername string
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Games       *store.GameStore
	AI          *service.OpenRouterService
	BotUsername string
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:         deps.Bot,
		cfg:         deps.Cfg,
		games:       deps.Games,
		ai:          deps.AI,
		botUsername: deps.BotUsername,
	}
}
