package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/saboteur/internal/config"
	"github.com/set-night/saboteur/internal/game"
	"github.com/set-night/saboteur/internal/handler"
	"github.com/set-night/saboteur/internal/middleware"
	"github.com/set-night/saboteur/internal/service"
	"github.com/set-night/saboteur/internal/store"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	openRouter := service.NewOpenRouterService(cfg.OpenRouterKey)
	gateway := service.NewAIGateway(openRouter, cfg)
	games := store.NewGameStore()

	// The engine factory captures the bot pointer, which is assigned
	// below; engines are only created once updates arrive.
	var b *bot.Bot
	newEngine := func(chatID int64) *game.Engine {
		r := handler.NewRenderer(b, chatID)
		eng := game.New(gateway, r, game.DefaultTiming())
		r.Bind(eng)
		return eng
	}

	// Handler pointer for use in the default handler closure
	var h *handler.Handler

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.RateLimit(),
			middleware.SessionLoader(games, newEngine),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil || update.Message == nil {
				return
			}
			// Skip commands
			if strings.HasPrefix(update.Message.Text, "/") {
				return
			}
			h.HandleText(ctx, b, update)
		}),
	}

	b, err = bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Games:       games,
		AI:          openRouter,
		BotUsername: me.Username,
	})

	// Register all handlers
	h.Register()

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully", "total_cost", openRouter.TotalCost().StringFixed(4))
}
