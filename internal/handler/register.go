package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/vote", bot.MatchTypePrefix, h.handleVote)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/again", bot.MatchTypePrefix, h.handleAgain)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleHelp)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cost", bot.MatchTypePrefix, h.handleCost)

	// Game callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "continue", bot.MatchTypeExact, h.handleContinue)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "vote_", bot.MatchTypePrefix, h.handleVoteCallback)
}

// answerCallback acknowledges a callback query so the client stops
// showing a spinner.
func (h *Handler) answerCallback(ctx context.Context, update *models.Update) {
	if update.CallbackQuery != nil {
		h.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
	}
}
