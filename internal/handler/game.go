package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/saboteur/internal/domain"
	"github.com/set-night/saboteur/internal/middleware"
	tg "github.com/set-night/saboteur/internal/telegram"
)

// handleStart begins a new game in this chat.
func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	eng := middleware.GetEngine(ctx)
	if eng == nil || update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	switch phase := eng.Phase(); {
	case phase.Terminal():
		eng.PlayAgain()
	case phase != domain.PhaseWelcome:
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "🕵️ A game is already in progress. Finish it first, or /again after it ends.",
		})
		return
	}

	eng.StartGame(ctx)
}

// HandleText routes a plain discussion message to the game.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	msg := update.Message

	// Skip commands
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	eng := middleware.GetEngine(ctx)
	if eng == nil {
		return
	}
	chatID := msg.Chat.ID

	snap := eng.Snapshot()
	switch {
	case snap.Phase == domain.PhaseWelcome:
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "👋 No game running. Send /start to open the office.",
		})
		return
	case snap.Phase == domain.PhaseVoting:
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "🗳️ The vote is open. Pick a name from the ballot.",
		})
		return
	case snap.Busy:
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "⏳ Your coworkers are still typing.",
		})
		return
	}

	stopTyping := tg.StartTyping(ctx, b, chatID)
	defer stopTyping()

	// Addressing the bot directly reads as addressing the room.
	text := strings.ReplaceAll(msg.Text, "@"+h.botUsername, "")

	// Blocks until every reply has been streamed into the transcript;
	// the renderer delivers them as they land.
	eng.SendPlayerMessage(ctx, text)
}

// handleVote opens the voting phase and shows the ballot.
func (h *Handler) handleVote(ctx context.Context, b *bot.Bot, update *models.Update) {
	eng := middleware.GetEngine(ctx)
	if eng == nil || update.Message == nil {
		return
	}

	eng.StartVoting()

	if eng.Phase() != domain.PhaseVoting {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "🤷 Nothing to vote on right now.",
		})
	}
}

// handleVoteCallback submits the player's ballot from the inline keyboard.
func (h *Handler) handleVoteCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerCallback(ctx, update)

	eng := middleware.GetEngine(ctx)
	if eng == nil || update.CallbackQuery == nil {
		return
	}
	name := strings.TrimPrefix(update.CallbackQuery.Data, "vote_")
	if name == "" {
		return
	}

	eng.SubmitVote(ctx, name)
}

// handleContinue is the manual step out of the character briefing.
func (h *Handler) handleContinue(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerCallback(ctx, update)

	if eng := middleware.GetEngine(ctx); eng != nil {
		eng.ContinueToDiscussion()
	}
}

// handleAgain resets a finished game and immediately starts a new one.
func (h *Handler) handleAgain(ctx context.Context, b *bot.Bot, update *models.Update) {
	eng := middleware.GetEngine(ctx)
	if eng == nil || update.Message == nil {
		return
	}

	if !eng.Phase().Terminal() {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "🕵️ This game isn't over yet.",
		})
		return
	}

	eng.PlayAgain()
	eng.StartGame(ctx)
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text: "🕵️ Someone sabotaged the office.\n\n" +
			"/start — open the office and meet the suspects\n" +
			"Chat normally to question your coworkers.\n" +
			"/vote — call a vote when you think you know who did it\n" +
			"/again — play another round after a game ends",
	})
}

// handleCost reports accumulated API spend. Admin only.
func (h *Handler) handleCost(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if !h.cfg.IsAdmin(update.Message.From.ID) {
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text: fmt.Sprintf("💰 Total API cost: $%s across %d live sessions",
			h.ai.TotalCost().StringFixed(4), h.games.Count()),
	})
}
