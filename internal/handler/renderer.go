package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/saboteur/internal/domain"
	"github.com/set-night/saboteur/internal/game"
	tg "github.com/set-night/saboteur/internal/telegram"
)

// Renderer delivers engine updates to one Telegram chat. It implements
// game.Sink; the engine calls it from its own goroutines, so every send
// uses a background context rather than a dead update context.
type Renderer struct {
	bot    *bot.Bot
	chatID int64
	eng    *game.Engine
}

func NewRenderer(b *bot.Bot, chatID int64) *Renderer {
	return &Renderer{bot: b, chatID: chatID}
}

// Bind attaches the engine so the renderer can read snapshots. Called
// once, immediately after the engine is constructed.
func (r *Renderer) Bind(eng *game.Engine) {
	r.eng = eng
}

func (r *Renderer) PhaseChanged(phase domain.Phase) {
	ctx := context.Background()
	switch phase {
	case domain.PhaseSettingUp:
		r.send(ctx, "🕵️ Something happened at the office overnight. Unlocking the doors...")
	case domain.PhaseDiscussion:
		r.send(ctx, "💬 The floor is open. Question your coworkers — /vote when you think you know who did it.")
	case domain.PhaseVoting:
		r.sendBallot(ctx)
	case domain.PhaseReveal:
		r.send(ctx, "🤫 The votes are in.")
	case domain.PhaseGameOverWin:
		r.send(ctx, "🏆 You win! /again for another day at the office.")
	case domain.PhaseGameOverLoss:
		r.send(ctx, "💀 You lose. /again for another day at the office.")
	case domain.PhaseWelcome:
		r.send(ctx, "👋 Ready when you are. /start to begin.")
	}
}

func (r *Renderer) MessageAppended(msg domain.Message) {
	ctx := context.Background()
	var text string
	switch {
	case msg.IsPrivate:
		text = fmt.Sprintf("🤫 _%s_", msg.Text)
	case msg.IsSpecial:
		text = fmt.Sprintf("🚨 %s", msg.Text)
	case msg.Sender == domain.SenderSystem:
		text = msg.Text
	default:
		text = fmt.Sprintf("*%s:* %s", msg.Sender, msg.Text)
	}
	if err := tg.SendLongMessage(ctx, r.bot, r.chatID, text); err != nil {
		slog.Error("render message", "error", err, "chat_id", r.chatID)
	}
}

func (r *Renderer) BriefingProgress(c domain.Character, revealed, total int) {
	ctx := context.Background()

	card := fmt.Sprintf("👤 *%s* — %s\n_%s_", c.Name, c.Position, c.Personality)
	if c.Portrait != nil {
		if err := tg.SendImage(ctx, r.bot, r.chatID, c.Portrait, fmt.Sprintf("%s — %s", c.Name, c.Position)); err == nil {
			card = fmt.Sprintf("_%s_", c.Personality)
		}
	}
	if err := tg.SendLongMessage(ctx, r.bot, r.chatID, card); err != nil {
		slog.Error("render briefing card", "error", err, "chat_id", r.chatID)
	}

	if revealed == total {
		r.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      r.chatID,
			Text:        "That's everyone.",
			ReplyMarkup: tg.InlineKeyboard(tg.ButtonRow(tg.InlineButton("🚪 Step into the office", "continue"))),
		})
	}
}

func (r *Renderer) CharacterUpdated(c domain.Character) {
	if c.Status == domain.StatusVotedOut || c.Portrait == nil {
		return
	}
	// Portraits that finish during setup or the briefing would spoil the
	// one-at-a-time reveal; the briefing card carries them instead.
	if r.eng != nil {
		if p := r.eng.Phase(); p == domain.PhaseSettingUp || p == domain.PhaseBriefing {
			return
		}
	}
	if err := tg.SendImage(context.Background(), r.bot, r.chatID, c.Portrait, fmt.Sprintf("%s — %s", c.Name, c.Position)); err != nil {
		slog.Warn("render portrait", "error", err, "chat_id", r.chatID)
	}
}

func (r *Renderer) SceneImageUpdated(msg domain.Message) {
	caption := msg.Text
	if len([]rune(caption)) > 1000 {
		caption = string([]rune(caption)[:997]) + "..."
	}
	if err := tg.SendImage(context.Background(), r.bot, r.chatID, msg.Image, caption); err != nil {
		slog.Warn("render scene image", "error", err, "chat_id", r.chatID)
	}
}

func (r *Renderer) VoteRevealStart(voter, votedFor string) {
	// A typing burst stands in for the accusation animation.
	r.bot.SendChatAction(context.Background(), &bot.SendChatActionParams{
		ChatID: r.chatID,
		Action: models.ChatActionTyping,
	})
}

func (r *Renderer) VoteRevealEnd(voter, votedFor string) {}

func (r *Renderer) sendBallot(ctx context.Context) {
	if r.eng == nil {
		return
	}
	snap := r.eng.Snapshot()

	var rows [][]models.InlineKeyboardButton
	for _, c := range snap.Characters {
		if !c.Active() || c.IsPlayer {
			continue
		}
		rows = append(rows, tg.ButtonRow(tg.InlineButton(
			fmt.Sprintf("%s — %s", c.Name, c.Position),
			"vote_"+c.Name,
		)))
	}
	if len(rows) == 0 {
		return
	}

	r.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      r.chatID,
		Text:        "🗳️ Who sabotaged the office?",
		ReplyMarkup: tg.InlineKeyboard(rows...),
	})
}

func (r *Renderer) send(ctx context.Context, text string) {
	if _, err := r.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: r.chatID, Text: text}); err != nil {
		slog.Error("send status message", "error", err, "chat_id", r.chatID)
	}
}
