package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/saboteur/internal/config"
)

// slidingWindow counts events per chat over a rolling interval.
type slidingWindow struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	entries map[int64][]time.Time
}

func newSlidingWindow(limit int, per time.Duration) *slidingWindow {
	return &slidingWindow{limit: limit, per: per, entries: make(map[int64][]time.Time)}
}

// allow records the event at now unless the chat is over its limit.
func (w *slidingWindow) allow(id int64, now time.Time) bool {
	cutoff := now.Add(-w.per)

	w.mu.Lock()
	defer w.mu.Unlock()

	recent := w.entries[id][:0]
	for _, t := range w.entries[id] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	ok := len(recent) < w.limit
	if ok {
		recent = append(recent, now)
	}
	w.entries[id] = recent
	return ok
}

// RateLimit returns middleware that enforces a per-chat sliding window of
// config.RateLimitPerMinute messages. Sessions live in memory, so the
// window does too.
func RateLimit() bot.Middleware {
	window := newSlidingWindow(config.RateLimitPerMinute, time.Minute)

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages, not callbacks.
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			if !window.allow(update.Message.Chat.ID, time.Now()) {
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: update.Message.Chat.ID,
					Text:   "⏳ Too many messages. Give your coworkers a second to breathe.",
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
