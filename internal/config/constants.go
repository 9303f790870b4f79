package config

import "time"

const (
	// AI request timeouts
	RequestTimeout = 90 * time.Second
	ImageTimeout   = 120 * time.Second

	// Reply pacing: jittered delay between streamed character replies
	ReplyDelayMin = 250 * time.Millisecond
	ReplyDelayMax = 550 * time.Millisecond

	// Vote reveal pacing: delay between revealed accusations
	VoteRevealDelayMin = 600 * time.Millisecond
	VoteRevealDelayMax = 800 * time.Millisecond

	// Briefing cadence: one character revealed per tick
	BriefingRevealDelay = 1500 * time.Millisecond

	// Roster bounds enforced on generated setups
	MinCharacters = 4
	MaxCharacters = 5

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Rate limit (messages per minute per chat)
	RateLimitPerMinute = 20

	// Default temperature for character replies
	DefaultTemperature = 1.0
)
