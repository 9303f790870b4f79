package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/set-night/saboteur/internal/config"
	"github.com/set-night/saboteur/internal/domain"
	"github.com/set-night/saboteur/internal/game"
)

// chatAPI is the slice of OpenRouterService the gateway needs; tests
// substitute a scripted fake.
type chatAPI interface {
	Chat(ctx context.Context, messages []ChatMessage, model string, temperature *float64) (*ChatResponse, error)
	GenerateImage(ctx context.Context, model, prompt string, input *domain.ImageHandle) (*domain.ImageHandle, error)
}

// AIGateway implements game.Gateway on top of the OpenRouter client. It
// parses untrusted model output into validated domain values; anything
// malformed in required content becomes a GatewayError, while image
// failures stay best-effort.
type AIGateway struct {
	ai         chatAPI
	textModel  string
	imageModel string
}

func NewAIGateway(ai *OpenRouterService, cfg *config.Config) *AIGateway {
	return &AIGateway{ai: ai, textModel: cfg.TextModel, imageModel: cfg.ImageModel}
}

func (g *AIGateway) GenerateSetup(ctx context.Context) (*game.Setup, error) {
	resp, err := g.chat(ctx, []ChatMessage{{Role: "user", Content: setupPrompt()}})
	if err != nil {
		return nil, &game.GatewayError{Op: "generate_setup", Err: err}
	}

	setup, err := parseSetup(resp)
	if err != nil {
		return nil, &game.GatewayError{Op: "generate_setup", Err: err}
	}
	return setup, nil
}

func (g *AIGateway) GenerateSceneImage(ctx context.Context, sabotage string) (*domain.ImageHandle, error) {
	img, err := g.ai.GenerateImage(ctx, g.imageModel, scenePrompt(sabotage), nil)
	if err != nil {
		return nil, &game.GatewayError{Op: "generate_scene_image", Err: err}
	}
	return img, nil
}

// GeneratePortraits fans out one image request per character. Individual
// failures leave a nil slot; the call itself never fails.
func (g *AIGateway) GeneratePortraits(ctx context.Context, characters []domain.Character) ([]*domain.ImageHandle, error) {
	portraits := make([]*domain.ImageHandle, len(characters))
	var wg sync.WaitGroup
	for i, c := range characters {
		wg.Add(1)
		go func(i int, c domain.Character) {
			defer wg.Done()
			img, err := g.ai.GenerateImage(ctx, g.imageModel, portraitPrompt(c), nil)
			if err != nil {
				slog.Warn("portrait generation failed", "character", c.Name, "error", err)
				return
			}
			portraits[i] = img
		}(i, c)
	}
	wg.Wait()
	return portraits, nil
}

// StreamCharacterReplies fans requests out concurrently but re-sequences
// the results: each speaker gets a dedicated slot and the emitter drains
// the slots in roster order, so the transcript order is deterministic no
// matter which request finishes first.
func (g *AIGateway) StreamCharacterReplies(ctx context.Context, playerInput string, characters []domain.Character, sabotage string, transcript []domain.Message, playerName string) <-chan game.ReplyEvent {
	var speakers []domain.Character
	for _, c := range characters {
		if c.Active() && c.Name != playerName {
			speakers = append(speakers, c)
		}
	}

	slots := make([]chan game.ReplyEvent, len(speakers))
	for i, c := range speakers {
		slots[i] = make(chan game.ReplyEvent, 1)
		go func(slot chan<- game.ReplyEvent, c domain.Character) {
			text, err := g.characterReply(ctx, c, characters, sabotage, transcript, playerName, playerInput)
			if err != nil {
				slot <- game.ReplyEvent{Err: &game.GatewayError{Op: "character_reply", Err: err}}
				return
			}
			slot <- game.ReplyEvent{Name: c.Name, Text: text}
		}(slots[i], c)
	}

	out := make(chan game.ReplyEvent)
	go func() {
		defer close(out)
		for _, slot := range slots {
			ev := <-slot
			out <- ev
			if ev.Err != nil {
				return
			}
		}
	}()
	return out
}

func (g *AIGateway) GenerateVotesAndConfession(ctx context.Context, characters []domain.Character, sabotage string, transcript []domain.Message, playerVote domain.Vote) (*game.VoteSheet, error) {
	prompt := votesPrompt(characters, sabotage, transcript, playerVote)
	resp, err := g.chat(ctx, []ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, &game.GatewayError{Op: "generate_votes", Err: err}
	}

	sheet, err := parseVoteSheet(resp)
	if err != nil {
		return nil, &game.GatewayError{Op: "generate_votes", Err: err}
	}
	return sheet, nil
}

func (g *AIGateway) EditSceneImage(ctx context.Context, current *domain.ImageHandle, removed domain.Character) (*domain.ImageHandle, error) {
	if current == nil {
		// Nothing to edit; regenerating from scratch would contradict
		// the scene the player already saw, so skip silently.
		return nil, nil
	}
	img, err := g.ai.GenerateImage(ctx, g.imageModel, editScenePrompt(removed), current)
	if err != nil {
		return nil, &game.GatewayError{Op: "edit_scene_image", Err: err}
	}
	return img, nil
}

func (g *AIGateway) characterReply(ctx context.Context, c domain.Character, characters []domain.Character, sabotage string, transcript []domain.Message, playerName, playerInput string) (string, error) {
	resp, err := g.ai.Chat(ctx, replyMessages(c, characters, sabotage, transcript, playerName, playerInput), g.textModel, temperaturePtr(config.DefaultTemperature))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response for %s", c.Name)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("blank reply for %s", c.Name)
	}
	return text, nil
}

func (g *AIGateway) chat(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := g.ai.Chat(ctx, messages, g.textModel, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func parseSetup(content string) (*game.Setup, error) {
	var raw struct {
		Characters []struct {
			Name        string `json:"name"`
			Position    string `json:"position"`
			Personality string `json:"personality"`
			IsVillain   bool   `json:"isVillain"`
			VisualSeed  string `json:"visualSeed"`
		} `json:"characters"`
		Sabotage string `json:"sabotage"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("parse setup: %w", err)
	}

	if len(raw.Characters) == 0 {
		return nil, domain.ErrEmptySetup
	}
	if n := len(raw.Characters); n < config.MinCharacters || n > config.MaxCharacters {
		return nil, fmt.Errorf("setup has %d characters, want %d-%d", n, config.MinCharacters, config.MaxCharacters)
	}
	if strings.TrimSpace(raw.Sabotage) == "" {
		return nil, fmt.Errorf("setup has no sabotage description")
	}

	villains := 0
	seen := make(map[string]bool)
	characters := make([]domain.Character, 0, len(raw.Characters))
	for _, c := range raw.Characters {
		name := strings.TrimSpace(c.Name)
		if name == "" || seen[name] {
			return nil, fmt.Errorf("setup has a blank or duplicate character name")
		}
		seen[name] = true
		if c.IsVillain {
			villains++
		}
		characters = append(characters, domain.Character{
			Name:        name,
			Position:    strings.TrimSpace(c.Position),
			Personality: strings.TrimSpace(c.Personality),
			VisualSeed:  strings.TrimSpace(c.VisualSeed),
			IsVillain:   c.IsVillain,
			Status:      domain.StatusActive,
		})
	}
	if villains != 1 {
		return nil, fmt.Errorf("setup has %d villains, want exactly 1", villains)
	}

	return &game.Setup{Characters: characters, Sabotage: strings.TrimSpace(raw.Sabotage)}, nil
}

func parseVoteSheet(content string) (*game.VoteSheet, error) {
	var raw struct {
		Votes []struct {
			Voter    string `json:"voter"`
			VotedFor string `json:"votedFor"`
		} `json:"votes"`
		Confession string `json:"confession"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("parse votes: %w", err)
	}
	if strings.TrimSpace(raw.Confession) == "" {
		return nil, fmt.Errorf("votes response has no confession")
	}

	// Ballots are passed through as-is; the vote engine decides which
	// voters and targets count.
	votes := make([]domain.Vote, 0, len(raw.Votes))
	for _, v := range raw.Votes {
		votes = append(votes, domain.Vote{
			Voter:    strings.TrimSpace(v.Voter),
			VotedFor: strings.TrimSpace(v.VotedFor),
		})
	}

	return &game.VoteSheet{Votes: votes, Confession: strings.TrimSpace(raw.Confession)}, nil
}

// extractJSON strips prose and code fences around the first JSON object
// in a model response.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func temperaturePtr(t float64) *float64 {
	return &t
}
