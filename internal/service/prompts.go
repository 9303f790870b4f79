package service

import (
	"fmt"
	"strings"

	"github.com/set-night/saboteur/internal/domain"
)

// Prompt builders. The text is kept deliberately plain; the contracts the
// engine relies on are the JSON shapes, not the wording.

func setupPrompt() string {
	return `Invent the cast for an office mystery game. Respond with JSON only, no prose:
{"characters":[{"name":"...","position":"...","personality":"...","isVillain":false,"visualSeed":"..."}],"sabotage":"..."}
Rules: 4 or 5 characters, distinct first names, exactly one with "isVillain":true.
"sabotage" is a two-sentence description of an office sabotage incident discovered this morning.
"visualSeed" is a short visual description of the character for an illustrator.`
}

func replyMessages(c domain.Character, characters []domain.Character, sabotage string, transcript []domain.Message, playerName, playerInput string) []ChatMessage {
	system := fmt.Sprintf(
		"You are %s, %s at this office. Personality: %s.\nIncident: %s\nCoworkers: %s.\n"+
			"You are chatting in the office group thread. %s just wrote: %q.\n"+
			"Reply in character with one or two short conversational sentences. Never reveal who the saboteur is.",
		c.Name, c.Position, c.Personality, sabotage, rosterText(characters), playerName, playerInput)
	if c.IsVillain {
		system += " You secretly caused the incident; deflect suspicion without being obvious."
	}
	return []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: transcriptText(transcript)},
	}
}

func votesPrompt(characters []domain.Character, sabotage string, transcript []domain.Message, playerVote domain.Vote) string {
	return fmt.Sprintf(
		"An office vote is being held to find who caused this incident: %s\n"+
			"Cast: %s.\n%s has already voted for %s.\nConversation so far:\n%s\n"+
			"Respond with JSON only:\n"+
			`{"votes":[{"voter":"...","votedFor":"..."}],"confession":"..."}`+"\n"+
			"One vote per remaining character except %s, each consistent with their personality and the conversation. "+
			"\"confession\" is the saboteur's dramatic two-sentence confession of how and why they did it.",
		sabotage, rosterText(characters), playerVote.Voter, playerVote.VotedFor,
		transcriptText(transcript), playerVote.Voter)
}

func scenePrompt(sabotage string) string {
	return fmt.Sprintf("A wide illustrated scene of an open-plan office where this just happened: %s. Cartoonish corporate style, no text in the image.", sabotage)
}

func portraitPrompt(c domain.Character) string {
	return fmt.Sprintf("Portrait of %s, %s. %s. Cartoonish corporate style, head and shoulders, neutral background.", c.Name, c.Position, c.VisualSeed)
}

func editScenePrompt(removed domain.Character) string {
	return fmt.Sprintf("Edit this image: remove the character %s (%s) from the scene, leaving everything else unchanged.", removed.Name, removed.VisualSeed)
}

func rosterText(characters []domain.Character) string {
	parts := make([]string, 0, len(characters))
	for _, c := range characters {
		if !c.Active() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", c.Name, c.Position))
	}
	return strings.Join(parts, ", ")
}

// transcriptText renders the visible conversation. Private hints to the
// player never reach a model.
func transcriptText(transcript []domain.Message) string {
	var b strings.Builder
	for _, m := range transcript {
		if m.IsPrivate {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Text)
	}
	return b.String()
}
