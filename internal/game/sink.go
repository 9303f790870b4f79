package game

import "github.com/set-night/saboteur/internal/domain"

// Sink receives progressive state updates for a presentation layer.
// Callbacks run on engine goroutines and should return promptly; reading
// engine snapshots from a callback is safe, calling engine actions is not.
type Sink interface {
	// PhaseChanged fires after every phase transition.
	PhaseChanged(phase domain.Phase)

	// MessageAppended fires for every transcript append, in transcript
	// order.
	MessageAppended(msg domain.Message)

	// BriefingProgress fires once per character reveal during the
	// briefing, with the character just revealed.
	BriefingProgress(c domain.Character, revealed, total int)

	// CharacterUpdated fires when a character changes outside a phase
	// transition, e.g. a portrait arriving.
	CharacterUpdated(c domain.Character)

	// SceneImageUpdated fires when an image is merged into an existing
	// special message.
	SceneImageUpdated(msg domain.Message)

	// VoteRevealStart and VoteRevealEnd bracket each paced accusation
	// reveal so a presentation layer can animate it.
	VoteRevealStart(voter, votedFor string)
	VoteRevealEnd(voter, votedFor string)
}

// NopSink discards all updates.
type NopSink struct{}

func (NopSink) PhaseChanged(domain.Phase)                  {}
func (NopSink) MessageAppended(domain.Message)             {}
func (NopSink) BriefingProgress(domain.Character, int, int) {}
func (NopSink) CharacterUpdated(domain.Character)          {}
func (NopSink) SceneImageUpdated(domain.Message)           {}
func (NopSink) VoteRevealStart(string, string)             {}
func (NopSink) VoteRevealEnd(string, string)               {}
