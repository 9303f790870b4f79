package game

import (
	"context"
	"fmt"

	"github.com/set-night/saboteur/internal/domain"
)

// Setup is the validated result of a setup generation call: the character
// roster (exactly one villain, no player assigned yet) and the sabotage
// incident driving the session.
type Setup struct {
	Characters []domain.Character
	Sabotage   string
}

// ReplyEvent is one element of a character reply stream. The channel is
// closed after the final event. An event with Err set terminates the
// stream; Name and Text are empty in that case.
type ReplyEvent struct {
	Name string
	Text string
	Err  error
}

// VoteSheet carries AI ballots and the villain's confession. Ballots are
// untrusted and may contain duplicates, inactive voters or made-up names;
// validation is entirely the caller's job.
type VoteSheet struct {
	Votes      []domain.Vote
	Confession string
}

// Gateway is the AI content backend. Every operation is independently
// failable; the engine never retries, it either degrades (images) or
// aborts the current round (required content).
type Gateway interface {
	// GenerateSetup produces 4-5 characters, exactly one of them the
	// villain, plus the sabotage description.
	GenerateSetup(ctx context.Context) (*Setup, error)

	// GenerateSceneImage renders the sabotage scene. Best effort: a nil
	// handle (with or without an error) means "no image", never a failed
	// game.
	GenerateSceneImage(ctx context.Context, sabotage string) (*domain.ImageHandle, error)

	// GeneratePortraits returns one handle per character, order
	// preserved, nil entries for individual failures.
	GeneratePortraits(ctx context.Context, characters []domain.Character) ([]*domain.ImageHandle, error)

	// StreamCharacterReplies yields one reply per active non-player
	// character, in roster order, regardless of how the underlying
	// requests are scheduled.
	StreamCharacterReplies(ctx context.Context, playerInput string, characters []domain.Character, sabotage string, transcript []domain.Message, playerName string) <-chan ReplyEvent

	// GenerateVotesAndConfession asks every active non-player character
	// for a ballot and the villain for a confession.
	GenerateVotesAndConfession(ctx context.Context, characters []domain.Character, sabotage string, transcript []domain.Message, playerVote domain.Vote) (*VoteSheet, error)

	// EditSceneImage removes an eliminated character from the scene.
	// Best effort, same contract as GenerateSceneImage.
	EditSceneImage(ctx context.Context, current *domain.ImageHandle, removed domain.Character) (*domain.ImageHandle, error)
}

// GatewayError wraps a failure of a named gateway operation.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
