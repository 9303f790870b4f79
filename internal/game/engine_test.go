package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/set-night/saboteur/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	setup     *Setup
	setupErr  error
	replies   []ReplyEvent
	sheet     *VoteSheet
	sheetErr  error
	scene     *domain.ImageHandle
	portraits []*domain.ImageHandle
	edited    *domain.ImageHandle
}

func (f *fakeGateway) GenerateSetup(ctx context.Context) (*Setup, error) {
	if f.setupErr != nil {
		return nil, f.setupErr
	}
	cs := copyCharacters(f.setup.Characters)
	return &Setup{Characters: cs, Sabotage: f.setup.Sabotage}, nil
}

func (f *fakeGateway) GenerateSceneImage(ctx context.Context, sabotage string) (*domain.ImageHandle, error) {
	return f.scene, nil
}

func (f *fakeGateway) GeneratePortraits(ctx context.Context, characters []domain.Character) ([]*domain.ImageHandle, error) {
	return f.portraits, nil
}

func (f *fakeGateway) StreamCharacterReplies(ctx context.Context, playerInput string, characters []domain.Character, sabotage string, transcript []domain.Message, playerName string) <-chan ReplyEvent {
	out := make(chan ReplyEvent)
	go func() {
		defer close(out)
		for _, ev := range f.replies {
			out <- ev
			if ev.Err != nil {
				return
			}
		}
	}()
	return out
}

func (f *fakeGateway) GenerateVotesAndConfession(ctx context.Context, characters []domain.Character, sabotage string, transcript []domain.Message, playerVote domain.Vote) (*VoteSheet, error) {
	if f.sheetErr != nil {
		return nil, f.sheetErr
	}
	return f.sheet, nil
}

func (f *fakeGateway) EditSceneImage(ctx context.Context, current *domain.ImageHandle, removed domain.Character) (*domain.ImageHandle, error) {
	return f.edited, nil
}

type recordSink struct {
	mu      sync.Mutex
	phases  []domain.Phase
	msgs    []domain.Message
	reveals [][2]string
}

func (s *recordSink) PhaseChanged(p domain.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, p)
}

func (s *recordSink) MessageAppended(m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
}

func (s *recordSink) BriefingProgress(domain.Character, int, int) {}
func (s *recordSink) CharacterUpdated(domain.Character)          {}
func (s *recordSink) SceneImageUpdated(domain.Message)           {}

func (s *recordSink) VoteRevealStart(voter, votedFor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reveals = append(s.reveals, [2]string{voter, votedFor})
}

func (s *recordSink) VoteRevealEnd(string, string) {}

func testSetup() *Setup {
	return &Setup{
		Characters: []domain.Character{
			{Name: "Ada", Position: "engineer", Personality: "blunt", IsVillain: true, Status: domain.StatusActive},
			{Name: "Bert", Position: "accountant", Personality: "nervous", Status: domain.StatusActive},
			{Name: "Cleo", Position: "designer", Personality: "dreamy", Status: domain.StatusActive},
			{Name: "Dmitri", Position: "janitor", Personality: "seen it all", Status: domain.StatusActive},
		},
		Sabotage: "Every monitor on the third floor now only displays a looping GIF of a dancing ferret.",
	}
}

// seedEngine builds an engine already mid-game, bypassing setup.
func seedEngine(gw Gateway, sink Sink, characters []domain.Character, phase domain.Phase) *Engine {
	e := New(gw, sink, Timing{})
	e.characters = characters
	e.sabotage = "the incident"
	e.phase = phase
	return e
}

// cast returns the standard four characters: Ada the villain, Bert the
// player.
func cast() []domain.Character {
	cs := copyCharacters(testSetup().Characters)
	cs[1].IsPlayer = true
	return cs
}

func TestStartGamePopulatesSession(t *testing.T) {
	gw := &fakeGateway{setup: testSetup()}
	sink := &recordSink{}
	e := New(gw, sink, Timing{})

	e.StartGame(context.Background())

	snap := e.Snapshot()
	assert.Equal(t, domain.PhaseBriefing, snap.Phase)
	assert.False(t, snap.Busy)
	require.Len(t, snap.Characters, 4)

	players, villains := 0, 0
	for _, c := range snap.Characters {
		if c.IsPlayer {
			players++
		}
		if c.IsVillain {
			villains++
		}
		assert.True(t, c.Active())
	}
	assert.Equal(t, 1, players)
	assert.Equal(t, 1, villains)

	// Sabotage narrative plus the private role briefing.
	require.Len(t, snap.Transcript, 2)
	assert.True(t, snap.Transcript[0].IsSpecial)
	assert.Equal(t, gw.setup.Sabotage, snap.Transcript[0].Text)
	assert.True(t, snap.Transcript[1].IsPrivate)

	// Briefing reveals every character, then the manual continue works.
	require.Eventually(t, func() bool {
		return e.Snapshot().Revealed == 4
	}, time.Second, 5*time.Millisecond)

	e.ContinueToDiscussion()
	assert.Equal(t, domain.PhaseDiscussion, e.Phase())
}

func TestStartGameSetupFailure(t *testing.T) {
	gw := &fakeGateway{setupErr: &GatewayError{Op: "generate_setup", Err: errors.New("boom")}}
	e := New(gw, &recordSink{}, Timing{})

	e.StartGame(context.Background())

	snap := e.Snapshot()
	assert.Equal(t, domain.PhaseWelcome, snap.Phase)
	assert.False(t, snap.Busy)
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, domain.SenderSystem, snap.Transcript[0].Sender)
	assert.Empty(t, snap.Characters)
}

func TestStartGameIgnoredOutsideWelcome(t *testing.T) {
	gw := &fakeGateway{setup: testSetup()}
	e := seedEngine(gw, &recordSink{}, cast(), domain.PhaseDiscussion)

	e.StartGame(context.Background())
	assert.Equal(t, domain.PhaseDiscussion, e.Phase())
}

func TestContinueToDiscussionGatedOnFullReveal(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseBriefing)
	e.revealed = 2

	e.ContinueToDiscussion()
	assert.Equal(t, domain.PhaseBriefing, e.Phase())

	e.revealed = 4
	e.ContinueToDiscussion()
	assert.Equal(t, domain.PhaseDiscussion, e.Phase())
}

func TestSendPlayerMessageStreamsRepliesInOrder(t *testing.T) {
	gw := &fakeGateway{replies: []ReplyEvent{
		{Name: "Ada", Text: "wasn't me"},
		{Name: "Cleo", Text: "I saw nothing"},
		{Name: "Dmitri", Text: "again with the ferrets"},
	}}
	e := seedEngine(gw, &recordSink{}, cast(), domain.PhaseDiscussion)

	e.SendPlayerMessage(context.Background(), "  who did this?  ")

	snap := e.Snapshot()
	require.Len(t, snap.Transcript, 4)
	assert.Equal(t, domain.Message{Sender: "Bert", Text: "who did this?"}, snap.Transcript[0])
	assert.Equal(t, "Ada", snap.Transcript[1].Sender)
	assert.Equal(t, "Cleo", snap.Transcript[2].Sender)
	assert.Equal(t, "Dmitri", snap.Transcript[3].Sender)
	assert.False(t, snap.Busy)
}

func TestSendPlayerMessagePreconditions(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		phase domain.Phase
		busy  bool
	}{
		{"blank text", "   ", domain.PhaseDiscussion, false},
		{"wrong phase", "hello", domain.PhaseVoting, false},
		{"busy", "hello", domain.PhaseDiscussion, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), tt.phase)
			e.busy = tt.busy

			e.SendPlayerMessage(context.Background(), tt.text)

			assert.Empty(t, e.Snapshot().Transcript, "precondition violations must be silent no-ops")
			assert.Equal(t, tt.phase, e.Phase())
		})
	}
}

func TestSendPlayerMessageGatewayFailure(t *testing.T) {
	gw := &fakeGateway{replies: []ReplyEvent{
		{Name: "Ada", Text: "hm"},
		{Err: &GatewayError{Op: "character_reply", Err: errors.New("timeout")}},
	}}
	e := seedEngine(gw, &recordSink{}, cast(), domain.PhaseDiscussion)

	e.SendPlayerMessage(context.Background(), "anyone?")

	snap := e.Snapshot()
	// Player message and the partial reply stay committed, one system
	// error message follows.
	require.Len(t, snap.Transcript, 3)
	assert.Equal(t, "Bert", snap.Transcript[0].Sender)
	assert.Equal(t, "Ada", snap.Transcript[1].Sender)
	assert.Equal(t, domain.SenderSystem, snap.Transcript[2].Sender)
	assert.Equal(t, domain.PhaseDiscussion, snap.Phase)
	assert.False(t, snap.Busy)
}

func TestStartVoting(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)
	e.StartVoting()
	assert.Equal(t, domain.PhaseVoting, e.Phase())
}

func TestStartVotingBlockedWhileBusy(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)
	e.busy = true
	e.StartVoting()
	assert.Equal(t, domain.PhaseDiscussion, e.Phase())
}

func TestSubmitVoteVillainCaught(t *testing.T) {
	gw := &fakeGateway{sheet: &VoteSheet{
		Votes: []domain.Vote{
			{Voter: "Cleo", VotedFor: "Ada"},
			{Voter: "Dmitri", VotedFor: "Ada"},
		},
		Confession: "The ferret GIF was art. You people have no vision.",
	}}
	sink := &recordSink{}
	e := seedEngine(gw, sink, cast(), domain.PhaseVoting)

	e.SubmitVote(context.Background(), "Ada")

	snap := e.Snapshot()
	assert.Equal(t, domain.PhaseGameOverWin, snap.Phase)
	assert.False(t, snap.Busy)

	// Player vote first, then accepted AI ballots in order.
	require.Equal(t, [][2]string{
		{"Bert", "Ada"},
		{"Cleo", "Ada"},
		{"Dmitri", "Ada"},
	}, sink.reveals)

	for _, c := range snap.Characters {
		if c.Name == "Ada" {
			assert.Equal(t, domain.StatusVotedOut, c.Status)
			assert.Equal(t, 3, c.Votes)
		}
	}

	last := snap.Transcript[len(snap.Transcript)-1]
	assert.Equal(t, "Ada", last.Sender, "confession comes from the eliminated villain")
	assert.Equal(t, gw.sheet.Confession, last.Text)
}

func TestSubmitVotePlayerIsCaughtVillain(t *testing.T) {
	cs := copyCharacters(testSetup().Characters)
	cs[0].IsPlayer = true // Ada: villain and player
	gw := &fakeGateway{sheet: &VoteSheet{
		Votes: []domain.Vote{
			{Voter: "Bert", VotedFor: "Ada"},
			{Voter: "Cleo", VotedFor: "Ada"},
		},
		Confession: "Fine. It was me.",
	}}
	e := seedEngine(gw, &recordSink{}, cs, domain.PhaseVoting)

	e.SubmitVote(context.Background(), "Ada")
	assert.Equal(t, domain.PhaseGameOverLoss, e.Phase())
}

func TestSubmitVoteTieVillainWins(t *testing.T) {
	gw := &fakeGateway{sheet: &VoteSheet{
		Votes: []domain.Vote{
			{Voter: "Cleo", VotedFor: "Dmitri"},
			{Voter: "Dmitri", VotedFor: "Cleo"},
			{Voter: "Ada", VotedFor: "Cleo"},
		},
		Confession: "You were all too busy accusing each other.",
	}}
	sink := &recordSink{}
	e := seedEngine(gw, sink, cast(), domain.PhaseVoting)

	// Bert (player, innocent) votes Dmitri, leaving Cleo 2, Dmitri 2.
	e.SubmitVote(context.Background(), "Dmitri")

	snap := e.Snapshot()
	assert.Equal(t, domain.PhaseGameOverLoss, snap.Phase)
	for _, c := range snap.Characters {
		assert.True(t, c.Active(), "a tie eliminates nobody")
	}

	last := snap.Transcript[len(snap.Transcript)-1]
	assert.Equal(t, "Ada", last.Sender, "the true villain confesses after a deadlock")
}

func TestSubmitVoteContinuation(t *testing.T) {
	cs := copyCharacters(testSetup().Characters)
	cs = append(cs, domain.Character{Name: "Elif", Position: "intern", Status: domain.StatusActive})
	cs[1].IsPlayer = true
	gw := &fakeGateway{sheet: &VoteSheet{
		Votes: []domain.Vote{
			{Voter: "Ada", VotedFor: "Cleo"},
			{Voter: "Dmitri", VotedFor: "Cleo"},
			{Voter: "Elif", VotedFor: "Ada"},
		},
		Confession: "unused this round",
	}}
	e := seedEngine(gw, &recordSink{}, cs, domain.PhaseVoting)

	// 5 active, innocent Cleo eliminated, 4 remain: game continues.
	e.SubmitVote(context.Background(), "Cleo")

	snap := e.Snapshot()
	assert.Equal(t, domain.PhaseDiscussion, snap.Phase)
	assert.False(t, snap.Busy)
	for _, c := range snap.Characters {
		assert.Equal(t, 0, c.Votes, "tallies reset for the next round")
		if c.Name == "Cleo" {
			assert.Equal(t, domain.StatusVotedOut, c.Status)
		} else {
			assert.True(t, c.Active())
		}
	}

	last := snap.Transcript[len(snap.Transcript)-1]
	assert.True(t, last.IsSpecial, "the elimination note is the next scene-image target")
}

func TestSubmitVoteInvalidBallotsDropped(t *testing.T) {
	gw := &fakeGateway{sheet: &VoteSheet{
		Votes: []domain.Vote{
			{Voter: "Ada", VotedFor: "Cleo"},
			{Voter: "Ada", VotedFor: "Dmitri"},   // duplicate voter
			{Voter: "Bert", VotedFor: "Cleo"},    // player
			{Voter: "Nobody", VotedFor: "Cleo"},  // unknown
			{Voter: "Cleo", VotedFor: "Blorbo"},  // unknown target still consumes the ballot
			{Voter: "Dmitri", VotedFor: "Cleo"},
		},
		Confession: "It was me, obviously.",
	}}
	sink := &recordSink{}
	e := seedEngine(gw, sink, cast(), domain.PhaseVoting)

	e.SubmitVote(context.Background(), "Cleo")

	require.Equal(t, [][2]string{
		{"Bert", "Cleo"},
		{"Ada", "Cleo"},
		{"Cleo", "Blorbo"},
		{"Dmitri", "Cleo"},
	}, sink.reveals)
}

func TestSubmitVoteGatewayFailure(t *testing.T) {
	gw := &fakeGateway{sheetErr: &GatewayError{Op: "generate_votes", Err: errors.New("503")}}
	e := seedEngine(gw, &recordSink{}, cast(), domain.PhaseVoting)

	e.SubmitVote(context.Background(), "Ada")

	snap := e.Snapshot()
	assert.Equal(t, domain.PhaseDiscussion, snap.Phase, "a failed round returns to discussion")
	assert.False(t, snap.Busy)
	for _, c := range snap.Characters {
		assert.True(t, c.Active())
	}
	require.NotEmpty(t, snap.Transcript)
	assert.Equal(t, domain.SenderSystem, snap.Transcript[len(snap.Transcript)-1].Sender)
}

func TestSubmitVotePreconditions(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)
	e.SubmitVote(context.Background(), "Ada")
	assert.Equal(t, domain.PhaseDiscussion, e.Phase())
	assert.Empty(t, e.Snapshot().Transcript)
}

func TestMergeSceneImageIdempotent(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)
	e.transcript = []domain.Message{
		{Sender: domain.SenderSystem, Text: "the scene", IsSpecial: true},
	}

	img := domain.NewImageHandle("https://example.test/scene.png", "")
	e.MergeSceneImage(img)
	e.MergeSceneImage(img) // duplicate delivery

	snap := e.Snapshot()
	require.NotNil(t, snap.Transcript[0].Image)
	assert.Equal(t, img.ID, snap.Transcript[0].Image.ID)

	// A different image never clobbers an attached one.
	other := domain.NewImageHandle("https://example.test/other.png", "")
	e.MergeSceneImage(other)
	assert.Equal(t, img.ID, e.Snapshot().Transcript[0].Image.ID)
}

func TestMergeSceneImageTargetsNewestSpecial(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)
	old := domain.NewImageHandle("https://example.test/old.png", "")
	e.transcript = []domain.Message{
		{Sender: domain.SenderSystem, Text: "the scene", IsSpecial: true, Image: old},
		{Sender: "Bert", Text: "chat"},
		{Sender: domain.SenderSystem, Text: "Cleo is out", IsSpecial: true},
	}

	edited := domain.NewImageHandle("https://example.test/edited.png", "")
	e.MergeSceneImage(edited)

	snap := e.Snapshot()
	assert.Equal(t, old.ID, snap.Transcript[0].Image.ID)
	require.NotNil(t, snap.Transcript[2].Image)
	assert.Equal(t, edited.ID, snap.Transcript[2].Image.ID)
}

func TestMergeSceneImageNoTarget(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)
	e.MergeSceneImage(domain.NewImageHandle("https://example.test/x.png", ""))
	assert.Empty(t, e.Snapshot().Transcript)
}

func TestMergePortrait(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)

	first := domain.NewImageHandle("https://example.test/ada1.png", "")
	second := domain.NewImageHandle("https://example.test/ada2.png", "")
	e.MergePortrait("Ada", first)
	e.MergePortrait("Ada", second)
	e.MergePortrait("Ghost", first) // unknown name, no-op

	snap := e.Snapshot()
	require.NotNil(t, snap.Characters[0].Portrait)
	assert.Equal(t, first.ID, snap.Characters[0].Portrait.ID)
}

func TestPlayAgain(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseGameOverLoss)
	e.transcript = []domain.Message{{Sender: "Bert", Text: "gg"}}

	e.PlayAgain()

	snap := e.Snapshot()
	assert.Equal(t, domain.PhaseWelcome, snap.Phase)
	assert.Empty(t, snap.Characters)
	assert.Empty(t, snap.Transcript)
}

func TestPlayAgainOnlyFromTerminal(t *testing.T) {
	e := seedEngine(&fakeGateway{}, &recordSink{}, cast(), domain.PhaseDiscussion)
	e.PlayAgain()
	assert.Equal(t, domain.PhaseDiscussion, e.Phase())
	assert.NotEmpty(t, e.Snapshot().Characters)
}

func TestGatewayErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &GatewayError{Op: "generate_setup", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, fmt.Sprintf("gateway generate_setup: %v", inner), err.Error())
}
