package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/set-night/saboteur/internal/config"
	"github.com/set-night/saboteur/internal/domain"
)

// Timing controls the paced reveals. Zero values mean no delay, which is
// what tests use; DefaultTiming returns the production pacing.
type Timing struct {
	ReplyDelayMin      time.Duration
	ReplyDelayMax      time.Duration
	VoteRevealDelayMin time.Duration
	VoteRevealDelayMax time.Duration
	BriefingDelay      time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ReplyDelayMin:      config.ReplyDelayMin,
		ReplyDelayMax:      config.ReplyDelayMax,
		VoteRevealDelayMin: config.VoteRevealDelayMin,
		VoteRevealDelayMax: config.VoteRevealDelayMax,
		BriefingDelay:      config.BriefingRevealDelay,
	}
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	Phase      domain.Phase
	Characters []domain.Character
	Transcript []domain.Message
	Sabotage   string
	Revealed   int
	Busy       bool
}

// Engine owns all mutable state of one game session: the character set,
// the transcript and the current phase. Player actions are serialized by
// the busy flag; background image tasks deliver their results through the
// merge methods instead of touching state directly.
type Engine struct {
	gw     Gateway
	sink   Sink
	timing Timing

	mu         sync.Mutex
	phase      domain.Phase
	characters []domain.Character
	transcript []domain.Message
	sabotage   string
	revealed   int
	busy       bool
}

func New(gw Gateway, sink Sink, timing Timing) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{gw: gw, sink: sink, timing: timing, phase: domain.PhaseWelcome}
}

// StartGame clears any prior session data and asks the gateway for a
// fresh setup. On success the session enters the briefing; on failure it
// returns to welcome with a system message explaining what happened.
func (e *Engine) StartGame(ctx context.Context) {
	e.mu.Lock()
	if e.phase != domain.PhaseWelcome || e.busy {
		e.mu.Unlock()
		return
	}
	e.resetLocked()
	e.phase = domain.PhaseSettingUp
	e.busy = true
	e.mu.Unlock()
	e.sink.PhaseChanged(domain.PhaseSettingUp)

	setup, err := e.gw.GenerateSetup(ctx)
	if err != nil {
		slog.Error("generate setup", "error", err)
		e.mu.Lock()
		e.phase = domain.PhaseWelcome
		e.busy = false
		e.mu.Unlock()
		e.append(domain.SystemMessage("The office is unreachable right now. Try starting again."))
		e.sink.PhaseChanged(domain.PhaseWelcome)
		return
	}

	characters := make([]domain.Character, len(setup.Characters))
	copy(characters, setup.Characters)
	for i := range characters {
		characters[i].Status = domain.StatusActive
		characters[i].IsPlayer = false
		characters[i].Votes = 0
	}
	// The player is one of the generated characters, villain included.
	player := &characters[rand.Intn(len(characters))]
	player.IsPlayer = true

	e.mu.Lock()
	e.characters = characters
	e.sabotage = setup.Sabotage
	e.phase = domain.PhaseBriefing
	e.revealed = 0
	e.busy = false
	total := len(characters)
	e.mu.Unlock()

	e.append(domain.Message{
		Sender:    domain.SenderSystem,
		Text:      setup.Sabotage,
		IsSpecial: true,
	})
	e.append(domain.Message{
		Sender:    domain.SenderSystem,
		Text:      playerBriefing(*player),
		IsPrivate: true,
	})

	// Images are fire-and-forget: they merge in whenever they arrive,
	// even if the phase has moved on. Detach from the caller so an
	// abandoned update doesn't cancel them.
	bg := context.WithoutCancel(ctx)
	go e.populateSceneImage(bg, setup.Sabotage)
	go e.populatePortraits(bg, characters)

	e.sink.PhaseChanged(domain.PhaseBriefing)
	go e.runBriefing(total)
}

// ContinueToDiscussion is the manual step out of the briefing, available
// once every character has been revealed.
func (e *Engine) ContinueToDiscussion() {
	e.mu.Lock()
	if e.phase != domain.PhaseBriefing || e.revealed < len(e.characters) {
		e.mu.Unlock()
		return
	}
	e.phase = domain.PhaseDiscussion
	e.mu.Unlock()
	e.sink.PhaseChanged(domain.PhaseDiscussion)
}

// SendPlayerMessage appends the player's message and streams one reply
// per active coworker into the transcript, paced with a small random
// delay. Violated preconditions are a silent no-op.
func (e *Engine) SendPlayerMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)

	e.mu.Lock()
	player := e.playerLocked()
	if e.phase != domain.PhaseDiscussion || e.busy || text == "" || player == nil {
		e.mu.Unlock()
		return
	}
	e.busy = true
	playerName := player.Name
	playerMsg := domain.Message{Sender: playerName, Text: text}
	e.transcript = append(e.transcript, playerMsg)
	characters := copyCharacters(e.characters)
	transcript := copyTranscript(e.transcript)
	sabotage := e.sabotage
	e.mu.Unlock()

	e.sink.MessageAppended(playerMsg)
	defer e.clearBusy()

	for ev := range e.gw.StreamCharacterReplies(ctx, text, characters, sabotage, transcript, playerName) {
		if ev.Err != nil {
			slog.Error("character replies", "error", ev.Err)
			// The player's own message stays committed.
			e.append(domain.SystemMessage("Your coworkers are distracted and didn't respond. Say something else."))
			return
		}
		sleepBetween(e.timing.ReplyDelayMin, e.timing.ReplyDelayMax)
		e.append(domain.Message{Sender: ev.Name, Text: ev.Text})
	}
}

// StartVoting moves from discussion to voting. Not allowed mid-send.
func (e *Engine) StartVoting() {
	e.mu.Lock()
	if e.phase != domain.PhaseDiscussion || e.busy {
		e.mu.Unlock()
		return
	}
	e.phase = domain.PhaseVoting
	e.mu.Unlock()
	e.sink.PhaseChanged(domain.PhaseVoting)
}

// SubmitVote records the player's authoritative ballot, collects and
// validates AI ballots, reveals the full vote one accusation at a time
// and resolves the round. On gateway failure the round is abandoned and
// the session returns to discussion.
func (e *Engine) SubmitVote(ctx context.Context, votedFor string) {
	e.mu.Lock()
	player := e.playerLocked()
	if e.phase != domain.PhaseVoting || e.busy || player == nil {
		e.mu.Unlock()
		return
	}
	e.busy = true
	e.phase = domain.PhaseReveal
	playerVote := domain.Vote{Voter: player.Name, VotedFor: votedFor}
	playerName := player.Name
	characters := copyCharacters(e.characters)
	transcript := copyTranscript(e.transcript)
	sabotage := e.sabotage
	e.mu.Unlock()

	e.sink.PhaseChanged(domain.PhaseReveal)
	defer e.clearBusy()

	sheet, err := e.gw.GenerateVotesAndConfession(ctx, characters, sabotage, transcript, playerVote)
	if err != nil {
		e.abortRound(err)
		return
	}

	ballots := append([]domain.Vote{playerVote}, ValidateVotes(sheet.Votes, characters, playerName)...)

	for _, v := range ballots {
		e.sink.VoteRevealStart(v.Voter, v.VotedFor)
		sleepBetween(e.timing.VoteRevealDelayMin, e.timing.VoteRevealDelayMax)
		e.append(domain.SystemMessage(fmt.Sprintf("%s votes for %s.", v.Voter, v.VotedFor)))
		e.sink.VoteRevealEnd(v.Voter, v.VotedFor)
	}

	tally := Tally(ballots, characters)
	e.mu.Lock()
	for i := range e.characters {
		e.characters[i].Votes = tally[e.characters[i].Name]
	}
	e.mu.Unlock()

	e.finishRound(ctx, ResolveRound(tally, characters), sheet.Confession)
}

// PlayAgain resets a finished session back to welcome.
func (e *Engine) PlayAgain() {
	e.mu.Lock()
	if !e.phase.Terminal() {
		e.mu.Unlock()
		return
	}
	e.resetLocked()
	e.mu.Unlock()
	e.sink.PhaseChanged(domain.PhaseWelcome)
}

// Snapshot returns a consistent copy of the session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Phase:      e.phase,
		Characters: copyCharacters(e.characters),
		Transcript: copyTranscript(e.transcript),
		Sabotage:   e.sabotage,
		Revealed:   e.revealed,
		Busy:       e.busy,
	}
}

func (e *Engine) Phase() domain.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Player returns a copy of the player character, or nil before setup.
func (e *Engine) Player() *domain.Character {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.playerLocked(); p != nil {
		c := *p
		return &c
	}
	return nil
}

// MergeSceneImage attaches an asynchronously generated image to the most
// recent special message that has no image yet. Merging the same handle
// twice is a no-op, and a different image never replaces one that is
// already attached.
func (e *Engine) MergeSceneImage(img *domain.ImageHandle) {
	if img == nil {
		return
	}
	e.mu.Lock()
	var updated *domain.Message
	for i := len(e.transcript) - 1; i >= 0; i-- {
		m := &e.transcript[i]
		if !m.IsSpecial {
			continue
		}
		if m.Image == nil {
			m.Image = img
			cp := *m
			updated = &cp
		}
		// Only the newest special message is an attachment target,
		// whether or not it accepted the image.
		break
	}
	e.mu.Unlock()
	if updated != nil {
		e.sink.SceneImageUpdated(*updated)
	}
}

// MergePortrait attaches a portrait to the named character. First image
// wins; later arrivals for the same character are dropped.
func (e *Engine) MergePortrait(name string, img *domain.ImageHandle) {
	if img == nil {
		return
	}
	e.mu.Lock()
	var updated *domain.Character
	for i := range e.characters {
		if e.characters[i].Name != name {
			continue
		}
		if e.characters[i].Portrait == nil {
			e.characters[i].Portrait = img
			cp := e.characters[i]
			updated = &cp
		}
		break
	}
	e.mu.Unlock()
	if updated != nil {
		e.sink.CharacterUpdated(*updated)
	}
}

func (e *Engine) runBriefing(total int) {
	for i := 1; i <= total; i++ {
		if e.timing.BriefingDelay > 0 {
			time.Sleep(e.timing.BriefingDelay)
		}
		e.mu.Lock()
		if e.phase != domain.PhaseBriefing || i > len(e.characters) {
			e.mu.Unlock()
			return
		}
		e.revealed = i
		c := e.characters[i-1]
		e.mu.Unlock()
		e.sink.BriefingProgress(c, i, total)
	}
}

func (e *Engine) populateSceneImage(ctx context.Context, sabotage string) {
	img, err := e.gw.GenerateSceneImage(ctx, sabotage)
	if err != nil {
		slog.Warn("scene image generation failed", "error", err)
		return
	}
	e.MergeSceneImage(img)
}

func (e *Engine) populatePortraits(ctx context.Context, characters []domain.Character) {
	portraits, err := e.gw.GeneratePortraits(ctx, characters)
	if err != nil {
		slog.Warn("portrait generation failed", "error", err)
		return
	}
	for i, img := range portraits {
		if i >= len(characters) {
			break
		}
		e.MergePortrait(characters[i].Name, img)
	}
}

// finishRound applies a resolved round to the session: elimination,
// narrative reveal, confession and the next phase.
func (e *Engine) finishRound(ctx context.Context, res RoundResult, confession string) {
	e.mu.Lock()
	var eliminated, villain *domain.Character
	for i := range e.characters {
		if e.characters[i].Name == res.Eliminated {
			eliminated = &e.characters[i]
		}
		if e.characters[i].IsVillain {
			villain = &e.characters[i]
		}
	}
	if villain == nil {
		e.mu.Unlock()
		e.abortRound(&GatewayError{Op: "resolve_round", Err: domain.ErrVillainNotFound})
		return
	}

	var eliminatedCopy domain.Character
	if eliminated != nil {
		eliminated.Status = domain.StatusVotedOut
		eliminatedCopy = *eliminated
	}
	villainName := villain.Name
	sceneImage := e.currentSceneImageLocked()

	if res.Continue {
		for i := range e.characters {
			e.characters[i].Votes = 0
		}
		e.phase = domain.PhaseDiscussion
	} else {
		e.phase = res.Outcome
	}
	nextPhase := e.phase
	e.mu.Unlock()

	if eliminated != nil {
		e.sink.CharacterUpdated(eliminatedCopy)
	}

	switch {
	case res.Continue:
		e.append(domain.Message{
			Sender:    domain.SenderSystem,
			Text:      fmt.Sprintf("%s has been voted out. They were innocent; the saboteur is still among you.", res.Eliminated),
			IsSpecial: true,
		})
		// Visually remove the eliminated coworker from the scene.
		go e.refreshSceneImage(context.WithoutCancel(ctx), sceneImage, eliminatedCopy)

	case res.Eliminated != "" && !res.RevealVillain:
		// The villain themselves was voted out.
		e.append(domain.SystemMessage(fmt.Sprintf("%s has been voted out. %s was the saboteur.", res.Eliminated, res.Eliminated)))
		e.append(domain.Message{Sender: res.Eliminated, Text: confession})

	default:
		if res.Eliminated != "" {
			e.append(domain.SystemMessage(fmt.Sprintf("%s has been voted out.", res.Eliminated)))
		} else {
			e.append(domain.SystemMessage("The vote is deadlocked. Nobody is eliminated."))
		}
		e.append(domain.SystemMessage(fmt.Sprintf("The saboteur was %s all along.", villainName)))
		e.append(domain.Message{Sender: villainName, Text: confession})
	}

	e.sink.PhaseChanged(nextPhase)
}

func (e *Engine) refreshSceneImage(ctx context.Context, current *domain.ImageHandle, removed domain.Character) {
	img, err := e.gw.EditSceneImage(ctx, current, removed)
	if err != nil {
		slog.Warn("scene image edit failed", "error", err)
		return
	}
	e.MergeSceneImage(img)
}

// abortRound abandons the voting round: one system message, back to
// discussion, transcript intact.
func (e *Engine) abortRound(err error) {
	slog.Error("voting round aborted", "error", err)
	e.mu.Lock()
	e.phase = domain.PhaseDiscussion
	e.mu.Unlock()
	e.append(domain.SystemMessage("The vote fell apart in the confusion. Keep talking and call it again."))
	e.sink.PhaseChanged(domain.PhaseDiscussion)
}

func (e *Engine) append(msg domain.Message) {
	e.mu.Lock()
	e.transcript = append(e.transcript, msg)
	e.mu.Unlock()
	e.sink.MessageAppended(msg)
}

func (e *Engine) clearBusy() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

func (e *Engine) resetLocked() {
	e.phase = domain.PhaseWelcome
	e.characters = nil
	e.transcript = nil
	e.sabotage = ""
	e.revealed = 0
	e.busy = false
}

func (e *Engine) playerLocked() *domain.Character {
	for i := range e.characters {
		if e.characters[i].IsPlayer {
			return &e.characters[i]
		}
	}
	return nil
}

func (e *Engine) currentSceneImageLocked() *domain.ImageHandle {
	for i := len(e.transcript) - 1; i >= 0; i-- {
		if e.transcript[i].IsSpecial && e.transcript[i].Image != nil {
			return e.transcript[i].Image
		}
	}
	return nil
}

func playerBriefing(player domain.Character) string {
	if player.IsVillain {
		return fmt.Sprintf("You are %s, %s. You caused the sabotage. Blend in and let someone else take the fall.", player.Name, player.Position)
	}
	return fmt.Sprintf("You are %s, %s. Find out who sabotaged the office before they talk their way out.", player.Name, player.Position)
}

func copyCharacters(src []domain.Character) []domain.Character {
	out := make([]domain.Character, len(src))
	copy(out, src)
	return out
}

func copyTranscript(src []domain.Message) []domain.Message {
	out := make([]domain.Message, len(src))
	copy(out, src)
	return out
}

func sleepBetween(min, max time.Duration) {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	if d > 0 {
		time.Sleep(d)
	}
}
