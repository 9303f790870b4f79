package game

import "github.com/set-night/saboteur/internal/domain"

// ValidateVotes filters untrusted AI ballots. A ballot is accepted only
// when its voter is an active, non-player roster character that has not
// already produced an accepted ballot this round; the first occurrence
// wins. Targets are deliberately not validated: a ballot naming an
// unknown target still consumes the voter's turn.
func ValidateVotes(ballots []domain.Vote, characters []domain.Character, playerName string) []domain.Vote {
	eligible := make(map[string]bool, len(characters))
	for _, c := range characters {
		if c.Active() && c.Name != playerName {
			eligible[c.Name] = true
		}
	}

	voted := make(map[string]bool, len(ballots))
	var accepted []domain.Vote
	for _, b := range ballots {
		if !eligible[b.Voter] || voted[b.Voter] {
			continue
		}
		voted[b.Voter] = true
		accepted = append(accepted, b)
	}
	return accepted
}

// Tally counts ballots per roster character name. Every roster character
// appears in the result, at zero if nobody voted for them. Targets not on
// the roster count toward no one.
func Tally(ballots []domain.Vote, characters []domain.Character) map[string]int {
	counts := make(map[string]int, len(characters))
	for _, c := range characters {
		counts[c.Name] = 0
	}
	for _, b := range ballots {
		if _, ok := counts[b.VotedFor]; ok {
			counts[b.VotedFor]++
		}
	}
	return counts
}

// Candidates returns the names holding the maximum tally. When the
// maximum is zero (every ballot named an unknown target, or there were no
// ballots) it returns nil: nobody can be eliminated on zero votes.
func Candidates(tally map[string]int) []string {
	maxVotes := 0
	for _, n := range tally {
		if n > maxVotes {
			maxVotes = n
		}
	}
	if maxVotes == 0 {
		return nil
	}

	var names []string
	for name, n := range tally {
		if n == maxVotes {
			names = append(names, name)
		}
	}
	return names
}

// RoundResult describes the consequence of a completed voting round.
type RoundResult struct {
	Eliminated string       // empty when nobody was voted out
	Continue   bool         // true: back to discussion, tallies reset
	Outcome    domain.Phase // terminal phase, meaningful when !Continue
	// RevealVillain is set when the true villain must be exposed in the
	// reveal: deadlocked rounds, a wrongly eliminated player, and wins by
	// attrition. When the villain themselves was voted out the
	// elimination already is the reveal.
	RevealVillain bool
}

// ResolveRound applies the resolution policy to a finished tally.
//
// A tie and a zero-vote round resolve identically: no elimination, the
// villain wins by default. A single candidate is eliminated; the game
// continues only when the eliminated character is an innocent non-player
// and more than two characters remain active afterwards.
func ResolveRound(tally map[string]int, characters []domain.Character) RoundResult {
	var player *domain.Character
	for i := range characters {
		if characters[i].IsPlayer {
			player = &characters[i]
		}
	}
	if player == nil {
		// Invariant violation; treat like a deadlock so the caller's
		// outcome mapping still terminates the game.
		return RoundResult{Outcome: domain.PhaseGameOverLoss, RevealVillain: true}
	}

	villainWins := domain.PhaseGameOverLoss
	if player.IsVillain {
		villainWins = domain.PhaseGameOverWin
	}

	candidates := Candidates(tally)
	if len(candidates) != 1 {
		// Tie or nobody received a countable vote: villain auto-wins.
		return RoundResult{Outcome: villainWins, RevealVillain: true}
	}

	name := candidates[0]
	var eliminated *domain.Character
	for i := range characters {
		if characters[i].Name == name {
			eliminated = &characters[i]
			break
		}
	}
	if eliminated == nil {
		return RoundResult{Outcome: villainWins, RevealVillain: true}
	}

	if eliminated.IsVillain {
		outcome := domain.PhaseGameOverWin
		if eliminated.IsPlayer {
			outcome = domain.PhaseGameOverLoss
		}
		return RoundResult{Eliminated: name, Outcome: outcome}
	}

	if eliminated.IsPlayer {
		// Wrongly voted out: the game ends for the player no matter how
		// many others remain.
		return RoundResult{Eliminated: name, Outcome: domain.PhaseGameOverLoss, RevealVillain: true}
	}

	remaining := 0
	for _, c := range characters {
		if c.Active() {
			remaining++
		}
	}
	remaining-- // the character just eliminated

	if remaining <= 2 {
		return RoundResult{Eliminated: name, Outcome: villainWins, RevealVillain: true}
	}
	return RoundResult{Eliminated: name, Continue: true}
}
