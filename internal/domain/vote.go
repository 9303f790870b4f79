package domain

// Vote is a single ballot. Voter and VotedFor are character names. Ballots
// coming from the AI are untrusted until validated by the vote engine.
type Vote struct {
	Voter    string
	VotedFor string
}
