package domain

// CharacterStatus tracks whether a character is still in the game.
// The only legal transition is active -> voted_out.
type CharacterStatus string

const (
	StatusActive   CharacterStatus = "active"
	StatusVotedOut CharacterStatus = "voted_out"
)

// Character is one office worker in a session. Name is the primary key
// within a session. Exactly one character has IsVillain set and exactly
// one has IsPlayer set for the lifetime of a session.
type Character struct {
	Name        string
	Position    string
	Personality string
	VisualSeed  string
	IsVillain   bool
	IsPlayer    bool
	Status      CharacterStatus
	Votes       int // per-round tally, reset between voting rounds
	Portrait    *ImageHandle
}

func (c *Character) Active() bool {
	return c.Status == StatusActive
}
