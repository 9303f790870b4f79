package domain

// Phase is the session state machine position.
type Phase string

const (
	PhaseWelcome      Phase = "welcome"
	PhaseSettingUp    Phase = "setting_up"
	PhaseBriefing     Phase = "briefing"
	PhaseDiscussion   Phase = "discussion"
	PhaseVoting       Phase = "voting"
	PhaseReveal       Phase = "reveal"
	PhaseGameOverWin  Phase = "game_over_win"
	PhaseGameOverLoss Phase = "game_over_loss"
)

// Terminal reports whether the phase ends the session. Terminal phases
// only transition back to welcome via an explicit play-again action.
func (p Phase) Terminal() bool {
	return p == PhaseGameOverWin || p == PhaseGameOverLoss
}
