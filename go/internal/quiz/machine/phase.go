package machine

// Phase is the coarse state of a session view.
type Phase string

const (
	PhaseAwaitingConnection Phase = "AWAITING_CONNECTION"
	PhaseLobby              Phase = "LOBBY"
	PhaseStarted            Phase = "STARTED"
	PhaseInQuestion         Phase = "IN_QUESTION"
	PhaseAwaitingNext       Phase = "AWAITING_NEXT"
	PhasePaused             Phase = "PAUSED"
	PhaseEnded              Phase = "ENDED"
)

// Phases lists every phase, for metrics that publish one series per phase.
func Phases() []string {
	return []string{
		string(PhaseAwaitingConnection),
		string(PhaseLobby),
		string(PhaseStarted),
		string(PhaseInQuestion),
		string(PhaseAwaitingNext),
		string(PhasePaused),
		string(PhaseEnded),
	}
}

// pausable reports whether a pause signal may interrupt p.
func (p Phase) pausable() bool {
	switch p {
	case PhaseLobby, PhaseStarted, PhaseInQuestion, PhaseAwaitingNext:
		return true
	default:
		return false
	}
}
