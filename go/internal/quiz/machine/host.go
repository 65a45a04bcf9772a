package machine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

// EmptyRosterNotice is shown for a start request before anybody joined.
const EmptyRosterNotice = "No players have joined yet"

// HostSnapshot is a read-only copy of the host view's state.
type HostSnapshot struct {
	Identity       models.SessionIdentity
	Phase          Phase
	ResumePhase    Phase
	Connection     connection.Status
	ConnectionLost bool

	Roster      models.Roster
	Leaderboard []models.RosterEntry
	Notice      string

	CanStart       bool
	CanTogglePause bool
	CanEnd         bool
}

// FinalResult is the frozen outcome of a hosted session.
type FinalResult struct {
	Identity    models.SessionIdentity
	Roster      models.Roster
	Leaderboard []models.RosterEntry
	// Snapshot is the last metrics payload as received.
	Snapshot json.RawMessage
	EndedAt  time.Time
}

// Host is the session state machine of the participant controlling the game.
type Host struct {
	core

	roster  models.Roster
	rawLast json.RawMessage
	// final is frozen when the session ends.
	final   []models.RosterEntry
	notice  string
	onEnded func(FinalResult)
}

// NewHost creates the machine for a host identity.
func NewHost(identity models.SessionIdentity, sender Sender, opts Options) *Host {
	return &Host{
		core:   newCore(identity, sender, opts),
		roster: models.Roster{Code: identity.Code, Entries: map[string]models.RosterEntry{}},
	}
}

// OnEnded registers a callback that is called once with the frozen result.
func (h *Host) OnEnded(fn func(FinalResult)) {
	h.onEnded = fn
}

func (h *Host) HandleStatus(status connection.Status) {
	h.handleStatus(status)
}

func (h *Host) HandleFrame(frame protocol.Frame) {
	if h.phase == PhaseEnded {
		return
	}

	switch f := frame.(type) {
	case protocol.Metrics:
		h.roster = f.Roster()
		h.rawLast = f.Raw
		if h.roster.Code == "" {
			h.roster.Code = h.identity.Code
		}
	case protocol.Control:
		h.handleControl(f.Signal)
	default:
		log.Debug().Str("kind", frame.Kind().String()).Msg("host ignoring frame")
	}
}

func (h *Host) handleControl(sig protocol.Signal) {
	switch sig {
	case protocol.SignalStart:
		h.markStarted()
	case protocol.SignalPause:
		h.enterPause()
	case protocol.SignalResume:
		h.leavePause()
	case protocol.SignalEnd, protocol.SignalAllQuestionsAnswered:
		h.end()
	}
}

func (h *Host) markStarted() {
	switch h.phase {
	case PhaseLobby, PhaseAwaitingConnection:
		h.clearNotice()
		h.setPhase(PhaseStarted)
	case PhasePaused:
		if h.resumePhase == PhaseLobby {
			h.resumePhase = PhaseStarted
		}
	}
}

func (h *Host) end() {
	h.notice = ""
	h.final = h.roster.Leaderboard()
	h.enterEnded()
	if h.onEnded != nil {
		h.onEnded(FinalResult{
			Identity:    h.identity,
			Roster:      h.roster,
			Leaderboard: append([]models.RosterEntry(nil), h.final...),
			Snapshot:    h.rawLast,
			EndedAt:     h.opts.Clock.Now(),
		})
	}
}

func (h *Host) clearNotice() {
	if h.alarm.kind == alarmNotice {
		h.alarm.stop()
	}
	h.notice = ""
}

func (h *Host) Fire(now time.Time) {
	if h.alarm.fired() == alarmNotice {
		h.notice = ""
	}
}

// Start asks the server to begin the game. An empty roster is rejected locally and
// surfaces a transient notice.
func (h *Host) Start() error {
	switch h.phase {
	case PhaseEnded:
		return ErrSessionEnded
	case PhasePaused:
		return ErrSessionPaused
	case PhaseLobby:
	default:
		if h.phase == PhaseAwaitingConnection {
			return ErrNotStarted
		}
		return ErrAlreadyStarted
	}

	if h.roster.Len() == 0 {
		h.notice = EmptyRosterNotice
		h.alarm.after(alarmNotice, h.opts.NoticeDuration)
		return ErrEmptyRosterOnStart
	}
	if err := h.send(protocol.CommandStart); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	h.markStarted()
	return nil
}

// TogglePause pauses a running game or resumes a paused one.
func (h *Host) TogglePause() error {
	switch h.phase {
	case PhaseEnded:
		return ErrSessionEnded
	case PhasePaused:
		if err := h.send(protocol.CommandResume); err != nil {
			return fmt.Errorf("resume session: %w", err)
		}
		h.leavePause()
		return nil
	case PhaseStarted:
		if err := h.send(protocol.CommandPause); err != nil {
			return fmt.Errorf("pause session: %w", err)
		}
		h.enterPause()
		return nil
	default:
		return ErrNotStarted
	}
}

// End finishes the game for everybody.
func (h *Host) End() error {
	switch h.phase {
	case PhaseEnded:
		return ErrSessionEnded
	case PhaseAwaitingConnection:
		return ErrNotStarted
	}
	if err := h.send(protocol.CommandEnd); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	h.end()
	return nil
}

// Snapshot copies the current state for rendering.
func (h *Host) Snapshot() HostSnapshot {
	s := HostSnapshot{
		Identity:       h.identity,
		Phase:          h.phase,
		ResumePhase:    h.resumePhase,
		Connection:     h.conn,
		ConnectionLost: h.connectionFailed(),
		Roster:         h.roster,
		Notice:         h.notice,
		CanStart:       h.phase == PhaseLobby && !h.connectionFailed(),
		CanTogglePause: (h.phase == PhaseStarted || h.phase == PhasePaused) && !h.connectionFailed(),
		CanEnd:         h.phase != PhaseEnded && h.phase != PhaseAwaitingConnection && !h.connectionFailed(),
	}
	if h.phase == PhaseEnded {
		s.Leaderboard = append([]models.RosterEntry(nil), h.final...)
	} else {
		s.Leaderboard = h.roster.Leaderboard()
	}
	return s
}
