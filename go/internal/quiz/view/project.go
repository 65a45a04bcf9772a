package view

import (
	"fmt"
	"sort"
	"time"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
	"github.com/mcdev12/quizclient/go/internal/quiz/machine"
)

// ForPlayer projects a player snapshot. It has no side effects.
func ForPlayer(s machine.PlayerSnapshot) Model {
	m := header(s.Identity, s.Connection)

	if s.ConnectionLost {
		m.Kind = KindConnectionFailed
		m.Failure = failure(s.Connection)
		return m
	}

	switch s.Phase {
	case machine.PhaseAwaitingConnection:
		m.Kind = KindConnecting
	case machine.PhaseLobby, machine.PhaseStarted:
		m.Kind = KindLobby
		m.Lobby = &Lobby{Message: "Waiting for the next question"}
	case machine.PhaseInQuestion:
		m.Kind = KindQuestion
		m.Question = playerQuestion(s)
	case machine.PhaseAwaitingNext:
		m.Kind = KindTransition
		m.Transition = transition(s)
	case machine.PhasePaused:
		m.Kind = KindPauseOverlay
		m.Pause = &Pause{Message: "The host paused the game", Resumes: playerResumes(s.ResumePhase)}
		switch s.ResumePhase {
		case machine.PhaseInQuestion:
			m.Question = playerQuestion(s)
		case machine.PhaseAwaitingNext:
			m.Transition = transition(s)
		}
	case machine.PhaseEnded:
		m.Kind = KindGameOver
		m.GameOver = &GameOver{Message: "Game over"}
		if e, ok := s.Roster.Entries[s.Identity.ParticipantName]; ok {
			score := e.Score
			m.GameOver.Score = &score
		}
	}
	return m
}

// ForHost projects a host snapshot. It has no side effects.
func ForHost(s machine.HostSnapshot) Model {
	m := header(s.Identity, s.Connection)
	m.Notice = s.Notice

	if s.ConnectionLost {
		m.Kind = KindConnectionFailed
		m.Failure = failure(s.Connection)
		return m
	}

	switch s.Phase {
	case machine.PhaseAwaitingConnection:
		m.Kind = KindConnecting
	case machine.PhaseLobby:
		m.Kind = KindLobby
		m.Lobby = &Lobby{
			Message:  fmt.Sprintf("Share code %s with your players", s.Identity.Code),
			Players:  playerNames(s.Roster),
			CanStart: s.CanStart,
		}
	case machine.PhaseStarted:
		m.Kind = KindLeaderboard
		m.Leaderboard = &Leaderboard{
			Rows:           rows(s.Leaderboard),
			CanTogglePause: s.CanTogglePause,
			CanEnd:         s.CanEnd,
		}
	case machine.PhasePaused:
		m.Kind = KindPauseOverlay
		m.Pause = &Pause{
			Message:        "Game paused",
			Resumes:        hostResumes(s.ResumePhase),
			CanTogglePause: s.CanTogglePause,
		}
		m.Leaderboard = &Leaderboard{Rows: rows(s.Leaderboard), CanEnd: s.CanEnd}
	case machine.PhaseEnded:
		m.Kind = KindGameOver
		m.GameOver = &GameOver{Message: "Final standings", Rows: rows(s.Leaderboard)}
	}
	return m
}

func header(id models.SessionIdentity, status connection.Status) Model {
	m := Model{
		Role:        string(id.Role),
		Code:        id.Code,
		Participant: id.ParticipantName,
	}
	if status.State == connection.StateReconnecting {
		m.Banner = fmt.Sprintf("Connection lost, reconnecting (attempt %d)", status.Attempt)
	}
	return m
}

func failure(status connection.Status) *Failure {
	reason := "connection closed"
	if status.Err != nil {
		reason = status.Err.Error()
	}
	return &Failure{Reason: reason}
}

func playerQuestion(s machine.PlayerSnapshot) *Question {
	if s.Question == nil {
		return nil
	}
	q := &Question{
		Number:           s.Question.Index,
		Total:            s.Question.TotalQuestions,
		Prompt:           s.Question.Prompt,
		Options:          make([]Option, 0, len(s.Question.Options)),
		RemainingSeconds: s.Remaining,
		Pending:          s.Pending,
		Explanation:      s.Explanation,
		TimedOut:         s.TimedOut,
		CanAnswer:        s.CanAnswer,
		CanRetry:         s.CanRetry,
	}
	for _, o := range s.Question.Options {
		q.Options = append(q.Options, Option{Key: o.Key, Text: o.Text, Selected: o.Key == s.Selected})
	}
	if s.Attempt != nil {
		q.Verdict = verdict(s.Attempt.Correct)
	}
	return q
}

func transition(s machine.PlayerSnapshot) *Transition {
	t := &Transition{
		Explanation: s.Explanation,
		SecondsLeft: int((s.TransitionLeft + time.Second - 1) / time.Second),
	}
	if s.Attempt != nil {
		t.Correct = s.Attempt.Correct
	}
	return t
}

func verdict(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

func playerResumes(p machine.Phase) Kind {
	switch p {
	case machine.PhaseInQuestion:
		return KindQuestion
	case machine.PhaseAwaitingNext:
		return KindTransition
	default:
		return KindLobby
	}
}

func hostResumes(p machine.Phase) Kind {
	if p == machine.PhaseStarted {
		return KindLeaderboard
	}
	return KindLobby
}

func playerNames(r models.Roster) []string {
	names := make([]string, 0, r.Len())
	for name := range r.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func rows(entries []models.RosterEntry) []Row {
	out := make([]Row, 0, len(entries))
	for i, e := range entries {
		out = append(out, Row{
			Rank:     i + 1,
			Name:     e.ParticipantName,
			Score:    e.Score,
			Avatar:   e.AvatarRef,
			Answered: e.Answered,
			Correct:  e.Correct,
		})
	}
	return out
}
