package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mcdev12/quizclient/go/internal/models"
)

// ErrMalformedFrame is carried by Unrecognized frames that could not be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Kind is the discriminant of a decoded Frame.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindControl
	KindQuestion
	KindAttempt
	KindHelp
	KindMetrics
)

func (k Kind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindQuestion:
		return "question"
	case KindAttempt:
		return "attempt"
	case KindHelp:
		return "help"
	case KindMetrics:
		return "metrics"
	default:
		return "unrecognized"
	}
}

// Frame is one decoded message from the push channel. The concrete type is one of
// Control, Question, Attempt, Help, Metrics or Unrecognized.
type Frame interface {
	Kind() Kind
}

// Signal is a session wide control string.
type Signal string

const (
	SignalStart                Signal = "[START]"
	SignalPause                Signal = "[PAUSE]"
	SignalResume               Signal = "[RESUME]"
	SignalEnd                  Signal = "[END]"
	SignalAllQuestionsAnswered Signal = "[ALL_QUESTIONS_ANSWERED]"
)

var signals = map[Signal]struct{}{
	SignalStart:                {},
	SignalPause:                {},
	SignalResume:               {},
	SignalEnd:                  {},
	SignalAllQuestionsAnswered: {},
}

// IsTerminal reports whether the signal ends the session.
func (s Signal) IsTerminal() bool {
	return s == SignalEnd || s == SignalAllQuestionsAnswered
}

// Control is a bare control string frame.
type Control struct {
	Signal Signal
}

func (Control) Kind() Kind { return KindControl }

// Question broadcasts a new question to a player.
type Question struct {
	Prompt         string
	Options        []models.Option
	StartTime      time.Time
	TotalQuestions int
	Index          int // 0 when the server does not number questions
}

func (Question) Kind() Kind { return KindQuestion }

// Attempt is the verdict on the player's last submitted answer.
type Attempt struct {
	Correct bool
	Final   bool
}

func (Attempt) Kind() Kind { return KindAttempt }

// Help carries explanation text shown alongside a verdict.
type Help struct {
	Text string
}

func (Help) Kind() Kind { return KindHelp }

// PlayerMetrics is the per player part of a metrics snapshot.
type PlayerMetrics struct {
	Score    int
	Avatar   string
	Answered int
	Correct  int
}

// Metrics is a host only roster / leaderboard snapshot.
type Metrics struct {
	Code      string
	StartTime *time.Time
	Players   map[string]PlayerMetrics
	Raw       json.RawMessage
}

func (Metrics) Kind() Kind { return KindMetrics }

// Roster converts the snapshot into a fresh roster. Nothing is shared with the frame.
func (m Metrics) Roster() models.Roster {
	entries := make(map[string]models.RosterEntry, len(m.Players))
	for name, p := range m.Players {
		entries[name] = models.RosterEntry{
			ParticipantName: name,
			Score:           p.Score,
			AvatarRef:       p.Avatar,
			Answered:        p.Answered,
			Correct:         p.Correct,
		}
	}
	var started *time.Time
	if m.StartTime != nil {
		t := *m.StartTime
		started = &t
	}
	return models.Roster{Code: m.Code, StartedAt: started, Entries: entries}
}

// Unrecognized is any frame that did not match the protocol. Err wraps ErrMalformedFrame.
type Unrecognized struct {
	Raw []byte
	Err error
}

func (Unrecognized) Kind() Kind { return KindUnrecognized }
