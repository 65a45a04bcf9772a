package machine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/clock"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

// TimeUpExplanation is shown when the countdown runs out before an answer.
const TimeUpExplanation = "Time's up!"

// PlayerSnapshot is a read-only copy of the player view's state.
type PlayerSnapshot struct {
	Identity       models.SessionIdentity
	Phase          Phase
	ResumePhase    Phase
	Connection     connection.Status
	ConnectionLost bool

	Question       *models.QuestionView
	Remaining      int
	Selected       string
	Pending        bool
	Attempt        *models.AttemptResult
	Explanation    string
	TimedOut       bool
	TransitionLeft time.Duration
	Roster         models.Roster

	CanAnswer bool
	CanRetry  bool
}

// Player is the session state machine of a participant answering questions.
type Player struct {
	core
	reconciler *clock.Reconciler

	question    *models.QuestionView
	asked       int
	selected    string
	pending     bool
	attempt     *models.AttemptResult
	explanation string
	timedOut    bool
	remaining   int
	roster      models.Roster

	// transitionLeft is the overlay time still owed after a pause.
	transitionLeft time.Duration
}

// NewPlayer creates the machine for a player identity.
func NewPlayer(identity models.SessionIdentity, sender Sender, reconciler *clock.Reconciler, opts Options) *Player {
	c := newCore(identity, sender, opts)
	if reconciler == nil {
		reconciler = clock.NewReconciler(c.opts.Clock, clock.DefaultQuestionDuration, clock.Skew{})
	}
	return &Player{core: c, reconciler: reconciler}
}

func (p *Player) HandleStatus(status connection.Status) {
	p.handleStatus(status)
	if status.State == connection.StateClosed {
		p.reconciler.Freeze()
	}
}

func (p *Player) HandleFrame(frame protocol.Frame) {
	if p.phase == PhaseEnded {
		return
	}

	switch f := frame.(type) {
	case protocol.Control:
		p.handleControl(f.Signal)
	case protocol.Question:
		p.handleQuestion(f)
	case protocol.Attempt:
		p.handleAttempt(f)
	case protocol.Help:
		if p.question == nil {
			return
		}
		p.explanation = f.Text
	case protocol.Metrics:
		p.roster = f.Roster()
	default:
		log.Debug().Str("kind", frame.Kind().String()).Msg("player ignoring frame")
	}
}

func (p *Player) handleControl(sig protocol.Signal) {
	switch sig {
	case protocol.SignalPause:
		p.pause()
	case protocol.SignalResume:
		p.resume()
	case protocol.SignalEnd, protocol.SignalAllQuestionsAnswered:
		p.reconciler.Freeze()
		p.pending = false
		p.enterEnded()
	case protocol.SignalStart:
		log.Debug().Str("session_code", p.identity.Code).Msg("session started")
	}
}

// livePhase is the phase underneath a pause.
func (p *Player) livePhase() Phase {
	if p.phase == PhasePaused {
		return p.resumePhase
	}
	return p.phase
}

func (p *Player) handleQuestion(q protocol.Question) {
	p.asked++
	index := q.Index
	if index <= 0 {
		index = p.asked
	}
	p.question = &models.QuestionView{
		Index:           index,
		TotalQuestions:  q.TotalQuestions,
		Prompt:          q.Prompt,
		Options:         q.Options,
		ServerStartTime: q.StartTime,
	}
	p.clearAttempt()
	p.timedOut = false
	p.transitionLeft = 0

	anchor := q.StartTime
	if anchor.IsZero() {
		anchor = p.opts.Clock.Now()
	}
	p.reconciler.Arm(anchor)

	if p.phase == PhasePaused {
		p.reconciler.Freeze()
		p.resumePhase = PhaseInQuestion
		p.remaining = p.reconciler.RemainingSeconds()
		return
	}

	p.setPhase(PhaseInQuestion)
	p.alarm.every(alarmCountdown, countdownInterval)
	p.tick()
}

func (p *Player) handleAttempt(a protocol.Attempt) {
	if p.question == nil || p.timedOut || p.livePhase() != PhaseInQuestion {
		log.Debug().Str("session_code", p.identity.Code).Msg("attempt without a live question")
		return
	}

	p.pending = false
	p.attempt = &models.AttemptResult{
		ForOptionKey: p.selected,
		Correct:      a.Correct,
		IsFinal:      a.Final,
	}
	if a.Correct || a.Final {
		p.beginTransition()
	}
}

func (p *Player) beginTransition() {
	p.reconciler.Freeze()
	if p.phase == PhasePaused {
		p.resumePhase = PhaseAwaitingNext
		p.transitionLeft = p.opts.TransitionDelay
		return
	}
	p.setPhase(PhaseAwaitingNext)
	p.alarm.after(alarmTransition, p.opts.TransitionDelay)
}

func (p *Player) pause() {
	left := p.alarm.left()
	wasTransition := p.alarm.kind == alarmTransition
	if !p.enterPause() {
		return
	}
	if wasTransition {
		p.transitionLeft = left
	}
	p.reconciler.Freeze()
}

func (p *Player) resume() {
	if !p.leavePause() {
		return
	}
	switch p.phase {
	case PhaseInQuestion:
		p.reconciler.Unfreeze()
		if !p.timedOut {
			p.alarm.every(alarmCountdown, countdownInterval)
			p.tick()
		}
	case PhaseAwaitingNext:
		p.alarm.after(alarmTransition, p.transitionLeft)
		p.transitionLeft = 0
	}
}

func (p *Player) Fire(now time.Time) {
	switch p.alarm.fired() {
	case alarmCountdown:
		p.tick()
	case alarmTransition:
		p.finishTransition()
	}
}

// tick refreshes the countdown and applies the local expiry once. A submitted answer
// holds off expiry until Try Again clears it; the ticker keeps running meanwhile.
func (p *Player) tick() {
	_, fired := p.reconciler.Tick(p.selected == "" && p.attempt == nil)
	p.remaining = p.reconciler.RemainingSeconds()
	if !fired {
		return
	}

	log.Info().
		Str("session_code", p.identity.Code).
		Str("participant", p.identity.ParticipantName).
		Int("question", p.question.Index).
		Msg("question timed out")

	p.alarm.stop()
	p.timedOut = true
	p.attempt = &models.AttemptResult{ForOptionKey: p.selected, Correct: false, IsFinal: true}
	p.explanation = TimeUpExplanation
}

func (p *Player) finishTransition() {
	p.send(protocol.CommandNextQuestion)
	p.question = nil
	p.clearAttempt()
	p.timedOut = false
	p.remaining = 0
	p.reconciler.Disarm()
	p.setPhase(PhaseLobby)
}

func (p *Player) clearAttempt() {
	p.selected = ""
	p.pending = false
	p.attempt = nil
	p.explanation = ""
}

func (p *Player) gate() error {
	switch p.phase {
	case PhaseEnded:
		return ErrSessionEnded
	case PhasePaused:
		return ErrSessionPaused
	}
	return nil
}

// canAnswer reports whether a fresh answer may be submitted now.
func (p *Player) canAnswer() bool {
	return p.phase == PhaseInQuestion &&
		p.question != nil &&
		!p.pending &&
		!p.timedOut &&
		p.attempt == nil &&
		!p.connectionFailed()
}

func (p *Player) canRetry() bool {
	return p.phase == PhaseInQuestion &&
		p.attempt != nil &&
		p.attempt.CanRetry() &&
		!p.timedOut &&
		!p.connectionFailed()
}

// Answer submits the option key for the live question.
func (p *Player) Answer(key string) error {
	if err := p.gate(); err != nil {
		return err
	}
	if !p.canAnswer() {
		return ErrAnswerNotAllowed
	}
	key = protocol.NormalizeOption(key)
	if !p.question.HasOption(key) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, key)
	}
	if err := p.send(protocol.AnswerCommand(key)); err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}
	p.selected = key
	p.pending = true
	return nil
}

// TryAgain clears an incorrect, non-final verdict so another option can be chosen.
// The countdown is not extended.
func (p *Player) TryAgain() error {
	if err := p.gate(); err != nil {
		return err
	}
	if !p.canRetry() {
		return ErrRetryNotAllowed
	}
	if err := p.send(protocol.CommandTryAgain); err != nil {
		return fmt.Errorf("request retry: %w", err)
	}
	p.clearAttempt()
	return nil
}

// Snapshot copies the current state for rendering.
func (p *Player) Snapshot() PlayerSnapshot {
	s := PlayerSnapshot{
		Identity:       p.identity,
		Phase:          p.phase,
		ResumePhase:    p.resumePhase,
		Connection:     p.conn,
		ConnectionLost: p.connectionFailed(),
		Remaining:      p.remaining,
		Selected:       p.selected,
		Pending:        p.pending,
		Explanation:    p.explanation,
		TimedOut:       p.timedOut,
		Roster:         p.roster,
		CanAnswer:      p.canAnswer(),
		CanRetry:       p.canRetry(),
	}
	if p.question != nil {
		q := *p.question
		s.Question = &q
	}
	if p.attempt != nil {
		a := *p.attempt
		s.Attempt = &a
	}
	switch {
	case p.alarm.kind == alarmTransition:
		s.TransitionLeft = p.alarm.left()
	case p.phase == PhasePaused && p.resumePhase == PhaseAwaitingNext:
		s.TransitionLeft = p.transitionLeft
	}
	return s
}
