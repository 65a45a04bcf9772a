package machine

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
	"github.com/mcdev12/quizclient/go/internal/quiz/metrics"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

// Sender delivers outbound commands. connection.Manager implements it.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Machine is what the session event loop drives. All methods must be called from that
// one goroutine.
type Machine interface {
	HandleStatus(status connection.Status)
	HandleFrame(frame protocol.Frame)
	// Alarm returns the channel of the armed ticker or timer, nil when none is armed.
	Alarm() <-chan time.Time
	Fire(now time.Time)
	Phase() Phase
	Ended() bool
	Stop()
}

// Options holds the timing and collaborators shared by both variants.
type Options struct {
	Clock           clockwork.Clock
	Metrics         metrics.Collector
	TransitionDelay time.Duration
	NoticeDuration  time.Duration
}

const (
	DefaultTransitionDelay = 4 * time.Second
	DefaultNoticeDuration  = 3 * time.Second
	countdownInterval      = time.Second
)

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoOpCollector{}
	}
	if o.TransitionDelay <= 0 {
		o.TransitionDelay = DefaultTransitionDelay
	}
	if o.NoticeDuration <= 0 {
		o.NoticeDuration = DefaultNoticeDuration
	}
	return o
}

// core is the state shared by the host and player machines.
type core struct {
	identity models.SessionIdentity
	sender   Sender
	opts     Options
	alarm    alarm

	phase       Phase
	resumePhase Phase
	conn        connection.Status
}

func newCore(identity models.SessionIdentity, sender Sender, opts Options) core {
	opts = opts.withDefaults()
	c := core{
		identity: identity,
		sender:   sender,
		opts:     opts,
		alarm:    alarm{clock: opts.Clock},
		phase:    PhaseAwaitingConnection,
		conn:     connection.Status{State: connection.StateIdle},
	}
	opts.Metrics.RecordPhase(string(identity.Role), string(c.phase))
	return c
}

func (c *core) Phase() Phase { return c.phase }

func (c *core) Ended() bool { return c.phase == PhaseEnded }

func (c *core) Alarm() <-chan time.Time { return c.alarm.C() }

func (c *core) Stop() { c.alarm.stop() }

func (c *core) setPhase(p Phase) {
	if p == c.phase {
		return
	}
	log.Debug().
		Str("session_code", c.identity.Code).
		Str("role", string(c.identity.Role)).
		Str("from", string(c.phase)).
		Str("phase", string(p)).
		Msg("session phase changed")
	c.phase = p
	c.opts.Metrics.RecordPhase(string(c.identity.Role), string(p))
}

// handleStatus moves out of AwaitingConnection on the first Open and stops timing when
// the channel is gone for good.
func (c *core) handleStatus(status connection.Status) {
	c.conn = status
	switch status.State {
	case connection.StateOpen:
		if c.phase == PhaseAwaitingConnection {
			c.setPhase(PhaseLobby)
		}
	case connection.StateClosed:
		if status.Err != nil && c.phase != PhaseEnded {
			log.Error().
				Err(status.Err).
				Str("session_code", c.identity.Code).
				Str("phase", string(c.phase)).
				Msg("session channel lost")
		}
		c.alarm.stop()
	}
}

// connectionFailed reports whether the channel closed with an error before the end.
func (c *core) connectionFailed() bool {
	return c.conn.State == connection.StateClosed && c.conn.Err != nil && c.phase != PhaseEnded
}

// enterPause records the interrupted phase. It returns false for duplicate or
// meaningless pauses.
func (c *core) enterPause() bool {
	if c.phase == PhasePaused || !c.phase.pausable() {
		return false
	}
	c.resumePhase = c.phase
	c.alarm.stop()
	c.setPhase(PhasePaused)
	return true
}

// leavePause restores the interrupted phase. It returns false when not paused.
func (c *core) leavePause() bool {
	if c.phase != PhasePaused {
		return false
	}
	c.setPhase(c.resumePhase)
	c.resumePhase = ""
	return true
}

func (c *core) enterEnded() {
	c.alarm.stop()
	c.resumePhase = ""
	c.setPhase(PhaseEnded)
}

func (c *core) send(cmd protocol.Command) error {
	if err := c.sender.Send(cmd); err != nil {
		log.Warn().
			Err(err).
			Str("session_code", c.identity.Code).
			Str("command", cmd.Label()).
			Msg("command not sent")
		return err
	}
	return nil
}
