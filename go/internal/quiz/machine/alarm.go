package machine

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type alarmKind int

const (
	alarmNone alarmKind = iota
	alarmCountdown
	alarmTransition
	alarmNotice
)

func (k alarmKind) String() string {
	switch k {
	case alarmCountdown:
		return "countdown"
	case alarmTransition:
		return "transition"
	case alarmNotice:
		return "notice"
	default:
		return "none"
	}
}

// alarm is the single time source of a session view. Arming it with a ticker or a
// timer always stops whatever was armed before.
type alarm struct {
	clock    clockwork.Clock
	kind     alarmKind
	ticker   clockwork.Ticker
	timer    clockwork.Timer
	deadline time.Time
}

func (a *alarm) every(kind alarmKind, interval time.Duration) {
	a.stop()
	a.kind = kind
	a.ticker = a.clock.NewTicker(interval)
}

func (a *alarm) after(kind alarmKind, d time.Duration) {
	a.stop()
	a.kind = kind
	a.deadline = a.clock.Now().Add(d)
	a.timer = a.clock.NewTimer(d)
}

// left is the time until a one-shot alarm fires.
func (a *alarm) left() time.Duration {
	if a.timer == nil {
		return 0
	}
	d := a.deadline.Sub(a.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

func (a *alarm) stop() {
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.kind = alarmNone
	a.deadline = time.Time{}
}

// C returns the channel of the armed source, or nil when nothing is armed.
func (a *alarm) C() <-chan time.Time {
	switch {
	case a.ticker != nil:
		return a.ticker.Chan()
	case a.timer != nil:
		return a.timer.Chan()
	default:
		return nil
	}
}

// fired consumes a one-shot alarm and reports which kind it was.
func (a *alarm) fired() alarmKind {
	kind := a.kind
	if a.timer != nil {
		a.timer = nil
		a.kind = alarmNone
		a.deadline = time.Time{}
	}
	return kind
}
