package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultQuestionDuration is the fixed answer window of a question.
const DefaultQuestionDuration = 30 * time.Second

// Reconciler derives the local countdown of the current question from the server's
// anchor. Remaining time is always recomputed from the anchor and never decremented by
// hand, so late or jittery frames do not drift the countdown.
//
// A Reconciler is not safe for concurrent use; it belongs to one session event loop.
type Reconciler struct {
	clock    clockwork.Clock
	duration time.Duration
	skew     Skew

	armed       bool
	anchor      time.Time
	frozen      bool
	frozenAt    time.Time
	frozenTotal time.Duration
	expired     bool
}

// NewReconciler creates a reconciler for questions of the given duration.
func NewReconciler(clk clockwork.Clock, duration time.Duration, skew Skew) *Reconciler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultQuestionDuration
	}
	return &Reconciler{clock: clk, duration: duration, skew: skew}
}

// Arm starts a new countdown from anchor, dropping any previous question's state.
func (r *Reconciler) Arm(anchor time.Time) {
	now := r.clock.Now()
	r.armed = true
	r.anchor = r.skew.Adjust(anchor, now, r.duration)
	r.frozen = false
	r.frozenAt = time.Time{}
	r.frozenTotal = 0
	r.expired = false
}

// Disarm forgets the current countdown.
func (r *Reconciler) Disarm() {
	*r = Reconciler{clock: r.clock, duration: r.duration, skew: r.skew}
}

// Armed reports whether a countdown is in progress.
func (r *Reconciler) Armed() bool { return r.armed }

// Frozen reports whether the countdown is suspended.
func (r *Reconciler) Frozen() bool { return r.frozen }

// Expired reports whether expiry has already fired for the current countdown.
func (r *Reconciler) Expired() bool { return r.expired }

// Duration is the full answer window.
func (r *Reconciler) Duration() time.Duration { return r.duration }

// Freeze suspends the countdown. The anchor is kept; frozen time is later excluded.
func (r *Reconciler) Freeze() {
	if !r.armed || r.frozen {
		return
	}
	r.frozen = true
	r.frozenAt = r.clock.Now()
}

// Unfreeze resumes the countdown from the value it had when frozen.
func (r *Reconciler) Unfreeze() {
	if !r.armed || !r.frozen {
		return
	}
	r.frozenTotal += r.clock.Now().Sub(r.frozenAt)
	r.frozen = false
	r.frozenAt = time.Time{}
}

// Remaining returns clamp(anchor + duration + frozen - now, 0, duration).
func (r *Reconciler) Remaining() time.Duration {
	if !r.armed {
		return 0
	}
	now := r.clock.Now()
	if r.frozen {
		now = r.frozenAt
	}
	remaining := r.anchor.Add(r.duration + r.frozenTotal).Sub(now)
	if remaining < 0 {
		return 0
	}
	if remaining > r.duration {
		return r.duration
	}
	return remaining
}

// RemainingSeconds rounds the remaining time up to whole seconds for display.
func (r *Reconciler) RemainingSeconds() int {
	rem := r.Remaining()
	secs := int(rem / time.Second)
	if rem%time.Second != 0 {
		secs++
	}
	return secs
}

// Tick recomputes the countdown. fired is true exactly once per armed countdown: the
// first tick that sees zero remaining while not frozen and with canExpire set.
func (r *Reconciler) Tick(canExpire bool) (remaining time.Duration, fired bool) {
	remaining = r.Remaining()
	if !r.armed || r.frozen || r.expired || !canExpire {
		return remaining, false
	}
	if remaining == 0 {
		r.expired = true
		return 0, true
	}
	return remaining, false
}
