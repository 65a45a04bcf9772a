package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/clock"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
	"github.com/mcdev12/quizclient/go/internal/quiz/machine"
	"github.com/mcdev12/quizclient/go/internal/quiz/metrics"
	"github.com/mcdev12/quizclient/go/internal/quiz/view"
)

// ErrRunnerDone is returned by Submit once Run has returned.
var ErrRunnerDone = errors.New("session runner stopped")

// Renderer receives every new view model.
type Renderer interface {
	Render(m view.Model)
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(m view.Model)

func (f RendererFunc) Render(m view.Model) { f(m) }

// Archiver stores the final result of a hosted session.
type Archiver interface {
	Save(ctx context.Context, result machine.FinalResult) (uuid.UUID, error)
}

// Service runs next to the session loop and must return when ctx is done.
type Service func(ctx context.Context) error

// Config describes one session view.
type Config struct {
	Identity         models.SessionIdentity
	Dialer           connection.Dialer
	Connection       connection.Config
	QuestionDuration time.Duration
	Skew             clock.Skew
	TransitionDelay  time.Duration
	NoticeDuration   time.Duration
	Clock            clockwork.Clock
	Metrics          metrics.Collector
}

// Runner owns the connection, the state machine and the renderers of one session view.
type Runner struct {
	id       string
	identity models.SessionIdentity
	conn     *connection.Manager
	machine  machine.Machine
	player   *machine.Player
	host     *machine.Host

	renderers []Renderer
	services  []Service
	archiver  Archiver

	intents chan view.Intent
	done    chan struct{}

	final   *machine.FinalResult
	lastErr error
}

// Option configures a Runner.
type Option func(*Runner)

func WithRenderer(r Renderer) Option {
	return func(rn *Runner) { rn.renderers = append(rn.renderers, r) }
}

func WithService(s Service) Option {
	return func(rn *Runner) { rn.services = append(rn.services, s) }
}

// WithArchiver stores the final standings when a hosted session ends.
func WithArchiver(a Archiver) Option {
	return func(rn *Runner) { rn.archiver = a }
}

// New wires a connection manager and the machine matching the identity's role.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("session identity: %w", err)
	}
	if cfg.Dialer == nil {
		return nil, errors.New("session dialer is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOpCollector{}
	}

	r := &Runner{
		id:       uuid.New().String(),
		identity: cfg.Identity,
		conn: connection.NewManager(cfg.Identity, cfg.Dialer, cfg.Connection,
			connection.WithClock(cfg.Clock),
			connection.WithMetrics(cfg.Metrics),
		),
		intents: make(chan view.Intent, 16),
		done:    make(chan struct{}),
	}

	machineOpts := machine.Options{
		Clock:           cfg.Clock,
		Metrics:         cfg.Metrics,
		TransitionDelay: cfg.TransitionDelay,
		NoticeDuration:  cfg.NoticeDuration,
	}
	if cfg.Identity.IsHost() {
		r.host = machine.NewHost(cfg.Identity, r.conn, machineOpts)
		r.host.OnEnded(func(res machine.FinalResult) { r.final = &res })
		r.machine = r.host
	} else {
		reconciler := clock.NewReconciler(cfg.Clock, cfg.QuestionDuration, cfg.Skew)
		r.player = machine.NewPlayer(cfg.Identity, r.conn, reconciler, machineOpts)
		r.machine = r.player
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Submit forwards a user intent to the session loop.
func (r *Runner) Submit(ctx context.Context, in view.Intent) error {
	select {
	case <-r.done:
		return ErrRunnerDone
	default:
	}
	select {
	case r.intents <- in:
		return nil
	case <-r.done:
		return ErrRunnerDone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run opens the session channel and serializes frames, alarms and intents until the
// session ends, the user leaves, or ctx is cancelled. On return the alarm is stopped,
// the channel is closed and a hosted session's result has been archived.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range r.services {
		svc := svc
		g.Go(func() error { return svc(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return r.loop(gctx)
	})
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context) (err error) {
	logger := log.With().
		Str("view_id", r.id).
		Str("session_code", r.identity.Code).
		Str("role", string(r.identity.Role)).
		Logger()

	defer func() {
		r.machine.Stop()
		r.conn.Close()
		r.archive(ctx)
		logger.Info().Err(err).Str("phase", string(r.machine.Phase())).Msg("session view stopped")
	}()

	r.render()
	if err := r.conn.Open(ctx); err != nil {
		r.drain()
		return err
	}
	logger.Info().Str("connection_id", r.conn.ConnectionID()).Msg("session view running")

	events := r.conn.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				status := r.conn.Status()
				r.machine.HandleStatus(status)
				r.render()
				if status.Err != nil {
					return fmt.Errorf("session %s: %w", r.identity.Code, status.Err)
				}
				return nil
			}
			r.dispatch(ev)

		case now := <-r.machine.Alarm():
			r.machine.Fire(now)

		case in := <-r.intents:
			if in.Kind == view.IntentLeave {
				logger.Info().Msg("participant left the session")
				return nil
			}
			if err := r.apply(in); err != nil {
				logger.Warn().Err(err).Str("intent", in.Kind.String()).Msg("intent rejected")
				r.lastErr = err
			}
		}

		r.render()
		if r.machine.Ended() {
			return nil
		}
	}
}

// drain applies the statuses left on the event stream after a failed open.
func (r *Runner) drain() {
	for ev := range r.conn.Events() {
		if ev.Status != nil {
			r.machine.HandleStatus(*ev.Status)
		}
	}
	r.render()
}

func (r *Runner) dispatch(ev connection.Event) {
	if ev.Status != nil {
		r.machine.HandleStatus(*ev.Status)
		return
	}
	r.machine.HandleFrame(ev.Frame)
}

func (r *Runner) apply(in view.Intent) error {
	if r.host != nil {
		switch in.Kind {
		case view.IntentStart:
			return r.host.Start()
		case view.IntentTogglePause:
			return r.host.TogglePause()
		case view.IntentEnd:
			return r.host.End()
		}
		return fmt.Errorf("intent %s not available to the host", in.Kind)
	}

	switch in.Kind {
	case view.IntentAnswer:
		return r.player.Answer(in.Option)
	case view.IntentTryAgain:
		return r.player.TryAgain()
	}
	return fmt.Errorf("intent %s not available to players", in.Kind)
}

func (r *Runner) model() view.Model {
	var m view.Model
	if r.host != nil {
		m = view.ForHost(r.host.Snapshot())
	} else {
		m = view.ForPlayer(r.player.Snapshot())
	}
	if r.lastErr != nil && m.Notice == "" {
		m.Notice = r.lastErr.Error()
	}
	return m
}

func (r *Runner) render() {
	m := r.model()
	r.lastErr = nil
	for _, rd := range r.renderers {
		rd.Render(m)
	}
}

func (r *Runner) archive(ctx context.Context) {
	if r.archiver == nil || r.final == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := r.archiver.Save(saveCtx, *r.final); err != nil {
		log.Error().Err(err).Str("session_code", r.identity.Code).Msg("failed to archive session results")
	}
	r.final = nil
}
