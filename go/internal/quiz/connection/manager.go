package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/metrics"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

// Config holds the keep-alive and reconnect policy of a Manager.
type Config struct {
	PingInterval   time.Duration
	SendBuffer     int
	EventBuffer    int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default connection policy.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		SendBuffer:     64,
		EventBuffer:    64,
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// Backoff returns the wait before the given reconnect attempt, starting at 1.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := c.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// Manager owns the single push channel of one session view. Inbound frames are decoded
// once here and delivered with status changes, in order, on Events.
type Manager struct {
	identity models.SessionIdentity
	dialer   Dialer
	config   Config
	clock    clockwork.Clock
	metrics  metrics.Collector

	events chan Event
	sendCh chan []byte
	stop   chan struct{}
	done   chan struct{}

	mu           sync.Mutex
	status       Status
	started      bool
	connectionID string
	stopOnce     sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock, used by tests.
func WithClock(clk clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clk }
}

// WithMetrics records frames, sends and reconnects on c.
func WithMetrics(c metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// NewManager creates a connection handle for identity. Nothing is dialed until Open.
func NewManager(identity models.SessionIdentity, dialer Dialer, config Config, opts ...Option) *Manager {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 64
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 500 * time.Millisecond
	}

	m := &Manager{
		identity: identity,
		dialer:   dialer,
		config:   config,
		clock:    clockwork.NewRealClock(),
		metrics:  metrics.NoOpCollector{},
		events:   make(chan Event, config.EventBuffer),
		sendCh:   make(chan []byte, config.SendBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		status:   Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the ordered stream of frames and status changes. It is closed after
// the handle reaches Closed.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Status returns the current state of the handle.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ConnectionID identifies the current transport connection in logs.
func (m *Manager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectionID
}

// Open dials the push channel and starts the pumps. A failed first dial closes the
// handle with the dial error; there is no reconnect before the first Open.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyOpened
	}
	m.started = true
	m.mu.Unlock()

	m.setStatus(Status{State: StateConnecting})

	conn, err := m.dial(ctx)
	if err != nil {
		if errors.Is(err, errClosing) {
			m.finish(nil)
			return fmt.Errorf("open session channel: %w", ErrConnectionNotReady)
		}
		m.finish(err)
		return fmt.Errorf("open session channel: %w", err)
	}

	m.setStatus(Status{State: StateOpen})
	go m.run(ctx, conn)
	return nil
}

// Send queues one outbound command. It never blocks and never panics.
func (m *Manager) Send(cmd protocol.Command) error {
	m.mu.Lock()
	state := m.status.State
	m.mu.Unlock()

	if state != StateOpen {
		m.metrics.RecordSend(cmd.Label(), false)
		return ErrConnectionNotReady
	}

	select {
	case m.sendCh <- []byte(cmd):
		m.metrics.RecordSend(cmd.Label(), true)
		return nil
	default:
		m.metrics.RecordSend(cmd.Label(), false)
		return ErrSendBufferFull
	}
}

// Close flushes queued sends, closes the transport and waits for the pumps to exit.
// It is safe to call more than once and from any goroutine.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	if !m.started {
		m.started = true
		m.status = Status{State: StateClosed}
		close(m.events)
		close(m.done)
	}
	m.mu.Unlock()

	<-m.done
	return nil
}

func (m *Manager) run(ctx context.Context, conn Conn) {
	for {
		err := m.serve(ctx, conn)
		if errors.Is(err, errClosing) {
			m.finish(nil)
			return
		}
		if ctx.Err() != nil {
			m.finish(ctx.Err())
			return
		}

		log.Warn().
			Err(err).
			Str("session_code", m.identity.Code).
			Str("connection_id", m.ConnectionID()).
			Msg("session channel dropped")

		conn, err = m.reconnect(ctx)
		if err != nil {
			if errors.Is(err, errClosing) {
				m.finish(nil)
			} else {
				m.finish(err)
			}
			return
		}
	}
}

// serve runs the pumps for one transport connection until either of them fails.
func (m *Manager) serve(ctx context.Context, conn Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		return m.readPump(conn)
	})
	g.Go(func() error {
		return m.writePump(gctx, conn)
	})

	return g.Wait()
}

func (m *Manager) readPump(conn Conn) error {
	for {
		data, err := conn.Read()
		if err != nil {
			select {
			case <-m.stop:
				return errClosing
			default:
				return fmt.Errorf("read frame: %w", err)
			}
		}

		frame := protocol.Decode(data)
		if u, ok := frame.(protocol.Unrecognized); ok {
			m.metrics.RecordUnrecognizedFrame()
			log.Warn().
				Err(u.Err).
				Str("session_code", m.identity.Code).
				Str("connection_id", m.ConnectionID()).
				Msg("ignoring unrecognized frame")
			continue
		}
		m.metrics.RecordFrame(frame.Kind().String())
		m.emit(Event{Frame: frame})
	}
}

func (m *Manager) writePump(ctx context.Context, conn Conn) error {
	var ping <-chan time.Time
	if m.config.PingInterval > 0 {
		ticker := m.clock.NewTicker(m.config.PingInterval)
		defer ticker.Stop()
		ping = ticker.Chan()
	}

	for {
		select {
		case <-m.stop:
			m.flush(conn)
			return errClosing
		case <-ctx.Done():
			return ctx.Err()
		case data := <-m.sendCh:
			if err := conn.Write(data); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		case <-ping:
			if err := conn.Ping(); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// flush writes whatever is still queued before the transport is closed.
func (m *Manager) flush(conn Conn) {
	for {
		select {
		case data := <-m.sendCh:
			if err := conn.Write(data); err != nil {
				log.Warn().Err(err).Str("session_code", m.identity.Code).Msg("dropping queued sends on close")
				return
			}
		default:
			return
		}
	}
}

func (m *Manager) reconnect(ctx context.Context) (Conn, error) {
	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		backoff := m.config.Backoff(attempt)
		m.setStatus(Status{State: StateReconnecting, Attempt: attempt, Backoff: backoff})

		select {
		case <-m.stop:
			return nil, errClosing
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.clock.After(backoff):
		}

		conn, err := m.dial(ctx)
		m.metrics.RecordReconnectAttempt(attempt, err == nil)
		if err == nil {
			m.setStatus(Status{State: StateOpen})
			return conn, nil
		}
		if errors.Is(err, errClosing) {
			return nil, err
		}
		log.Warn().
			Err(err).
			Str("session_code", m.identity.Code).
			Int("attempt", attempt).
			Msg("reconnect attempt failed")
	}
	return nil, ErrChannelClosedUnexpectedly
}

// dial opens one transport connection, aborting when Close is called.
func (m *Manager) dial(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.stop:
			cancel()
		case <-dialCtx.Done():
		}
	}()

	conn, err := m.dialer.Dial(dialCtx, m.identity)
	select {
	case <-m.stop:
		if conn != nil {
			conn.Close()
		}
		return nil, errClosing
	default:
	}
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.connectionID = id
	m.mu.Unlock()

	log.Info().
		Str("session_code", m.identity.Code).
		Str("role", string(m.identity.Role)).
		Str("participant", m.identity.Participant()).
		Str("connection_id", id).
		Msg("session channel open")
	return conn, nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	m.emit(Event{Status: &s})
}

// emit delivers ev unless the handle is being closed and nobody is reading.
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.stop:
	}
}

func (m *Manager) finish(reason error) {
	m.setStatus(Status{State: StateClosed, Err: reason})
	close(m.events)
	close(m.done)

	log.Info().
		Err(reason).
		Str("session_code", m.identity.Code).
		Msg("session channel closed")
}
