package connection

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/internal/models"
)

// NATSConfig holds configuration for NATS push channels.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	FlushTimeout  time.Duration
	Buffer        int
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: 0,
		ReconnectWait: 2 * time.Second,
		FlushTimeout:  5 * time.Second,
		Buffer:        64,
	}
}

// Subjects returns the inbound and outbound subjects of identity.
func Subjects(identity models.SessionIdentity) (down, up string) {
	prefix := fmt.Sprintf("quiz.%s.%s", identity.Code, identity.Participant())
	return prefix + ".down", prefix + ".up"
}

// NATSDialer carries the push channel over a pair of NATS subjects. Client-level
// reconnects are off by default so the Manager's own backoff stays in charge.
type NATSDialer struct {
	Config NATSConfig
}

func NewNATSDialer(config NATSConfig) *NATSDialer {
	return &NATSDialer{Config: config}
}

func (d *NATSDialer) Dial(ctx context.Context, identity models.SessionIdentity) (Conn, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	c := &natsConn{
		msgs:   make(chan *nats.Msg, max(d.Config.Buffer, 1)),
		closed: make(chan struct{}),
		flush:  d.Config.FlushTimeout,
	}
	if c.flush <= 0 {
		c.flush = 5 * time.Second
	}
	c.down, c.up = Subjects(identity)

	opts := []nats.Option{
		nats.Name("quiz-" + identity.Code + "-" + identity.Participant()),
		nats.MaxReconnects(d.Config.MaxReconnects),
		nats.ReconnectWait(d.Config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Str("session_code", identity.Code).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.markClosed()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		if timeout := time.Until(deadline); timeout > 0 {
			opts = append(opts, nats.Timeout(timeout))
		}
	}

	nc, err := nats.Connect(d.Config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.nc = nc

	sub, err := nc.ChanSubscribe(c.down, c.msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.down, err)
	}
	c.sub = sub
	return c, nil
}

type natsConn struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	msgs     chan *nats.Msg
	down, up string
	flush    time.Duration

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *natsConn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *natsConn) Read() ([]byte, error) {
	select {
	case msg := <-c.msgs:
		return msg.Data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *natsConn) Write(data []byte) error {
	return c.nc.Publish(c.up, data)
}

func (c *natsConn) Ping() error {
	return c.nc.FlushTimeout(c.flush)
}

func (c *natsConn) Close() error {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.nc.Close()
	c.markClosed()
	return nil
}
