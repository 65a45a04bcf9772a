package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ably/ably-go/ably"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/internal/models"
)

// AblyConfig holds configuration for Ably realtime push channels.
type AblyConfig struct {
	Key    string
	Buffer int
}

// AblyChannels returns the channel a participant receives frames on and the channel its
// commands are published to. Commands are named after the participant.
func AblyChannels(identity models.SessionIdentity) (down, up string) {
	return "quiz:" + identity.Code + ":" + identity.Participant(), "control:" + identity.Code
}

// AblyDialer carries the push channel over Ably realtime channels.
type AblyDialer struct {
	Config AblyConfig
}

func NewAblyDialer(config AblyConfig) *AblyDialer {
	return &AblyDialer{Config: config}
}

func (d *AblyDialer) Dial(ctx context.Context, identity models.SessionIdentity) (Conn, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if d.Config.Key == "" {
		return nil, errors.New("ably key is required")
	}

	client, err := ably.NewRealtime(
		ably.WithKey(d.Config.Key),
		ably.WithClientID(identity.Participant()),
		ably.WithAutoConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create ably client: %w", err)
	}

	c := &ablyConn{
		client:   client,
		msgs:     make(chan []byte, max(d.Config.Buffer, 1)),
		closed:   make(chan struct{}),
		identity: identity,
	}
	down, up := AblyChannels(identity)
	c.up = client.Channels.Get(up)

	connected := make(chan struct{})
	var once sync.Once
	offConnected := client.Connection.On(ably.ConnectionEventConnected, func(ably.ConnectionStateChange) {
		once.Do(func() { close(connected) })
	})
	defer offConnected()
	for _, ev := range []ably.ConnectionEvent{ably.ConnectionEventFailed, ably.ConnectionEventClosed, ably.ConnectionEventSuspended} {
		c.offs = append(c.offs, client.Connection.On(ev, c.connectionLost))
	}

	client.Connect()
	select {
	case <-connected:
	case <-c.closed:
		c.Close()
		return nil, fmt.Errorf("connect to ably: %w", ErrChannelClosedUnexpectedly)
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}

	unsubscribe, err := client.Channels.Get(down).SubscribeAll(ctx, c.deliver)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("subscribe %s: %w", down, err)
	}
	c.unsubscribe = unsubscribe
	return c, nil
}

type ablyConn struct {
	client      *ably.Realtime
	up          *ably.RealtimeChannel
	unsubscribe func()
	offs        []func()
	msgs        chan []byte
	identity    models.SessionIdentity

	closing   atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
}

// connectionLost handles the terminal connection states. Our own Close is not a loss.
func (c *ablyConn) connectionLost(change ably.ConnectionStateChange) {
	if !c.closing.Load() {
		log.Error().
			Str("session_code", c.identity.Code).
			Str("state", fmt.Sprint(change.Current)).
			Msg("Ably connection lost")
	}
	c.markClosed()
}

func (c *ablyConn) deliver(msg *ably.Message) {
	var data []byte
	switch v := msg.Data.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		log.Warn().Str("name", msg.Name).Msg("ignoring ably message with unsupported payload")
		return
	}
	select {
	case c.msgs <- data:
	case <-c.closed:
	}
}

func (c *ablyConn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *ablyConn) Read() ([]byte, error) {
	select {
	case data := <-c.msgs:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *ablyConn) Write(data []byte) error {
	return c.up.Publish(context.Background(), c.identity.Participant(), string(data))
}

func (c *ablyConn) Ping() error {
	if state := c.client.Connection.State(); state != ably.ConnectionStateConnected {
		return fmt.Errorf("ably connection %s", state)
	}
	return nil
}

func (c *ablyConn) Close() error {
	c.closing.Store(true)
	for _, off := range c.offs {
		off()
	}
	c.offs = nil
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.client.Close()
	c.markClosed()
	return nil
}
