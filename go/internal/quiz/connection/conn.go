package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

var (
	// ErrConnectionNotReady is returned by Send when the handle is not Open.
	ErrConnectionNotReady = errors.New("connection not ready")
	// ErrChannelClosedUnexpectedly is the close reason when the server side went away
	// and reconnecting was exhausted or disabled.
	ErrChannelClosedUnexpectedly = errors.New("channel closed unexpectedly")
	// ErrSendBufferFull is returned by Send when the write pump is not keeping up.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrAlreadyOpened is returned when Open is called twice on one Manager.
	ErrAlreadyOpened = errors.New("connection already opened")

	errClosing = errors.New("connection closing")
)

// Conn is one live transport connection. Read blocks until a frame arrives or the
// connection fails. Write and Ping are only called from a single goroutine; Close may be
// called concurrently with everything else and more than once.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping() error
	Close() error
}

// Dialer opens the push channel of one session participant.
type Dialer interface {
	Dial(ctx context.Context, identity models.SessionIdentity) (Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, identity models.SessionIdentity) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, identity models.SessionIdentity) (Conn, error) {
	return f(ctx, identity)
}

// State is the lifecycle state of a connection handle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status describes a state change of the handle. Attempt and Backoff are set while
// Reconnecting; Err is the close reason and is nil for a requested close.
type Status struct {
	State   State
	Attempt int
	Backoff time.Duration
	Err     error
}

// Event is either a decoded inbound frame or a status change.
type Event struct {
	Frame  protocol.Frame
	Status *Status
}
