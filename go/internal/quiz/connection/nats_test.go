package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()
	s, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(s.Shutdown)
	return s
}

func TestNATSDialerRoundTrip(t *testing.T) {
	s := runNATSServer(t)
	identity := testIdentity(t)
	down, up := Subjects(identity)

	peer, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("connect peer: %v", err)
	}
	defer peer.Close()
	commands := make(chan *nats.Msg, 4)
	if _, err := peer.ChanSubscribe(up, commands); err != nil {
		t.Fatalf("subscribe %s: %v", up, err)
	}
	if err := peer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	natsCfg := DefaultNATSConfig()
	natsCfg.URL = s.ClientURL()
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.InitialBackoff = 10 * time.Millisecond
	m := NewManager(identity, NewNATSDialer(natsCfg), cfg)
	defer m.Close()

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	expectState(t, m.Events(), StateConnecting)
	expectState(t, m.Events(), StateOpen)

	// The command travels on the same connection as the SUB, so once it arrives the
	// down subject is subscribed on the server.
	if err := m.Send(protocol.AnswerCommand("b")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case msg := <-commands:
		if string(msg.Data) != "B" {
			t.Fatalf("expected B on %s, got %q", up, msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("peer never received the answer")
	}

	if err := peer.Publish(down, []byte(`{"attempt":{"correct":true}}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ev := nextEvent(t, m.Events())
	if a, ok := ev.Frame.(protocol.Attempt); !ok || !a.Correct {
		t.Fatalf("expected correct attempt, got %#v", ev.Frame)
	}

	s.Shutdown()
	st := expectState(t, m.Events(), StateReconnecting)
	if st.Attempt != 1 {
		t.Fatalf("expected first reconnect attempt, got %+v", st)
	}
	st = expectState(t, m.Events(), StateClosed)
	if !errors.Is(st.Err, ErrChannelClosedUnexpectedly) {
		t.Fatalf("expected channel closed unexpectedly, got %v", st.Err)
	}
}
