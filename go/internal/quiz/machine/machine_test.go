package machine

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []protocol.Command
	err  error
}

func (s *recordingSender) Send(cmd protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *recordingSender) commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Command(nil), s.sent...)
}

func expectCommands(t *testing.T, s *recordingSender, want ...protocol.Command) {
	t.Helper()
	got := s.commands()
	if len(got) != len(want) {
		t.Fatalf("expected commands %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected commands %v, got %v", want, got)
		}
	}
}

func decode(t *testing.T, raw string) protocol.Frame {
	t.Helper()
	f := protocol.Decode([]byte(raw))
	if u, ok := f.(protocol.Unrecognized); ok {
		t.Fatalf("frame %q not recognized: %v", raw, u.Err)
	}
	return f
}

// fire waits for the machine's alarm and delivers it, as the session loop would.
func fire(t *testing.T, m Machine) {
	t.Helper()
	ch := m.Alarm()
	if ch == nil {
		t.Fatalf("no alarm armed")
	}
	select {
	case now := <-ch:
		m.Fire(now)
	case <-time.After(2 * time.Second):
		t.Fatalf("alarm did not fire")
	}
}

func opened() connection.Status {
	return connection.Status{State: connection.StateOpen}
}

const capitalOfFrance = `{"question":{"question":"What is the capital of France?","options":{"A":"Paris","B":"London","C":"Berlin"},"start_time":1000,"total_questions":3}}`

func newTestPlayer(t *testing.T) (*Player, *recordingSender, *clockwork.FakeClock) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Unix(1005, 0))
	sender := &recordingSender{}
	identity, err := models.NewPlayerIdentity("ABCD", "alice")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	p := NewPlayer(identity, sender, nil, Options{Clock: clk})
	p.HandleStatus(opened())
	if p.Phase() != PhaseLobby {
		t.Fatalf("expected lobby after open, got %s", p.Phase())
	}
	return p, sender, clk
}
