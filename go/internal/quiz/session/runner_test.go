package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/connection"
	"github.com/mcdev12/quizclient/go/internal/quiz/machine"
	"github.com/mcdev12/quizclient/go/internal/quiz/view"
)

type pipeConn struct {
	reads     chan []byte
	writes    chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		reads:  make(chan []byte, 16),
		writes: make(chan string, 16),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) Read() ([]byte, error) {
	select {
	case data := <-c.reads:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *pipeConn) Write(data []byte) error {
	c.writes <- string(data)
	return nil
}

func (c *pipeConn) Ping() error { return nil }

func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *pipeConn) push(frame string) { c.reads <- []byte(frame) }

func (c *pipeConn) expectWrite(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.writes:
		if got != want {
			t.Fatalf("expected %q on the wire, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

type captured struct {
	models chan view.Model
}

func (c *captured) Render(m view.Model) {
	select {
	case c.models <- m:
	default:
	}
}

// await skips rendered models until one satisfies match.
func (c *captured) await(t *testing.T, what string, match func(view.Model) bool) view.Model {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-c.models:
			if match(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

type fakeArchiver struct {
	mu      sync.Mutex
	results []machine.FinalResult
}

func (a *fakeArchiver) Save(ctx context.Context, result machine.FinalResult) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
	return uuid.New(), nil
}

func startRunner(t *testing.T, identity models.SessionIdentity, conn *pipeConn, clk clockwork.Clock, opts ...Option) (*Runner, *captured, <-chan error) {
	t.Helper()
	cc := connection.DefaultConfig()
	cc.PingInterval = 0
	cc.MaxAttempts = 0

	rec := &captured{models: make(chan view.Model, 256)}
	dialer := connection.DialerFunc(func(ctx context.Context, id models.SessionIdentity) (connection.Conn, error) {
		if conn == nil {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	})

	r, err := New(Config{
		Identity:   identity,
		Dialer:     dialer,
		Connection: cc,
		Clock:      clk,
	}, append(opts, WithRenderer(rec))...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()
	return r, rec, errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not return")
	}
	return nil
}

func TestRunnerPlayerRound(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(1005, 0))
	conn := newPipeConn()
	identity, _ := models.NewPlayerIdentity("ABCD", "alice")
	r, rec, errCh := startRunner(t, identity, conn, clk)

	rec.await(t, "lobby", func(m view.Model) bool { return m.Kind == view.KindLobby })

	conn.push(`{"question":{"question":"What is the capital of France?","options":{"A":"Paris","B":"London"},"start_time":1000}}`)
	m := rec.await(t, "question", func(m view.Model) bool { return m.Kind == view.KindQuestion })
	if m.Question.RemainingSeconds != 25 {
		t.Fatalf("expected 25 seconds remaining, got %d", m.Question.RemainingSeconds)
	}

	if err := r.Submit(context.Background(), view.Answer("a")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	conn.expectWrite(t, "A")

	conn.push(`{"attempt":{"correct":true}}`)
	rec.await(t, "transition", func(m view.Model) bool { return m.Kind == view.KindTransition })

	clk.Advance(4 * time.Second)
	conn.expectWrite(t, "NEXT_QUESTION")
	rec.await(t, "lobby after transition", func(m view.Model) bool { return m.Kind == view.KindLobby })

	conn.push("[END]")
	if err := waitRun(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}
	select {
	case <-conn.closed:
	default:
		t.Fatalf("expected connection closed on return")
	}
	if err := r.Submit(context.Background(), view.TryAgain()); !errors.Is(err, ErrRunnerDone) {
		t.Fatalf("expected ErrRunnerDone, got %v", err)
	}
}

func TestRunnerRejectedIntentBecomesNotice(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(1005, 0))
	conn := newPipeConn()
	identity, _ := models.NewPlayerIdentity("ABCD", "alice")
	r, rec, errCh := startRunner(t, identity, conn, clk)

	rec.await(t, "lobby", func(m view.Model) bool { return m.Kind == view.KindLobby })
	if err := r.Submit(context.Background(), view.Answer("A")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	m := rec.await(t, "notice", func(m view.Model) bool { return m.Notice != "" })
	if m.Notice != machine.ErrAnswerNotAllowed.Error() {
		t.Fatalf("unexpected notice %q", m.Notice)
	}

	if err := r.Submit(context.Background(), view.Leave()); err != nil {
		t.Fatalf("submit leave: %v", err)
	}
	if err := waitRun(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunnerHostArchivesOnce(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(1005, 0))
	conn := newPipeConn()
	identity, _ := models.NewHostIdentity("ABCD")
	archiver := &fakeArchiver{}
	r, rec, errCh := startRunner(t, identity, conn, clk, WithArchiver(archiver))

	rec.await(t, "lobby", func(m view.Model) bool { return m.Kind == view.KindLobby })
	conn.push(`{"metrics":{"game_data":{"code":"ABCD"},"player_metrics":{"alice":{"score":10},"bob":{"score":30}}}}`)
	rec.await(t, "roster", func(m view.Model) bool { return m.Lobby != nil && len(m.Lobby.Players) == 2 })

	if err := r.Submit(context.Background(), view.Start()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	conn.expectWrite(t, "start")
	rec.await(t, "leaderboard", func(m view.Model) bool { return m.Kind == view.KindLeaderboard })

	if err := r.Submit(context.Background(), view.End()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := waitRun(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}
	conn.expectWrite(t, "end")

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	if len(archiver.results) != 1 {
		t.Fatalf("expected one archived result, got %d", len(archiver.results))
	}
	if lb := archiver.results[0].Leaderboard; len(lb) != 2 || lb[0].ParticipantName != "bob" {
		t.Fatalf("unexpected archived leaderboard %+v", lb)
	}
}

func TestRunnerConnectionLost(t *testing.T) {
	conn := newPipeConn()
	identity, _ := models.NewPlayerIdentity("ABCD", "alice")
	_, rec, errCh := startRunner(t, identity, conn, clockwork.NewFakeClock())

	rec.await(t, "lobby", func(m view.Model) bool { return m.Kind == view.KindLobby })
	conn.Close()

	err := waitRun(t, errCh)
	if !errors.Is(err, connection.ErrChannelClosedUnexpectedly) {
		t.Fatalf("expected ErrChannelClosedUnexpectedly, got %v", err)
	}
	rec.await(t, "connection failure", func(m view.Model) bool { return m.Kind == view.KindConnectionFailed })
}

func TestRunnerOpenFailure(t *testing.T) {
	identity, _ := models.NewPlayerIdentity("ABCD", "alice")
	_, rec, errCh := startRunner(t, identity, nil, clockwork.NewFakeClock())

	if err := waitRun(t, errCh); err == nil {
		t.Fatalf("expected open error")
	}
	rec.await(t, "connection failure", func(m view.Model) bool { return m.Kind == view.KindConnectionFailed })
}
