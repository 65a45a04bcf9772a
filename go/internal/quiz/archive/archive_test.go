package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/machine"
)

type execCall struct {
	query string
	args  []driver.Value
}

// recorder is an in-memory database/sql driver that records statements.
type recorder struct {
	mu        sync.Mutex
	execs     []execCall
	failOn    string
	commits   int
	rollbacks int
}

func (r *recorder) Connect(context.Context) (driver.Conn, error) { return &fakeConn{rec: r}, nil }
func (r *recorder) Driver() driver.Driver { return fakeDriver{rec: r} }

type fakeDriver struct{ rec *recorder }

func (d fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{rec: d.rec}, nil }

type fakeConn struct{ rec *recorder }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{rec: c.rec}, nil }

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.rec.mu.Lock()
	defer c.rec.mu.Unlock()
	if c.rec.failOn != "" && strings.Contains(query, c.rec.failOn) {
		return nil, errors.New("constraint violation")
	}
	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	c.rec.execs = append(c.rec.execs, execCall{query: query, args: values})
	return driver.RowsAffected(1), nil
}

type fakeTx struct{ rec *recorder }

func (t fakeTx) Commit() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.commits++
	return nil
}

func (t fakeTx) Rollback() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.rollbacks++
	return nil
}

func finalResult() machine.FinalResult {
	roster := models.Roster{Code: "ABCD", Entries: map[string]models.RosterEntry{
		"alice": {ParticipantName: "alice", Score: 40, AvatarRef: "cat"},
		"bob":   {ParticipantName: "bob", Score: 20},
	}}
	return machine.FinalResult{
		Identity:    models.SessionIdentity{Code: "ABCD", Role: models.RoleHost},
		Roster:      roster,
		Leaderboard: roster.Leaderboard(),
		Snapshot:    json.RawMessage(`{"game_data":{"code":"ABCD"}}`),
		EndedAt:     time.Unix(2000, 0),
	}
}

func TestSaveWritesSessionAndResults(t *testing.T) {
	rec := &recorder{}
	a := New(sql.OpenDB(rec))
	defer a.Close()

	id, err := a.Save(context.Background(), finalResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(rec.execs) != 3 || rec.commits != 1 || rec.rollbacks != 0 {
		t.Fatalf("expected 3 statements in one committed tx, got %d execs %d commits %d rollbacks",
			len(rec.execs), rec.commits, rec.rollbacks)
	}

	session := rec.execs[0]
	if !strings.Contains(session.query, "INSERT INTO quiz_sessions") {
		t.Fatalf("unexpected first statement %q", session.query)
	}
	if session.args[0] != id.String() || session.args[1] != "ABCD" || session.args[2] != nil {
		t.Fatalf("unexpected session args %v", session.args)
	}
	if snap, ok := session.args[5].([]byte); !ok || !strings.Contains(string(snap), "game_data") {
		t.Fatalf("expected raw snapshot, got %v", session.args[5])
	}

	first := rec.execs[1]
	if first.args[1] != int64(1) || first.args[2] != "alice" || first.args[6] != "cat" {
		t.Fatalf("unexpected first result args %v", first.args)
	}
	if second := rec.execs[2]; second.args[2] != "bob" || second.args[6] != nil {
		t.Fatalf("unexpected second result args %v", second.args)
	}
}

func TestSaveRollsBackOnFailure(t *testing.T) {
	rec := &recorder{failOn: "quiz_results"}
	a := New(sql.OpenDB(rec))
	defer a.Close()

	if _, err := a.Save(context.Background(), finalResult()); err == nil {
		t.Fatalf("expected save to fail")
	}
	if rec.commits != 0 || rec.rollbacks != 1 {
		t.Fatalf("expected rollback, got %d commits %d rollbacks", rec.commits, rec.rollbacks)
	}
}
