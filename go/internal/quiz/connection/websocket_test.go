package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

func TestWebsocketEndpoint(t *testing.T) {
	host, err := models.NewHostIdentity("ABCD")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	d := NewWebsocketDialer("https://quiz.example.com/", DefaultWebsocketConfig())
	got, err := d.Endpoint(host)
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if got != "wss://quiz.example.com/ws/ABCD/host" {
		t.Fatalf("unexpected endpoint %q", got)
	}

	d = NewWebsocketDialer("ftp://quiz.example.com", DefaultWebsocketConfig())
	if _, err := d.Endpoint(host); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

func TestWebsocketDialerRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)
	paths := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.WriteMessage(websocket.TextMessage, []byte(`{"question":{"question":"Capital of France?","options":{"A":"Paris","B":"Lyon"},"start_time":1000}}`))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
		ws.ReadMessage()
	}))
	defer srv.Close()

	identity, err := models.NewPlayerIdentity("ABCD", "alice")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	m := NewManager(identity, NewWebsocketDialer(srv.URL, DefaultWebsocketConfig()), testConfig())
	defer m.Close()

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	expectState(t, m.Events(), StateConnecting)
	expectState(t, m.Events(), StateOpen)

	if path := <-paths; path != "/ws/ABCD/alice" {
		t.Fatalf("unexpected path %q", path)
	}

	ev := nextEvent(t, m.Events())
	q, ok := ev.Frame.(protocol.Question)
	if !ok {
		t.Fatalf("expected question frame, got %#v", ev.Frame)
	}
	if !strings.HasPrefix(q.Prompt, "Capital of France") || len(q.Options) != 2 || q.Options[0].Key != "A" {
		t.Fatalf("unexpected question %+v", q)
	}

	if err := m.Send(protocol.AnswerCommand("a")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case msg := <-received:
		if msg != "A" {
			t.Fatalf("expected A, got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the answer")
	}
}
