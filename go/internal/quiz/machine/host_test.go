package machine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

const twoPlayers = `{"metrics":{"game_data":{"code":"ABCD","start_time":1000},"player_metrics":{"bob":{"score":20},"alice":{"score":40,"avatar":"cat"}}}}`

func newTestHost(t *testing.T) (*Host, *recordingSender, *clockwork.FakeClock) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Unix(1005, 0))
	sender := &recordingSender{}
	identity, err := models.NewHostIdentity("ABCD")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	h := NewHost(identity, sender, Options{Clock: clk})
	h.HandleStatus(opened())
	return h, sender, clk
}

func TestHostStartWithEmptyRoster(t *testing.T) {
	h, sender, clk := newTestHost(t)

	if err := h.Start(); !errors.Is(err, ErrEmptyRosterOnStart) {
		t.Fatalf("expected ErrEmptyRosterOnStart, got %v", err)
	}
	s := h.Snapshot()
	if s.Phase != PhaseLobby || s.Notice != EmptyRosterNotice {
		t.Fatalf("expected lobby with notice, got %+v", s)
	}
	expectCommands(t, sender)

	clk.Advance(3 * time.Second)
	fire(t, h)
	if got := h.Snapshot().Notice; got != "" {
		t.Fatalf("expected notice cleared, got %q", got)
	}
}

func TestHostMetricsReplaceRosterIdempotently(t *testing.T) {
	h, _, _ := newTestHost(t)

	h.HandleFrame(decode(t, twoPlayers))
	first := h.Snapshot()
	h.HandleFrame(decode(t, twoPlayers))
	second := h.Snapshot()

	if !reflect.DeepEqual(first.Roster, second.Roster) || !reflect.DeepEqual(first.Leaderboard, second.Leaderboard) {
		t.Fatalf("applying the same snapshot twice changed state: %+v vs %+v", first, second)
	}
	if first.Roster.Len() != 2 || first.Leaderboard[0].ParticipantName != "alice" {
		t.Fatalf("unexpected leaderboard %+v", first.Leaderboard)
	}

	h.HandleFrame(decode(t, `{"metrics":{"game_data":{"code":"ABCD"},"player_metrics":{"carol":{"score":5}}}}`))
	if s := h.Snapshot(); s.Roster.Len() != 1 || s.Leaderboard[0].ParticipantName != "carol" {
		t.Fatalf("expected wholesale replacement, got %+v", s.Roster)
	}
}

func TestHostLifecycle(t *testing.T) {
	h, sender, _ := newTestHost(t)

	var results []FinalResult
	h.OnEnded(func(r FinalResult) { results = append(results, r) })

	if err := h.TogglePause(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	h.HandleFrame(decode(t, twoPlayers))
	if err := h.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.HandleFrame(decode(t, "[START]"))
	if h.Phase() != PhaseStarted {
		t.Fatalf("expected STARTED, got %s", h.Phase())
	}
	if err := h.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	if err := h.TogglePause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	h.HandleFrame(decode(t, "[PAUSE]"))
	if s := h.Snapshot(); s.Phase != PhasePaused || s.ResumePhase != PhaseStarted {
		t.Fatalf("expected paused game, got %+v", s)
	}
	if err := h.TogglePause(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.HandleFrame(decode(t, "[RESUME]"))
	if h.Phase() != PhaseStarted {
		t.Fatalf("expected STARTED after resume, got %s", h.Phase())
	}

	if err := h.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	h.HandleFrame(decode(t, "[END]"))
	h.HandleFrame(decode(t, `{"metrics":{"game_data":{"code":"ABCD"},"player_metrics":{"bob":{"score":99}}}}`))

	s := h.Snapshot()
	if s.Phase != PhaseEnded {
		t.Fatalf("expected ENDED, got %s", s.Phase)
	}
	if len(s.Leaderboard) != 2 || s.Leaderboard[0].ParticipantName != "alice" || s.Leaderboard[1].Score != 20 {
		t.Fatalf("final leaderboard must be frozen, got %+v", s.Leaderboard)
	}
	if len(results) != 1 || len(results[0].Leaderboard) != 2 || len(results[0].Snapshot) == 0 {
		t.Fatalf("expected one final result, got %+v", results)
	}
	if err := h.End(); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}

	expectCommands(t, sender,
		protocol.CommandStart,
		protocol.CommandPause,
		protocol.CommandResume,
		protocol.CommandEnd,
	)
}

func TestHostIgnoresPlayerFrames(t *testing.T) {
	h, _, _ := newTestHost(t)
	h.HandleFrame(decode(t, capitalOfFrance))
	h.HandleFrame(decode(t, `{"attempt":{"correct":true}}`))

	if h.Phase() != PhaseLobby || h.Alarm() != nil {
		t.Fatalf("host must ignore question and attempt frames, got %s", h.Phase())
	}
}
