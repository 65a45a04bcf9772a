package protocol

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeControlStrings(t *testing.T) {
	cases := map[string]Signal{
		`[START]`:                    SignalStart,
		" [PAUSE]\n":                 SignalPause,
		`"[RESUME]"`:                 SignalResume,
		`[END]`:                      SignalEnd,
		`"[ALL_QUESTIONS_ANSWERED]"`: SignalAllQuestionsAnswered,
	}
	for raw, want := range cases {
		frame := Decode([]byte(raw))
		ctrl, ok := frame.(Control)
		if !ok {
			t.Fatalf("decode %q: expected Control, got %#v", raw, frame)
		}
		if ctrl.Signal != want {
			t.Fatalf("decode %q: expected %s, got %s", raw, want, ctrl.Signal)
		}
	}
}

func TestDecodeQuestionPreservesOptionOrder(t *testing.T) {
	raw := `{"question":{"question":"Capital of France?","options":{"D":"Rome","a":"Berlin","C":"Paris","B":"Madrid"},"start_time":1000,"total_questions":10}}`
	frame := Decode([]byte(raw))
	q, ok := frame.(Question)
	if !ok {
		t.Fatalf("expected Question, got %#v", frame)
	}
	if q.Prompt != "Capital of France?" || q.TotalQuestions != 10 {
		t.Fatalf("unexpected question %#v", q)
	}
	wantKeys := []string{"D", "A", "C", "B"}
	if len(q.Options) != len(wantKeys) {
		t.Fatalf("expected %d options, got %d", len(wantKeys), len(q.Options))
	}
	for i, key := range wantKeys {
		if q.Options[i].Key != key {
			t.Fatalf("option %d: expected key %s, got %s", i, key, q.Options[i].Key)
		}
	}
	if !q.StartTime.Equal(time.Unix(1000, 0)) {
		t.Fatalf("expected start 1000, got %v", q.StartTime)
	}
}

func TestDecodeAttemptHelpMetrics(t *testing.T) {
	attempt, ok := Decode([]byte(`{"attempt":{"correct":false,"final":true}}`)).(Attempt)
	if !ok || attempt.Correct || !attempt.Final {
		t.Fatalf("unexpected attempt %#v", attempt)
	}

	help, ok := Decode([]byte(`{"help":"Think about rivers."}`)).(Help)
	if !ok || help.Text != "Think about rivers." {
		t.Fatalf("unexpected help %#v", help)
	}

	raw := `{"metrics":{"game_data":{"code":"ABC123","start_time":"2025-01-02T03:04:05Z"},"player_metrics":{"ada":{"score":30,"answered":3,"correct":2},"ben":{"score":12.6}}}}`
	metrics, ok := Decode([]byte(raw)).(Metrics)
	if !ok {
		t.Fatalf("expected Metrics frame")
	}
	if metrics.Code != "ABC123" || metrics.StartTime == nil {
		t.Fatalf("unexpected game data %#v", metrics)
	}
	if metrics.Players["ada"].Score != 30 || metrics.Players["ben"].Score != 13 {
		t.Fatalf("unexpected player metrics %#v", metrics.Players)
	}
	roster := metrics.Roster()
	if roster.Len() != 2 || roster.Leaderboard()[0].ParticipantName != "ada" {
		t.Fatalf("unexpected roster %#v", roster)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	cases := []string{
		``,
		`hello`,
		`[1,2,3]`,
		`"[NOPE]"`,
		`{"unknown":1}`,
		`{"question":{"question":"x","options":{"A":"a"}},"attempt":{"correct":true}}`,
		`{"question":{"question":"","options":{"A":"a"}}}`,
		`{"question":{"question":"x","options":{}}}`,
		`{"question":{"question":"x","options":{"A":"a","a":"b"}}}`,
		`{"attempt":{"final":true}}`,
		`{"help":42}`,
		`{"metrics":"nope"}`,
		`{"help":null}`,
		`{"metrics":null}`,
		`{"attempt":null}`,
		`{"question": null }`,
		`{"question":`,
	}
	for _, raw := range cases {
		frame := Decode([]byte(raw))
		u, ok := frame.(Unrecognized)
		if !ok {
			t.Fatalf("decode %q: expected Unrecognized, got %#v", raw, frame)
		}
		if !errors.Is(u.Err, ErrMalformedFrame) {
			t.Fatalf("decode %q: expected ErrMalformedFrame, got %v", raw, u.Err)
		}
		if frame.Kind() != KindUnrecognized {
			t.Fatalf("decode %q: expected unrecognized kind", raw)
		}
	}
}

func TestParseServerTime(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{`1000`, time.Unix(1000, 0)},
		{`1000.5`, time.Unix(1000, 500000000)},
		{`1700000000123`, time.UnixMilli(1700000000123)},
		{`"1000"`, time.Unix(1000, 0)},
		{`"2025-01-02T03:04:05Z"`, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{`null`, time.Time{}},
		{``, time.Time{}},
	}
	for _, tc := range cases {
		got, err := ParseServerTime([]byte(tc.raw))
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parse %q: expected %v, got %v", tc.raw, tc.want, got)
		}
	}
	if _, err := ParseServerTime([]byte(`"yesterday"`)); err == nil {
		t.Fatalf("expected error for unsupported timestamp")
	}
}

func TestAnswerCommandNormalizes(t *testing.T) {
	if got := AnswerCommand("  c "); got != Command("C") {
		t.Fatalf("expected C, got %q", got)
	}
}
