package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/quizclient/go/internal/models"
)

// millisThreshold separates unix seconds from unix milliseconds in numeric timestamps.
const millisThreshold = 1e12

type questionWire struct {
	Question       string          `json:"question"`
	Options        json.RawMessage `json:"options"`
	StartTime      json.RawMessage `json:"start_time"`
	TotalQuestions int             `json:"total_questions"`
	Index          int             `json:"index"`
}

type attemptWire struct {
	Correct *bool `json:"correct"`
	Final   bool  `json:"final"`
}

type metricsWire struct {
	GameData struct {
		Code      string          `json:"code"`
		StartTime json.RawMessage `json:"start_time"`
	} `json:"game_data"`
	PlayerMetrics map[string]playerMetricsWire `json:"player_metrics"`
}

type playerMetricsWire struct {
	Score    float64 `json:"score"`
	Avatar   string  `json:"avatar"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
}

// Decode turns one raw push channel message into a Frame. It never fails: anything that
// does not match the protocol comes back as Unrecognized.
func Decode(raw []byte) Frame {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return unrecognized(raw, "empty frame")
	}

	if sig, ok := parseSignal(string(trimmed)); ok {
		return Control{Signal: sig}
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return unrecognized(raw, "invalid string: %v", err)
		}
		if sig, ok := parseSignal(s); ok {
			return Control{Signal: sig}
		}
		return unrecognized(raw, "unknown control string %q", s)
	case '{':
		return decodeStructured(raw, trimmed)
	default:
		return unrecognized(raw, "unsupported frame shape")
	}
}

func parseSignal(s string) (Signal, bool) {
	sig := Signal(strings.TrimSpace(s))
	_, ok := signals[sig]
	return sig, ok
}

func decodeStructured(raw, trimmed []byte) Frame {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return unrecognized(raw, "invalid json: %v", err)
	}

	var found []string
	for _, key := range []string{"question", "attempt", "help", "metrics"} {
		if _, ok := fields[key]; ok {
			found = append(found, key)
		}
	}
	if len(found) == 0 {
		return unrecognized(raw, "no known top-level field")
	}
	if len(found) > 1 {
		return unrecognized(raw, "mutually exclusive fields %v", found)
	}

	body := fields[found[0]]
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return unrecognized(raw, "%s: null body", found[0])
	}
	switch found[0] {
	case "question":
		return decodeQuestion(raw, body)
	case "attempt":
		return decodeAttempt(raw, body)
	case "help":
		var text string
		if err := json.Unmarshal(body, &text); err != nil {
			return unrecognized(raw, "help: %v", err)
		}
		return Help{Text: text}
	default:
		return decodeMetrics(raw, body)
	}
}

func decodeQuestion(raw []byte, body json.RawMessage) Frame {
	var w questionWire
	if err := json.Unmarshal(body, &w); err != nil {
		return unrecognized(raw, "question: %v", err)
	}
	if strings.TrimSpace(w.Question) == "" {
		return unrecognized(raw, "question: empty prompt")
	}
	options, err := decodeOptions(w.Options)
	if err != nil {
		return unrecognized(raw, "question options: %v", err)
	}
	if len(options) == 0 {
		return unrecognized(raw, "question: no options")
	}
	start, err := ParseServerTime(w.StartTime)
	if err != nil {
		return unrecognized(raw, "question start_time: %v", err)
	}
	return Question{
		Prompt:         w.Question,
		Options:        options,
		StartTime:      start,
		TotalQuestions: w.TotalQuestions,
		Index:          w.Index,
	}
}

// decodeOptions walks the options object token by token so presentation order matches
// the order keys were sent in.
func decodeOptions(body json.RawMessage) ([]models.Option, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var options []models.Option
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", tok)
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return nil, fmt.Errorf("option %q: %w", key, err)
		}
		key = NormalizeOption(key)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate option %q", key)
		}
		seen[key] = struct{}{}
		options = append(options, models.Option{Key: key, Text: text})
	}
	return options, nil
}

func decodeAttempt(raw []byte, body json.RawMessage) Frame {
	var w attemptWire
	if err := json.Unmarshal(body, &w); err != nil {
		return unrecognized(raw, "attempt: %v", err)
	}
	if w.Correct == nil {
		return unrecognized(raw, "attempt: missing correct")
	}
	return Attempt{Correct: *w.Correct, Final: w.Final}
}

func decodeMetrics(raw []byte, body json.RawMessage) Frame {
	var w metricsWire
	if err := json.Unmarshal(body, &w); err != nil {
		return unrecognized(raw, "metrics: %v", err)
	}
	m := Metrics{
		Code:    w.GameData.Code,
		Players: make(map[string]PlayerMetrics, len(w.PlayerMetrics)),
		Raw:     append(json.RawMessage(nil), body...),
	}
	if start, err := ParseServerTime(w.GameData.StartTime); err == nil && !start.IsZero() {
		m.StartTime = &start
	}
	for name, p := range w.PlayerMetrics {
		m.Players[name] = PlayerMetrics{
			Score:    int(math.Round(p.Score)),
			Avatar:   p.Avatar,
			Answered: p.Answered,
			Correct:  p.Correct,
		}
	}
	return m
}

// ParseServerTime accepts unix seconds (integer or fractional), unix milliseconds or an
// RFC3339 string. A missing or null value yields the zero time.
func ParseServerTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
		}
		return fromUnix(f), nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return time.Time{}, err
	}
	return fromUnix(f), nil
}

func fromUnix(f float64) time.Time {
	if f >= millisThreshold {
		return time.UnixMilli(int64(f))
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func unrecognized(raw []byte, format string, args ...any) Unrecognized {
	return Unrecognized{
		Raw: append([]byte(nil), raw...),
		Err: fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...)),
	}
}
