package models

import "time"

// Option is one answer affordance of a question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// QuestionView is the question currently shown to a player. Options keep the order the
// server sent them in.
type QuestionView struct {
	Index           int       `json:"index"`
	TotalQuestions  int       `json:"total_questions"` // 0 when unknown
	Prompt          string    `json:"prompt"`
	Options         []Option  `json:"options"`
	ServerStartTime time.Time `json:"server_start_time"`
}

// HasOption reports whether key names one of the options.
func (q *QuestionView) HasOption(key string) bool {
	if q == nil {
		return false
	}
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// AttemptResult is the server's verdict on the latest submitted answer.
type AttemptResult struct {
	ForOptionKey string `json:"for_option_key"`
	Correct      bool   `json:"correct"`
	IsFinal      bool   `json:"is_final"`
}

// CanRetry reports whether the player may answer the same question again.
func (a *AttemptResult) CanRetry() bool {
	return a != nil && !a.Correct && !a.IsFinal
}
