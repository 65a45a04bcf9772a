package models

import (
	"sort"
	"time"
)

// RosterEntry is one participant in the host's roster / leaderboard.
type RosterEntry struct {
	ParticipantName string `json:"participant_name"`
	Score           int    `json:"score"`
	AvatarRef       string `json:"avatar_ref,omitempty"`
	Answered        int    `json:"answered"`
	Correct         int    `json:"correct"`
}

// Roster is a full metrics snapshot keyed by participant name.
type Roster struct {
	Code      string                 `json:"code"`
	StartedAt *time.Time             `json:"started_at,omitempty"`
	Entries   map[string]RosterEntry `json:"entries"`
}

// Len returns the number of participants.
func (r Roster) Len() int {
	return len(r.Entries)
}

// Leaderboard returns the entries sorted by score (descending), ties broken by name.
func (r Roster) Leaderboard() []RosterEntry {
	rows := make([]RosterEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].ParticipantName < rows[j].ParticipantName
	})
	return rows
}
