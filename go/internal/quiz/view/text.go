package view

import (
	"fmt"
	"strings"
)

// Text renders a Model for a line based terminal.
func Text(m Model) string {
	var b strings.Builder
	if m.Banner != "" {
		fmt.Fprintf(&b, "! %s\n", m.Banner)
	}

	switch m.Kind {
	case KindConnecting:
		fmt.Fprintf(&b, "Connecting to session %s...\n", m.Code)
	case KindLobby:
		fmt.Fprintf(&b, "[%s] %s\n", m.Code, m.Lobby.Message)
		if len(m.Lobby.Players) > 0 {
			fmt.Fprintf(&b, "Players: %s\n", strings.Join(m.Lobby.Players, ", "))
		}
		if m.Lobby.CanStart {
			b.WriteString("Type 'start' to begin.\n")
		}
	case KindQuestion:
		writeQuestion(&b, m.Question)
	case KindTransition:
		writeTransition(&b, m.Transition)
	case KindPauseOverlay:
		fmt.Fprintf(&b, "|| %s\n", m.Pause.Message)
		if m.Leaderboard != nil {
			writeRows(&b, m.Leaderboard.Rows)
		}
	case KindLeaderboard:
		writeRows(&b, m.Leaderboard.Rows)
		b.WriteString("Commands: pause, end\n")
	case KindGameOver:
		fmt.Fprintf(&b, "%s\n", m.GameOver.Message)
		if m.GameOver.Score != nil {
			fmt.Fprintf(&b, "Your score: %d\n", *m.GameOver.Score)
		}
		writeRows(&b, m.GameOver.Rows)
	case KindConnectionFailed:
		fmt.Fprintf(&b, "Connection failed: %s\n", m.Failure.Reason)
	}

	if m.Notice != "" {
		fmt.Fprintf(&b, "* %s\n", m.Notice)
	}
	return b.String()
}

func writeQuestion(b *strings.Builder, q *Question) {
	if q == nil {
		return
	}
	if q.Total > 0 {
		fmt.Fprintf(b, "Question %d of %d (%ds)\n", q.Number, q.Total, q.RemainingSeconds)
	} else {
		fmt.Fprintf(b, "Question %d (%ds)\n", q.Number, q.RemainingSeconds)
	}
	fmt.Fprintf(b, "%s\n", q.Prompt)
	for _, o := range q.Options {
		marker := " "
		if o.Selected {
			marker = ">"
		}
		fmt.Fprintf(b, "%s %s) %s\n", marker, o.Key, o.Text)
	}
	switch {
	case q.Pending:
		b.WriteString("Waiting for the verdict...\n")
	case q.Verdict != "":
		fmt.Fprintf(b, "Your answer is %s.\n", q.Verdict)
	}
	if q.Explanation != "" {
		fmt.Fprintf(b, "%s\n", q.Explanation)
	}
	if q.CanRetry {
		b.WriteString("Type 'retry' to try again.\n")
	}
}

func writeTransition(b *strings.Builder, t *Transition) {
	if t == nil {
		return
	}
	if t.Correct {
		b.WriteString("Correct!\n")
	} else {
		b.WriteString("Out of attempts.\n")
	}
	if t.Explanation != "" {
		fmt.Fprintf(b, "%s\n", t.Explanation)
	}
	fmt.Fprintf(b, "Next question in %ds\n", t.SecondsLeft)
}

func writeRows(b *strings.Builder, rows []Row) {
	for _, r := range rows {
		fmt.Fprintf(b, "%2d. %-20s %5d\n", r.Rank, r.Name, r.Score)
	}
}
