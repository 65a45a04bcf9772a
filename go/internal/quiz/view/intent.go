package view

import (
	"strings"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/protocol"
)

// IntentKind identifies a user action.
type IntentKind int

const (
	IntentAnswer IntentKind = iota + 1
	IntentTryAgain
	IntentStart
	IntentTogglePause
	IntentEnd
	IntentLeave
)

func (k IntentKind) String() string {
	switch k {
	case IntentAnswer:
		return "answer"
	case IntentTryAgain:
		return "try_again"
	case IntentStart:
		return "start"
	case IntentTogglePause:
		return "toggle_pause"
	case IntentEnd:
		return "end"
	case IntentLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// Intent is a user action forwarded to the session loop. Option is set for answers.
type Intent struct {
	Kind   IntentKind
	Option string
}

func Answer(key string) Intent { return Intent{Kind: IntentAnswer, Option: protocol.NormalizeOption(key)} }
func TryAgain() Intent { return Intent{Kind: IntentTryAgain} }
func Start() Intent { return Intent{Kind: IntentStart} }
func TogglePause() Intent { return Intent{Kind: IntentTogglePause} }
func End() Intent { return Intent{Kind: IntentEnd} }
func Leave() Intent { return Intent{Kind: IntentLeave} }

// ParseIntent reads one line of terminal input for the given role.
func ParseIntent(role models.Role, line string) (Intent, bool) {
	word := strings.ToLower(strings.TrimSpace(line))
	switch word {
	case "":
		return Intent{}, false
	case "quit", "exit", "leave":
		return Leave(), true
	}

	if role == models.RoleHost {
		switch word {
		case "start":
			return Start(), true
		case "pause", "resume", "p":
			return TogglePause(), true
		case "end":
			return End(), true
		}
		return Intent{}, false
	}

	switch word {
	case "retry", "again", "r":
		return TryAgain(), true
	}
	if len(word) == 1 && word[0] >= 'a' && word[0] <= 'z' {
		return Answer(word), true
	}
	return Intent{}, false
}
