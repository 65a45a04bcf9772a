package protocol

import "strings"

// Command is an outbound text frame.
type Command string

// Player commands. An answer is sent as the bare option key.
const (
	CommandTryAgain     Command = "TRY_AGAIN"
	CommandNextQuestion Command = "NEXT_QUESTION"
)

// Host commands.
const (
	CommandStart  Command = "start"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandEnd    Command = "end"
)

// NormalizeOption trims and uppercases an option key the way the server expects it.
func NormalizeOption(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// AnswerCommand builds the outbound frame for choosing an option.
func AnswerCommand(key string) Command {
	return Command(NormalizeOption(key))
}

// Label names the command for metrics; answers collapse into one label.
func (c Command) Label() string {
	switch c {
	case CommandTryAgain, CommandNextQuestion, CommandStart, CommandPause, CommandResume, CommandEnd:
		return string(c)
	default:
		return "answer"
	}
}
