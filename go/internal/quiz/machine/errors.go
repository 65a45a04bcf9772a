package machine

import "errors"

var (
	ErrEmptyRosterOnStart = errors.New("cannot start a session with no players")
	ErrSessionPaused      = errors.New("session is paused")
	ErrSessionEnded       = errors.New("session has ended")
	ErrAnswerNotAllowed   = errors.New("answer not allowed in the current state")
	ErrUnknownOption      = errors.New("unknown option")
	ErrRetryNotAllowed    = errors.New("retry not allowed in the current state")
	ErrNotStarted         = errors.New("session has not started")
	ErrAlreadyStarted     = errors.New("session already started")
)
