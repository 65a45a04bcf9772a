package view

// Kind tags which screen a Model describes.
type Kind string

const (
	KindConnecting       Kind = "connecting"
	KindLobby            Kind = "lobby"
	KindQuestion         Kind = "question"
	KindTransition       Kind = "transition"
	KindPauseOverlay     Kind = "pause_overlay"
	KindGameOver         Kind = "game_over"
	KindConnectionFailed Kind = "connection_failed"
	KindLeaderboard      Kind = "leaderboard"
)

// Model is everything a renderer needs for one frame of the UI. Exactly the section
// matching Kind is set, except that a pause overlay also carries what it covers.
type Model struct {
	Kind        Kind   `json:"kind"`
	Role        string `json:"role"`
	Code        string `json:"code"`
	Participant string `json:"participant,omitempty"`
	// Banner is a connection status line such as a reconnect in progress.
	Banner string `json:"banner,omitempty"`
	Notice string `json:"notice,omitempty"`

	Lobby       *Lobby       `json:"lobby,omitempty"`
	Question    *Question    `json:"question,omitempty"`
	Transition  *Transition  `json:"transition,omitempty"`
	Pause       *Pause       `json:"pause,omitempty"`
	GameOver    *GameOver    `json:"game_over,omitempty"`
	Failure     *Failure     `json:"failure,omitempty"`
	Leaderboard *Leaderboard `json:"leaderboard,omitempty"`
}

type Lobby struct {
	Message  string   `json:"message"`
	Players  []string `json:"players,omitempty"`
	CanStart bool     `json:"can_start,omitempty"`
}

type Option struct {
	Key      string `json:"key"`
	Text     string `json:"text"`
	Selected bool   `json:"selected,omitempty"`
}

type Question struct {
	Number           int      `json:"number"`
	Total            int      `json:"total,omitempty"`
	Prompt           string   `json:"prompt"`
	Options          []Option `json:"options"`
	RemainingSeconds int      `json:"remaining_seconds"`
	Pending          bool     `json:"pending,omitempty"`
	// Verdict is "correct", "incorrect" or empty while no attempt is known.
	Verdict     string `json:"verdict,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	TimedOut    bool   `json:"timed_out,omitempty"`
	CanAnswer   bool   `json:"can_answer"`
	CanRetry    bool   `json:"can_retry"`
}

type Transition struct {
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
	SecondsLeft int    `json:"seconds_left"`
}

type Pause struct {
	Message string `json:"message"`
	// Resumes names the screen that returns after the pause.
	Resumes        Kind `json:"resumes"`
	CanTogglePause bool `json:"can_toggle_pause,omitempty"`
}

type Row struct {
	Rank     int    `json:"rank"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Avatar   string `json:"avatar,omitempty"`
	Answered int    `json:"answered,omitempty"`
	Correct  int    `json:"correct,omitempty"`
}

type Leaderboard struct {
	Rows           []Row `json:"rows"`
	CanTogglePause bool  `json:"can_toggle_pause,omitempty"`
	CanEnd         bool  `json:"can_end,omitempty"`
}

type GameOver struct {
	Message string `json:"message"`
	Score   *int   `json:"score,omitempty"`
	Rows    []Row  `json:"rows,omitempty"`
}

type Failure struct {
	Reason string `json:"reason"`
}
