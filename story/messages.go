package story

import "time"

// Messages emitted through the EventSink. The Bubble Tea UI consumes them as
// tea.Msg values; headless mode logs them. The core never depends on the
// renderer.

// NowPlayingMsg indicates narration moved to a new sentence.
type NowPlayingMsg struct {
	Index    int           // Global sentence index
	Text     string        // Sentence text for highlighting
	Duration time.Duration // Estimated duration of the sentence
	Chapter  string        // Owning chapter title
	Progress float64       // Progress through all known sentences (0.0-1.0)
}

// SentenceSkippedMsg indicates a sentence's audio permanently failed and the
// story continued without it.
type SentenceSkippedMsg struct {
	Index int
	Text  string
}

// NowShowingMsg indicates a new illustration is ready for display.
type NowShowingMsg struct {
	Index  int
	Data   []byte
	Prompt string
}

// MusicChangedMsg indicates the background-music selection changed.
type MusicChangedMsg struct {
	TrackID   string
	TrackName string
	Icon      string
	SourceURL string
	Score     int // Winning keyword score (0 when chosen by suggestion)
}

// ChapterStartedMsg indicates a chapter was ingested and narration of it began.
type ChapterStartedMsg struct {
	Number int // 1-based chapter ordinal
	Title  string
}

// GeneratingChapterMsg indicates background chapter generation started.
type GeneratingChapterMsg struct {
	Number int // Ordinal of the chapter being generated
}

// ClockTickMsg carries the remaining session time, once per second while
// playing.
type ClockTickMsg struct {
	Remaining time.Duration
}

// StateChangedMsg indicates the session state machine moved.
type StateChangedMsg struct {
	State StateType
}

// SessionEndedMsg indicates the session finished.
type SessionEndedMsg struct {
	Reason    string // "expired", "stopped", "exhausted", "error"
	Chapters  int
	Sentences int
}

// ErrorMsg surfaces a failure. Non-blocking errors describe degradations the
// session survived; blocking ones accompany a hard stop.
type ErrorMsg struct {
	Err      error
	Blocking bool
}
