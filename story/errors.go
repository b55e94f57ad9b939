package story

import (
	"errors"
	"fmt"
)

// Common errors for the storytelling core.
var (
	// ErrUpstream indicates the generation backend failed or timed out.
	// Upstream errors are retryable with backoff.
	ErrUpstream = errors.New("upstream generation failed")

	// ErrValidation indicates malformed input to a generation call (empty or
	// oversized prompt). Not retryable.
	ErrValidation = errors.New("invalid generation input")

	// ErrSessionExpired indicates the session clock reached zero. Terminal.
	ErrSessionExpired = errors.New("session time expired")

	// ErrNoChapter indicates no chapter content was available to play.
	ErrNoChapter = errors.New("no chapter available")

	// ErrAudioUnavailable indicates speech for a sentence permanently failed
	// after bounded retries. Playback advances past the sentence.
	ErrAudioUnavailable = errors.New("audio permanently unavailable")

	// ErrAlreadyStarted indicates Start was called on a running session.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotPlaying indicates a pause/resume call in the wrong state.
	ErrNotPlaying = errors.New("session is not playing")

	// ErrShutdown indicates the controller has been shut down.
	ErrShutdown = errors.New("controller has been shut down")
)

// IsRetryable reports whether an error is worth retrying with backoff.
// Validation and terminal session errors are not; upstream and transport
// errors are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrShutdown) {
		return false
	}
	return true
}

// StoryError wraps an error with the component and action that produced it,
// so degradation decisions and user-visible messages can tell a prefetch
// failure from a blocking one.
type StoryError struct {
	Err       error
	Component string // "audio", "visuals", "gateway", "controller"
	Action    string // "prefetch", "play", "generate-chapter", ...
	Blocking  bool   // True when the failure halts forward progress
}

// Error implements the error interface.
func (e *StoryError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoryError) Unwrap() error {
	return e.Err
}

// NewStoryError creates a non-blocking StoryError.
func NewStoryError(err error, component, action string) *StoryError {
	return &StoryError{Err: err, Component: component, Action: action}
}

// AsBlocking marks the error as blocking forward progress.
func (e *StoryError) AsBlocking() *StoryError {
	e.Blocking = true
	return e
}
