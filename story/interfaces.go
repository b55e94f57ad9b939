package story

import (
	"context"
)

// ChapterRequest describes one chapter generation call. Prompt carries the
// user's premise plus any continuation context assembled by the session;
// SystemInstruction carries the persona/genre framing.
type ChapterRequest struct {
	Prompt            string
	SystemInstruction string
}

// Gateway is the external boundary to the generative backends. All three
// calls are idempotent from the caller's perspective and may fail with
// ErrUpstream (retryable) or ErrValidation (terminal).
type Gateway interface {
	// GenerateChapter produces the next narrative chapter.
	GenerateChapter(ctx context.Context, req ChapterRequest) (*Chapter, error)

	// GenerateSpeech synthesizes one sentence of narration.
	GenerateSpeech(ctx context.Context, text, voice, accent string) (*Clip, error)

	// GenerateImage renders an illustration for a visual-moment prompt.
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// AudioPlayer plays a clip to completion. Play blocks until the clip has
// finished, the context is cancelled, or Stop is called.
type AudioPlayer interface {
	Play(ctx context.Context, clip *Clip) error
	Stop() error
}

// Segmenter splits chapter prose into sentences with global indices starting
// at startIndex. Implementations must be deterministic and side-effect free.
type Segmenter interface {
	Segment(prose, chapterID string, startIndex int) []Sentence
}

// AudioCache prefetches and holds synthesized speech keyed by global
// sentence index. Ensure is idempotent: concurrent calls for the same index
// collapse into one gateway fetch.
type AudioCache interface {
	// Ensure starts a background fetch for the sentence unless an entry or
	// in-flight fetch already exists.
	Ensure(ctx context.Context, s Sentence)

	// Get returns the cached clip, if present.
	Get(index int) (*Clip, bool)

	// Wait blocks until the clip is available, joining any in-flight fetch
	// or starting a synchronous one. Used on playback-time cache misses.
	Wait(ctx context.Context, s Sentence) (*Clip, error)

	// ReleaseBefore frees all entries with index strictly less than index.
	ReleaseBefore(index int)

	// Failed reports the terminal error for an index whose fetch exhausted
	// its retries, or nil.
	Failed(index int) error
}

// ImageLibrary holds generated illustrations and the FIFO generation queue.
// Entries are never evicted mid-session.
type ImageLibrary interface {
	// Register associates a visual-moment prompt with a display index.
	Register(index int, prompt string)

	// Enqueue appends a registered moment to the paced background queue and
	// starts the drain worker if it is not already running.
	Enqueue(ctx context.Context, index int)

	// GenerateNow generates an image immediately, bypassing queue pacing.
	GenerateNow(ctx context.Context, index int) ([]byte, error)

	// Get returns the generated image bytes for an index, if present.
	Get(index int) ([]byte, bool)

	// PromptAt returns the registered prompt for an index, if any.
	PromptAt(index int) (string, bool)
}

// EventSink receives observable state transitions from the controller. The
// Bubble Tea UI passes Program.Send; headless mode passes a logging sink.
type EventSink func(msg interface{})
