package story

import (
	"time"

	"github.com/google/uuid"
)

// Chapter is one generated narrative unit. Chapters are immutable once
// received from the gateway; the session keeps every chapter it has played so
// later generation requests can carry the story context forward.
type Chapter struct {
	ID            string   // Assigned on ingestion, unique within a session
	Title         string   // Generated chapter title
	Prose         string   // Narrative text (~400 words)
	SuggestedMood string   // Gateway's suggestion for background music
	VisualMoments []string // 2-3 illustration prompts, in narrative order
}

// NewChapterID returns a fresh chapter identifier.
func NewChapterID() string {
	return uuid.NewString()
}

// Sentence is the atomic unit of narration, caching, and highlighting.
// GlobalIndex is monotonic across chapter boundaries so that audio and image
// cache keys stay unique for the lifetime of a session.
type Sentence struct {
	GlobalIndex int           // Monotonic, unique within a session
	Text        string        // Plain prose text
	ChapterID   string        // Owning chapter
	Duration    time.Duration // Estimated speaking duration
}

// Clip is synthesized speech for a single sentence. Data is decoded PCM and
// therefore large; clips behind the playback cursor must be released.
type Clip struct {
	Data       []byte
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Release frees the audio payload. The clip must not be played afterwards.
func (c *Clip) Release() {
	c.Data = nil
}
