package story

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the aggregate root for one storytelling run: the append-only
// chapter history, the flattened sentence list, the playback cursor, and the
// remaining time. All mutation funnels through its methods; the controller is
// the only writer.
type Session struct {
	ID string

	mu        sync.RWMutex
	chapters  []*Chapter
	sentences []Sentence
	current   int
	timeLeft  time.Duration
	mood      string
	expired   bool
}

// NewSession creates a session with the full time budget on the clock.
func NewSession(duration time.Duration) *Session {
	return &Session{
		ID:       uuid.NewString(),
		timeLeft: duration,
	}
}

// Ingest appends a chapter and its segmented sentences. Chapters are never
// removed; history feeds continuation prompts.
func (s *Session) Ingest(ch *Chapter, sentences []Sentence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters = append(s.chapters, ch)
	s.sentences = append(s.sentences, sentences...)
}

// Current returns the playback cursor.
func (s *Session) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Advance moves the cursor forward by one and returns the new index.
func (s *Session) Advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	return s.current
}

// Sentence returns the sentence at the given global index.
func (s *Session) Sentence(index int) (Sentence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.sentences) {
		return Sentence{}, false
	}
	return s.sentences[index], true
}

// SentenceCount returns the number of sentences ingested so far.
func (s *Session) SentenceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sentences)
}

// ChapterCount returns the number of chapters ingested so far.
func (s *Session) ChapterCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chapters)
}

// Chapter returns the chapter owning the given sentence index.
func (s *Session) Chapter(index int) (*Chapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.sentences) {
		return nil, false
	}
	id := s.sentences[index].ChapterID
	for _, ch := range s.chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return nil, false
}

// NarratingLastChapter reports whether the cursor's sentence belongs to the
// most recently ingested chapter. While an un-narrated chapter is already
// queued up, generating another would run away ahead of playback.
func (s *Session) NarratingLastChapter() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 0 || s.current >= len(s.sentences) || len(s.chapters) == 0 {
		return false
	}
	return s.sentences[s.current].ChapterID == s.chapters[len(s.chapters)-1].ID
}

// ChapterProgress returns how far the cursor is through its current chapter,
// by sentence count (0.0 at the first sentence, approaching 1.0 at the last).
func (s *Session) ChapterProgress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 0 || s.current >= len(s.sentences) {
		return 0
	}
	id := s.sentences[s.current].ChapterID
	first, count := -1, 0
	for i, sent := range s.sentences {
		if sent.ChapterID == id {
			if first < 0 {
				first = i
			}
			count++
		}
	}
	if count <= 1 {
		return 1
	}
	return float64(s.current-first) / float64(count-1)
}

// Mood returns the current music track id, empty before the first selection.
func (s *Session) Mood() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mood
}

// SetMood records the selected music track id.
func (s *Session) SetMood(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mood = trackID
}

// TimeLeft returns the remaining session time.
func (s *Session) TimeLeft() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeLeft
}

// TickDown decrements the clock by one second and returns the remainder.
// At zero the session is marked expired; the playback loop finishes the
// current sentence before stopping.
func (s *Session) TickDown() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeLeft > 0 {
		s.timeLeft -= time.Second
	}
	if s.timeLeft <= 0 {
		s.timeLeft = 0
		s.expired = true
	}
	return s.timeLeft
}

// Expired reports whether the session clock has run out.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expired
}

// ContinuationPrompt builds the prompt for the next chapter from the original
// premise and the chapter history, so the story stays coherent across
// generations.
func (s *Session) ContinuationPrompt(premise string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chapters) == 0 {
		return premise
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Continue the story. Original premise: %s\n\n", premise)
	b.WriteString("Chapters so far:\n")
	for i, ch := range s.chapters {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ch.Title)
	}
	last := s.chapters[len(s.chapters)-1]
	fmt.Fprintf(&b, "\nThe previous chapter ended:\n%s\n", tailOf(last.Prose, 600))
	fmt.Fprintf(&b, "\nWrite chapter %d, picking up exactly where the story left off.", len(s.chapters)+1)
	return b.String()
}

// tailOf returns at most n trailing runes of text, cut at a word boundary.
func tailOf(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	tail := string(runes[len(runes)-n:])
	if i := strings.IndexAny(tail, " \n"); i >= 0 {
		tail = tail[i+1:]
	}
	return "..." + tail
}
