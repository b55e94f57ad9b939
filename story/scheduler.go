package story

import "time"

// Scheduler decides when enough session time remains to justify generating
// another chapter. Pure arithmetic; the controller owns the clock tick and
// the in-flight generation handle.
type Scheduler struct {
	sentencesPerChapter int
	secondsPerSentence  int
	minTimeBufferRatio  float64
}

// NewScheduler creates a scheduler from the session configuration.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{
		sentencesPerChapter: cfg.SentencesPerChapter,
		secondsPerSentence:  cfg.SecondsPerSentence,
		minTimeBufferRatio:  cfg.MinTimeBufferRatio,
	}
}

// EstimatedChapterDuration is the expected playback length of one chapter.
func (s *Scheduler) EstimatedChapterDuration() time.Duration {
	return time.Duration(s.sentencesPerChapter*s.secondsPerSentence) * time.Second
}

// ShouldGenerate reports whether a new chapter generation should start.
// False when one is already in flight, the clock is out, or too little time
// remains for the chapter to plausibly finish.
func (s *Scheduler) ShouldGenerate(timeLeft time.Duration, inFlight bool) bool {
	if inFlight || timeLeft <= 0 {
		return false
	}
	need := time.Duration(float64(s.EstimatedChapterDuration()) * s.minTimeBufferRatio)
	return timeLeft >= need
}

// MidpointReached reports whether the playback cursor has crossed the
// trigger point of its chapter (50% by sentence count).
func (s *Scheduler) MidpointReached(chapterProgress float64) bool {
	return chapterProgress >= 0.5
}
