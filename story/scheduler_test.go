package story

import (
	"testing"
	"time"
)

func schedulerUnderTest() *Scheduler {
	cfg := DefaultConfig()
	cfg.SentencesPerChapter = 12
	cfg.SecondsPerSentence = 8
	cfg.MinTimeBufferRatio = 0.5
	return NewScheduler(cfg)
}

func TestEstimatedChapterDuration(t *testing.T) {
	s := schedulerUnderTest()
	if got := s.EstimatedChapterDuration(); got != 96*time.Second {
		t.Errorf("got %v, want 96s", got)
	}
}

func TestShouldGenerateThreshold(t *testing.T) {
	s := schedulerUnderTest()

	// Threshold is half the 96s estimate: 48s.
	cases := []struct {
		timeLeft time.Duration
		inFlight bool
		want     bool
	}{
		{50 * time.Second, false, true},
		{48 * time.Second, false, true},
		{47 * time.Second, false, false},
		{40 * time.Second, false, false},
		{0, false, false},
		{-time.Second, false, false},
		{10 * time.Minute, true, false},
	}
	for _, c := range cases {
		if got := s.ShouldGenerate(c.timeLeft, c.inFlight); got != c.want {
			t.Errorf("ShouldGenerate(%v, %v) = %v, want %v", c.timeLeft, c.inFlight, got, c.want)
		}
	}
}

func TestMidpointReached(t *testing.T) {
	s := schedulerUnderTest()

	cases := []struct {
		progress float64
		want     bool
	}{
		{0.0, false},
		{0.49, false},
		{0.5, true},
		{0.51, true},
		{1.0, true},
	}
	for _, c := range cases {
		if got := s.MidpointReached(c.progress); got != c.want {
			t.Errorf("MidpointReached(%v) = %v, want %v", c.progress, got, c.want)
		}
	}
}
