package story_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dreamweaver/dreamweaver/gateway/mock"
	"github.com/dreamweaver/dreamweaver/story"
	"github.com/dreamweaver/dreamweaver/story/audio"
	"github.com/dreamweaver/dreamweaver/story/sentence"
	"github.com/dreamweaver/dreamweaver/story/visuals"
)

// recorder is a threadsafe EventSink that keeps every emitted message.
type recorder struct {
	mu   sync.Mutex
	msgs []interface{}
}

func (r *recorder) sink(msg interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) playedIndices() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, m := range r.msgs {
		if np, ok := m.(story.NowPlayingMsg); ok {
			out = append(out, np.Index)
		}
	}
	return out
}

func (r *recorder) skippedIndices() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, m := range r.msgs {
		if sk, ok := m.(story.SentenceSkippedMsg); ok {
			out = append(out, sk.Index)
		}
	}
	return out
}

func (r *recorder) ended() (story.SessionEndedMsg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if e, ok := m.(story.SessionEndedMsg); ok {
			return e, true
		}
	}
	return story.SessionEndedMsg{}, false
}

func (r *recorder) count(match func(interface{}) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if match(m) {
			n++
		}
	}
	return n
}

func shortConfig() story.Config {
	cfg := story.DefaultConfig()
	// Too little time for another chapter, so the session ends when the
	// scripted content runs out.
	cfg.SessionDuration = 10 * time.Second
	cfg.RetryAttempts = 2
	cfg.RetryDelay = time.Millisecond
	cfg.ImageQueueDelay = 100 * time.Millisecond
	return cfg
}

func scriptedChapter() *story.Chapter {
	return &story.Chapter{
		Title:         "The Night Garden",
		Prose:         "One star woke. Two clouds parted. Three winds sang. Four rivers turned.",
		SuggestedMood: "calm",
		VisualMoments: []string{"a star over a garden", "wind in the reeds"},
	}
}

func newTestController(gw *mock.Gateway, cfg story.Config, rec *recorder) *story.Controller {
	player := audio.NewNullPlayer()
	player.Speed = 100
	cache := audio.NewCache(gw, cfg)
	library := visuals.NewLibrary(gw, cfg)
	return story.NewController(gw, player, sentence.NewSegmenter(), cache, library, cfg, rec.sink)
}

func waitDone(t *testing.T, c *story.Controller, timeout time.Duration) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(timeout):
		t.Fatal("controller did not finish in time")
	}
}

func TestControllerPlaysAllSentencesInOrder(t *testing.T) {
	gw := mock.New()
	gw.Chapters = []*story.Chapter{scriptedChapter()}
	rec := &recorder{}
	c := newTestController(gw, shortConfig(), rec)

	if err := c.Start(context.Background(), "a night garden"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, c, 10*time.Second)

	got := rec.playedIndices()
	want := []int{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("played %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("played %v, want %v", got, want)
		}
	}

	if ended, ok := rec.ended(); !ok || ended.Reason != "exhausted" {
		t.Errorf("ended = %+v, ok=%v; want reason exhausted", ended, ok)
	}
	if calls := gw.ChapterCalls(); calls != 1 {
		t.Errorf("chapter calls: %d, want 1", calls)
	}
}

func TestControllerSkipsPermanentlyFailedSentence(t *testing.T) {
	gw := mock.New()
	gw.Chapters = []*story.Chapter{scriptedChapter()}
	gw.FailSpeechFor = map[string]bool{"Two clouds parted.": true}
	rec := &recorder{}
	c := newTestController(gw, shortConfig(), rec)

	if err := c.Start(context.Background(), "a night garden"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, c, 10*time.Second)

	skipped := rec.skippedIndices()
	if len(skipped) != 1 || skipped[0] != 1 {
		t.Errorf("skipped %v, want [1]", skipped)
	}

	played := rec.playedIndices()
	for _, idx := range played {
		if idx == 1 {
			t.Error("failed sentence was played")
		}
	}
	// Later sentences still narrate in order.
	if len(played) != 3 || played[len(played)-1] != 3 {
		t.Errorf("played %v", played)
	}
}

func TestControllerReleasesAudioBehindCursor(t *testing.T) {
	gw := mock.New()
	gw.Chapters = []*story.Chapter{scriptedChapter()}
	rec := &recorder{}

	cfg := shortConfig()
	player := audio.NewNullPlayer()
	player.Speed = 100
	cache := audio.NewCache(gw, cfg)
	library := visuals.NewLibrary(gw, cfg)
	c := story.NewController(gw, player, sentence.NewSegmenter(), cache, library, cfg, rec.sink)

	if err := c.Start(context.Background(), "a night garden"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, c, 10*time.Second)

	if n := cache.Len(); n != 0 {
		t.Errorf("%d clips still resident after playback passed them", n)
	}
}

func TestControllerShowsImagesAndSelectsMusic(t *testing.T) {
	gw := mock.New()
	gw.Chapters = []*story.Chapter{scriptedChapter()}
	rec := &recorder{}
	c := newTestController(gw, shortConfig(), rec)

	if err := c.Start(context.Background(), "a night garden"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, c, 10*time.Second)

	showing := rec.count(func(m interface{}) bool {
		_, ok := m.(story.NowShowingMsg)
		return ok
	})
	if showing == 0 {
		t.Error("no illustration was shown")
	}

	// Eager warming must not announce the opening image a second time.
	shown := map[int]int{}
	rec.mu.Lock()
	for _, m := range rec.msgs {
		if ns, ok := m.(story.NowShowingMsg); ok {
			shown[ns.Index]++
		}
	}
	rec.mu.Unlock()
	for idx, n := range shown {
		if n > 1 {
			t.Errorf("illustration %d announced %d times", idx, n)
		}
	}

	music := 0
	rec.mu.Lock()
	for _, m := range rec.msgs {
		if mc, ok := m.(story.MusicChangedMsg); ok {
			music++
			if mc.TrackID != "gentle-dreams" {
				t.Errorf("track %q, want gentle-dreams for a calm hint", mc.TrackID)
			}
		}
	}
	rec.mu.Unlock()
	if music == 0 {
		t.Error("no music selection was made")
	}
}

func TestControllerGeneratesNextChapterWithoutDuplicates(t *testing.T) {
	gw := mock.New()
	gw.ChapterDelay = 20 * time.Millisecond
	rec := &recorder{}

	cfg := shortConfig()
	cfg.SessionDuration = 10 * time.Minute // plenty of time: keep generating
	c := newTestController(gw, cfg, rec)

	if err := c.Start(context.Background(), "an endless road"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Let at least two chapters in, then stop.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		n := rec.count(func(m interface{}) bool {
			_, ok := m.(story.ChapterStartedMsg)
			return ok
		})
		if n >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Stop()
	waitDone(t, c, 10*time.Second)

	// Generation announcements never repeat a chapter number.
	seen := map[int]bool{}
	rec.mu.Lock()
	for _, m := range rec.msgs {
		if g, ok := m.(story.GeneratingChapterMsg); ok {
			if seen[g.Number] {
				t.Errorf("chapter %d generation announced twice", g.Number)
			}
			seen[g.Number] = true
		}
	}
	rec.mu.Unlock()

	// Indices stay consecutive across the chapter boundary.
	played := rec.playedIndices()
	for i := 1; i < len(played); i++ {
		if played[i] != played[i-1]+1 {
			t.Fatalf("indices not consecutive: %v", played)
		}
	}

	if ended, ok := rec.ended(); !ok || ended.Reason != "stopped" {
		t.Errorf("ended = %+v, ok=%v; want reason stopped", ended, ok)
	}
}

func TestControllerGeneratesAtMostOneChapterAhead(t *testing.T) {
	gw := mock.New()
	gw.ChapterDelay = time.Millisecond
	rec := &recorder{}

	cfg := shortConfig()
	cfg.SessionDuration = 10 * time.Minute
	c := newTestController(gw, cfg, rec)

	if err := c.Start(context.Background(), "a long road"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// With instant generation and slow narration, an unguarded midpoint
	// check would fire on every step and pile up unplayed chapters.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		n := rec.count(func(m interface{}) bool {
			_, ok := m.(story.ChapterStartedMsg)
			return ok
		})
		if n >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Stop()
	waitDone(t, c, 10*time.Second)

	started := rec.count(func(m interface{}) bool {
		_, ok := m.(story.ChapterStartedMsg)
		return ok
	})
	if calls := gw.ChapterCalls(); calls > started+1 {
		t.Errorf("chapter generations = %d for %d narrated chapters; want at most one ahead", calls, started)
	}
}

func TestControllerPauseResume(t *testing.T) {
	gw := mock.New()
	gw.SpeechDelay = 5 * time.Millisecond
	rec := &recorder{}

	cfg := shortConfig()
	cfg.SessionDuration = 10 * time.Minute
	c := newTestController(gw, cfg, rec)

	if err := c.Pause(); !errors.Is(err, story.ErrNotPlaying) {
		t.Errorf("pause before start: %v", err)
	}

	if err := c.Start(context.Background(), "a slow river"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		c.Stop()
		waitDone(t, c, 10*time.Second)
	}()

	// The controller enters playing before Start returns.
	if err := c.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got := c.State(); got != story.StatePaused {
		t.Errorf("state %v, want paused", got)
	}
	if err := c.Pause(); !errors.Is(err, story.ErrNotPlaying) {
		t.Errorf("double pause: %v", err)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := c.State(); got != story.StatePlaying {
		t.Errorf("state %v, want playing", got)
	}
}

func TestControllerStartTwice(t *testing.T) {
	gw := mock.New()
	gw.Chapters = []*story.Chapter{scriptedChapter()}
	rec := &recorder{}
	c := newTestController(gw, shortConfig(), rec)

	if err := c.Start(context.Background(), "once"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(context.Background(), "twice"); !errors.Is(err, story.ErrAlreadyStarted) {
		t.Errorf("second start: %v", err)
	}
	waitDone(t, c, 10*time.Second)
}

func TestControllerFirstChapterFailureIsBlocking(t *testing.T) {
	gw := mock.New()
	gw.FailChapters = true
	rec := &recorder{}

	cfg := shortConfig()
	cfg.RetryAttempts = 1
	c := newTestController(gw, cfg, rec)

	if err := c.Start(context.Background(), "doomed"); err == nil {
		t.Fatal("expected start to fail")
	}

	blocking := rec.count(func(m interface{}) bool {
		e, ok := m.(story.ErrorMsg)
		return ok && e.Blocking
	})
	if blocking == 0 {
		t.Error("no blocking error was emitted")
	}
}
