// Package story implements the playback orchestration core of Dreamweaver:
// a session turns generated narrative chapters into a gapless sequence of
// narrated sentences, prefetched speech and illustrations, and mood-matched
// music selections.
package story

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dreamweaver/dreamweaver/story/music"
)

// chapterTask is the single in-flight chapter generation handle. Trigger
// paths check the handle instead of racing on a boolean, so two trigger
// conditions firing back to back still produce exactly one gateway call.
type chapterTask struct {
	number  int
	done    chan struct{}
	chapter *Chapter
	err     error
}

func (t *chapterTask) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Controller owns a session and drives the playback loop. It is the only
// writer of session state; components receive the pieces they need through
// method calls rather than ambient globals.
type Controller struct {
	gw     Gateway
	player AudioPlayer
	seg    Segmenter
	audio  AudioCache
	images ImageLibrary

	cfg     Config
	session *Session
	machine *StateMachine
	sched   *Scheduler
	sink    EventSink
	logger  *log.Logger

	mu        sync.Mutex
	premise   string
	task      *chapterTask
	nextIndex int // next global sentence index to assign
	paused    bool
	started   bool

	pauseCh   chan struct{}
	resumeCh  chan struct{}
	stopCh    chan struct{}
	expiredCh chan struct{}
	doneCh    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController wires the playback orchestrator from its collaborators.
func NewController(gw Gateway, player AudioPlayer, seg Segmenter, audio AudioCache, images ImageLibrary, cfg Config, sink EventSink) *Controller {
	return &Controller{
		gw:        gw,
		player:    player,
		seg:       seg,
		audio:     audio,
		images:    images,
		cfg:       cfg,
		session:   NewSession(cfg.SessionDuration),
		machine:   NewStateMachine(),
		sched:     NewScheduler(cfg),
		sink:      sink,
		logger:    log.WithPrefix("story"),
		pauseCh:   make(chan struct{}, 1),
		resumeCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}, 1),
		expiredCh: make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Session exposes the aggregate for read-only observation (UI, tests).
func (c *Controller) Session() *Session {
	return c.session
}

// State returns the current session state.
func (c *Controller) State() StateType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

// Done is closed when the playback loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.doneCh
}

// Start generates the first chapter, prepares the opening audio buffer, and
// launches the playback loop. It blocks until narration is ready to begin.
func (c *Controller) Start(ctx context.Context, premise string) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.premise = premise
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.transition(StateInitializing)

	first, err := c.gw.GenerateChapter(c.ctx, ChapterRequest{
		Prompt:            premise,
		SystemInstruction: SystemInstruction(c.cfg.Genre, c.cfg.SentencesPerChapter),
	})
	if err != nil {
		c.transition(StateError)
		c.emit(ErrorMsg{Err: NewStoryError(err, "gateway", "generate-chapter").AsBlocking(), Blocking: true})
		close(c.doneCh)
		return fmt.Errorf("first chapter: %w", err)
	}

	c.ingest(first)

	// Narration starts once the opening sentence is buffered.
	if s, ok := c.session.Sentence(0); ok {
		if _, err := c.audio.Wait(c.ctx, s); err != nil {
			c.logger.Warn("opening sentence audio unavailable", "err", err)
		}
	}
	c.ensureLookahead(0)

	c.transition(StateReady)
	c.transition(StatePlaying)

	go c.clockLoop()
	go c.run()
	return nil
}

// Pause suspends narration at the next sentence boundary and stops the
// session clock immediately.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.Current() != StatePlaying {
		return ErrNotPlaying
	}
	c.paused = true
	select {
	case c.pauseCh <- struct{}{}:
	default:
	}
	c.machine.Transition(StatePaused)
	c.emit(StateChangedMsg{State: StatePaused})
	return nil
}

// Resume continues a paused session.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine.Current() != StatePaused {
		return ErrNotPlaying
	}
	c.paused = false
	select {
	case c.resumeCh <- struct{}{}:
	default:
	}
	c.machine.Transition(StatePlaying)
	c.emit(StateChangedMsg{State: StatePlaying})
	return nil
}

// Stop ends the session after the current sentence.
func (c *Controller) Stop() {
	select {
	case c.stopCh <- struct{}{}:
	default:
	}
}

// Shutdown cancels all in-flight work and waits for the loop to exit.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	cancel := c.cancel
	started := c.started
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = c.player.Stop()
	if started {
		<-c.doneCh
	}
}

// run is the playback loop: one goroutine advancing the cursor sentence by
// sentence until the session ends.
func (c *Controller) run() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			c.finish("stopped")
			return
		case <-c.pauseCh:
			select {
			case <-c.ctx.Done():
				return
			case <-c.stopCh:
				c.finish("stopped")
				return
			case <-c.resumeCh:
			}
		default:
			if done := c.step(); done {
				return
			}
		}
	}
}

// step advances playback by exactly one sentence. Returns true when the
// session is over.
func (c *Controller) step() bool {
	// A finished background generation is ingested at the boundary so the
	// lookahead can reach into the new chapter before the old one runs dry.
	c.collectFinishedChapter()

	idx := c.session.Current()
	if idx >= c.session.SentenceCount() {
		return c.handleExhausted()
	}

	sent, _ := c.session.Sentence(idx)

	c.ensureLookahead(idx)

	if idx%c.cfg.ImageInterval == 0 {
		c.showImage(idx)
	}

	if c.sched.MidpointReached(c.session.ChapterProgress()) {
		c.maybeGenerateNext()
	}

	if skipped := c.playSentence(sent); skipped {
		c.emit(SentenceSkippedMsg{Index: sent.GlobalIndex, Text: sent.Text})
	}

	next := c.session.Advance()
	c.audio.ReleaseBefore(next)

	// Graceful expiry: the clock may have zeroed mid-sentence; the sentence
	// was allowed to finish, the session stops here.
	if c.session.Expired() {
		c.finish("expired")
		return true
	}
	return false
}

// playSentence resolves audio for the sentence, blocking on a synchronous
// fetch if the lookahead has not completed, and plays it. Returns true when
// the sentence had to be skipped (audio permanently unavailable).
func (c *Controller) playSentence(sent Sentence) bool {
	clip, ok := c.audio.Get(sent.GlobalIndex)
	if !ok {
		if err := c.audio.Failed(sent.GlobalIndex); err != nil {
			c.logger.Warn("skipping sentence, audio failed", "index", sent.GlobalIndex, "err", err)
			return true
		}
		var err error
		clip, err = c.audio.Wait(c.ctx, sent)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.emit(ErrorMsg{Err: NewStoryError(err, "audio", "play")})
			}
			return true
		}
	}

	ch, _ := c.session.Chapter(sent.GlobalIndex)
	title := ""
	if ch != nil {
		title = ch.Title
	}
	total := c.session.SentenceCount()
	progress := 0.0
	if total > 0 {
		progress = float64(sent.GlobalIndex) / float64(total)
	}
	c.emit(NowPlayingMsg{
		Index:    sent.GlobalIndex,
		Text:     sent.Text,
		Duration: clip.Duration,
		Chapter:  title,
		Progress: progress,
	})

	if err := c.player.Play(c.ctx, clip); err != nil && !errors.Is(err, context.Canceled) {
		c.emit(ErrorMsg{Err: NewStoryError(err, "audio", "play")})
	}
	return false
}

// ensureLookahead warms the audio cache for the cursor and the next
// Lookahead sentences.
func (c *Controller) ensureLookahead(from int) {
	total := c.session.SentenceCount()
	for i := from; i <= from+c.cfg.Lookahead && i < total; i++ {
		if s, ok := c.session.Sentence(i); ok {
			c.audio.Ensure(c.ctx, s)
		}
	}
}

// showImage resolves the illustration for a display-interval index: cache
// hit displays immediately, a miss with a registered prompt falls back to
// synchronous generation (visible delay beats a missing visual).
func (c *Controller) showImage(idx int) {
	prompt, has := c.images.PromptAt(idx)
	if !has {
		return
	}
	data, ok := c.images.Get(idx)
	if !ok {
		var err error
		data, err = c.images.GenerateNow(c.ctx, idx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.emit(ErrorMsg{Err: NewStoryError(err, "visuals", "display")})
			}
			return
		}
	}
	c.emit(NowShowingMsg{Index: idx, Data: data, Prompt: prompt})
}

// maybeGenerateNext consults the scheduler and kicks off background chapter
// generation when warranted. Crossing the midpoint is a level the loop sees
// on every step; the last-chapter check turns it into a once-per-chapter
// trigger so narration stays at most one chapter behind generation.
func (c *Controller) maybeGenerateNext() {
	if !c.session.NarratingLastChapter() {
		return
	}

	c.mu.Lock()
	inFlight := c.task != nil
	c.mu.Unlock()

	if !c.sched.ShouldGenerate(c.session.TimeLeft(), inFlight) {
		return
	}
	c.startGeneration()
}

// startGeneration launches the next chapter generation unless one is
// already in flight.
func (c *Controller) startGeneration() *chapterTask {
	c.mu.Lock()
	if c.task != nil {
		t := c.task
		c.mu.Unlock()
		return t
	}
	t := &chapterTask{
		number: c.session.ChapterCount() + 1,
		done:   make(chan struct{}),
	}
	c.task = t
	c.mu.Unlock()

	c.emit(GeneratingChapterMsg{Number: t.number})
	c.logger.Debug("generating chapter", "number", t.number)

	go func() {
		defer close(t.done)
		t.chapter, t.err = c.gw.GenerateChapter(c.ctx, ChapterRequest{
			Prompt:            c.session.ContinuationPrompt(c.premise),
			SystemInstruction: SystemInstruction(c.cfg.Genre, c.cfg.SentencesPerChapter),
		})
	}()
	return t
}

// collectFinishedChapter ingests a completed background generation. Results
// arriving after expiry are discarded — the session has moved on.
func (c *Controller) collectFinishedChapter() {
	c.mu.Lock()
	t := c.task
	c.mu.Unlock()
	if t == nil || !t.finished() {
		return
	}

	c.mu.Lock()
	c.task = nil
	c.mu.Unlock()

	if t.err != nil {
		c.emit(ErrorMsg{Err: NewStoryError(t.err, "gateway", "generate-chapter")})
		return
	}
	if c.session.Expired() {
		c.logger.Debug("discarding chapter generated after expiry", "number", t.number)
		return
	}
	c.ingest(t.chapter)
}

// handleExhausted is reached when the cursor passed the last segmented
// sentence: wait out an in-flight generation (brief stall) or end.
func (c *Controller) handleExhausted() bool {
	c.mu.Lock()
	t := c.task
	c.mu.Unlock()

	if t == nil {
		if c.session.Expired() || !c.sched.ShouldGenerate(c.session.TimeLeft(), false) {
			reason := "exhausted"
			if c.session.Expired() {
				reason = "expired"
			}
			c.finish(reason)
			return true
		}
		t = c.startGeneration()
	}

	c.transition(StateStalled)
	select {
	case <-c.ctx.Done():
		return true
	case <-c.stopCh:
		c.finish("stopped")
		return true
	case <-c.expiredCh:
		c.finish("expired")
		return true
	case <-t.done:
	}

	c.mu.Lock()
	c.task = nil
	c.mu.Unlock()

	if t.err != nil {
		c.transition(StateError)
		c.emit(ErrorMsg{Err: NewStoryError(t.err, "gateway", "generate-chapter").AsBlocking(), Blocking: true})
		c.emitEnded("error")
		return true
	}

	c.ingest(t.chapter)
	c.transition(StatePlaying)
	return false
}

// ingest appends a chapter: segment prose, extend the session, re-run music
// selection, and seed the visuals pipeline (first moment eager, rest queued).
func (c *Controller) ingest(ch *Chapter) {
	if ch.ID == "" {
		ch.ID = NewChapterID()
	}

	c.mu.Lock()
	start := c.nextIndex
	c.mu.Unlock()

	sentences := c.seg.Segment(ch.Prose, ch.ID, start)

	c.mu.Lock()
	c.nextIndex = start + len(sentences)
	c.mu.Unlock()

	c.session.Ingest(ch, sentences)
	c.emit(ChapterStartedMsg{Number: c.session.ChapterCount(), Title: ch.Title})
	c.logger.Info("chapter ingested", "title", ch.Title, "sentences", len(sentences))

	c.selectMusic(ch)
	c.seedVisuals(ch, start, len(sentences))
	c.ensureLookahead(c.session.Current())
}

// selectMusic scores the chapter prose against the catalog and switches the
// mood when the signal clears the configured threshold.
func (c *Controller) selectMusic(ch *Chapter) {
	choice := music.Select(ch.Prose, ch.SuggestedMood, c.session.Mood(), c.cfg.MoodThreshold())
	if choice.Track.ID == c.session.Mood() {
		return
	}
	c.session.SetMood(choice.Track.ID)
	c.emit(MusicChangedMsg{
		TrackID:   choice.Track.ID,
		TrackName: choice.Track.Name,
		Icon:      choice.Track.Icon,
		SourceURL: choice.Track.SourceURL,
		Score:     choice.Score,
	})
}

// seedVisuals maps the chapter's visual moments onto display-interval
// sentence indices. The first moment is generated eagerly (bypassing queue
// pacing) so the chapter opens with an image; the rest drain in the
// background.
func (c *Controller) seedVisuals(ch *Chapter, start, count int) {
	if len(ch.VisualMoments) == 0 || count == 0 {
		return
	}
	slot := start
	if rem := slot % c.cfg.ImageInterval; rem != 0 {
		slot += c.cfg.ImageInterval - rem
	}
	for i, prompt := range ch.VisualMoments {
		if slot >= start+count {
			break
		}
		c.images.Register(slot, prompt)
		if i == 0 {
			go c.eagerImage(slot)
		} else {
			c.images.Enqueue(c.ctx, slot)
		}
		slot += c.cfg.ImageInterval
	}
}

// eagerImage warms the cache for a chapter's opening illustration, bypassing
// queue pacing. Display stays with showImage so each image is announced
// exactly once, when narration reaches its index.
func (c *Controller) eagerImage(idx int) {
	if _, err := c.images.GenerateNow(c.ctx, idx); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.emit(ErrorMsg{Err: NewStoryError(err, "visuals", "eager-generate")})
		}
	}
}

// clockLoop decrements the session clock once per second while playing.
func (c *Controller) clockLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			paused := c.paused
			c.mu.Unlock()
			if paused {
				continue
			}
			remaining := c.session.TickDown()
			c.emit(ClockTickMsg{Remaining: remaining})
			if remaining <= 0 {
				close(c.expiredCh)
				return
			}
		}
	}
}

// finish transitions to the terminal state and reports why.
func (c *Controller) finish(reason string) {
	c.transition(StateEnded)
	c.emitEnded(reason)
	c.logger.Info("session ended", "reason", reason,
		"chapters", c.session.ChapterCount(), "sentences", c.session.Current())
	// Ends the clock loop and any in-flight generation.
	c.cancel()
}

func (c *Controller) emitEnded(reason string) {
	c.emit(SessionEndedMsg{
		Reason:    reason,
		Chapters:  c.session.ChapterCount(),
		Sentences: c.session.Current(),
	})
}

func (c *Controller) transition(to StateType) {
	c.mu.Lock()
	moved := c.machine.Transition(to)
	c.mu.Unlock()
	if moved {
		c.emit(StateChangedMsg{State: to})
	}
}

func (c *Controller) emit(msg interface{}) {
	if c.sink != nil {
		c.sink(msg)
	}
}
