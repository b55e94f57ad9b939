// Package mock provides a scriptable in-memory gateway for tests and for
// running the app without network access or an API key.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreamweaver/dreamweaver/story"
)

// Gateway fabricates chapters, clips, and images locally. Zero value is
// usable; delays and failures are opt-in knobs for exercising the playback
// loop's degradation paths.
type Gateway struct {
	mu sync.Mutex

	// Chapters are served in order; when the script runs out, chapters are
	// fabricated from a counter.
	Chapters []*story.Chapter

	ChapterDelay time.Duration
	SpeechDelay  time.Duration
	ImageDelay   time.Duration

	FailChapters bool
	FailSpeech   bool
	FailImages   bool
	// FailSpeechFor marks individual sentence texts that always fail.
	FailSpeechFor map[string]bool

	chapterCalls int
	speechCalls  int
	imageCalls   int
}

// New creates an unscripted mock gateway.
func New() *Gateway {
	return &Gateway{}
}

// SetFailImages toggles scripted image failures.
func (g *Gateway) SetFailImages(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.FailImages = fail
}

// ChapterCalls returns how many chapter generations were requested.
func (g *Gateway) ChapterCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chapterCalls
}

// SpeechCalls returns how many speech syntheses were requested.
func (g *Gateway) SpeechCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speechCalls
}

// ImageCalls returns how many image generations were requested.
func (g *Gateway) ImageCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.imageCalls
}

// GenerateChapter serves the next scripted chapter or fabricates one.
func (g *Gateway) GenerateChapter(ctx context.Context, _ story.ChapterRequest) (*story.Chapter, error) {
	g.mu.Lock()
	g.chapterCalls++
	n := g.chapterCalls
	fail := g.FailChapters
	delay := g.ChapterDelay
	var scripted *story.Chapter
	if n <= len(g.Chapters) {
		scripted = g.Chapters[n-1]
	}
	g.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if fail {
		return nil, fmt.Errorf("%w: scripted chapter failure", story.ErrUpstream)
	}
	if scripted != nil {
		cp := *scripted
		if cp.ID == "" {
			cp.ID = story.NewChapterID()
		}
		return &cp, nil
	}

	return &story.Chapter{
		ID:            story.NewChapterID(),
		Title:         fmt.Sprintf("Chapter %d", n),
		Prose:         fabricateProse(n),
		SuggestedMood: "calm",
		VisualMoments: []string{
			fmt.Sprintf("A painted scene from chapter %d.", n),
			fmt.Sprintf("A second moment from chapter %d.", n),
		},
	}, nil
}

// GenerateSpeech returns a short silent clip sized to the sentence.
func (g *Gateway) GenerateSpeech(ctx context.Context, text, _, _ string) (*story.Clip, error) {
	g.mu.Lock()
	g.speechCalls++
	fail := g.FailSpeech || g.FailSpeechFor[text]
	delay := g.SpeechDelay
	g.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if fail {
		return nil, fmt.Errorf("%w: scripted speech failure", story.ErrUpstream)
	}

	// 100ms of silence per word keeps mock playback quick but ordered.
	words := 1
	for _, r := range text {
		if r == ' ' {
			words++
		}
	}
	const rate = 24000
	samples := rate / 10 * words
	return &story.Clip{
		Data:       make([]byte, samples*2),
		SampleRate: rate,
		Channels:   1,
		Duration:   time.Duration(words) * 100 * time.Millisecond,
	}, nil
}

// GenerateImage returns a tiny placeholder payload.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	g.mu.Lock()
	g.imageCalls++
	fail := g.FailImages
	delay := g.ImageDelay
	g.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if fail {
		return nil, fmt.Errorf("%w: scripted image failure", story.ErrUpstream)
	}
	return []byte("img:" + prompt), nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func fabricateProse(n int) string {
	return fmt.Sprintf(
		"The travelers reached the edge of the %d-mile wood. A soft light glowed between the trees. "+
			"They walked on without fear. The path bent toward a quiet river. "+
			"Something wonderful waited on the far bank. They crossed together as the stars came out.",
		n,
	)
}
