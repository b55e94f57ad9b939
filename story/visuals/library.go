// Package visuals holds generated illustrations and the paced background
// queue that produces them. Images accumulate for the life of the session;
// unlike narration audio they are never evicted, so earlier scenes can be
// shown again.
package visuals

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dreamweaver/dreamweaver/story"
)

// Library maps display indices to illustration prompts and generated image
// bytes. Queued generation drains FIFO, paced so requests land at least the
// configured delay apart; GenerateNow bypasses the pacing for moments the
// session needs immediately.
type Library struct {
	gw      story.Gateway
	limiter *rate.Limiter

	retryAttempts int
	retryDelay    time.Duration

	group  singleflight.Group
	logger *log.Logger

	mu       sync.Mutex
	prompts  map[int]string
	images   map[int][]byte
	queue    []int
	draining bool
}

// NewLibrary creates an image library backed by the gateway.
func NewLibrary(gw story.Gateway, cfg story.Config) *Library {
	return &Library{
		gw:            gw,
		limiter:       rate.NewLimiter(rate.Every(cfg.ImageQueueDelay), 1),
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		logger:        log.WithPrefix("visuals"),
		prompts:       make(map[int]string),
		images:        make(map[int][]byte),
	}
}

// Register associates a visual-moment prompt with a display index.
func (l *Library) Register(index int, prompt string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts[index] = prompt
}

// PromptAt returns the registered prompt for an index, if any.
func (l *Library) PromptAt(index int) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.prompts[index]
	return p, ok
}

// Get returns the generated image bytes for an index, if present.
func (l *Library) Get(index int) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, ok := l.images[index]
	return data, ok
}

// Len returns the number of generated images.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.images)
}

// Enqueue appends a registered moment to the background queue. The drain
// worker starts lazily and exactly once; enqueueing while a drain is in
// progress just extends its work.
func (l *Library) Enqueue(ctx context.Context, index int) {
	l.mu.Lock()
	l.queue = append(l.queue, index)
	start := !l.draining
	if start {
		l.draining = true
	}
	l.mu.Unlock()

	if start {
		go l.drain(ctx)
	}
}

// GenerateNow generates the image for an index immediately, bypassing queue
// pacing. Used for the eager first image of a chapter and for display-time
// misses.
func (l *Library) GenerateNow(ctx context.Context, index int) ([]byte, error) {
	return l.generate(ctx, index)
}

// drain works the queue FIFO. Each generation waits on the limiter first,
// so consecutive requests are spaced at least the configured delay apart.
func (l *Library) drain(ctx context.Context) {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		index := l.queue[0]
		l.queue = l.queue[1:]
		already := false
		if _, ok := l.images[index]; ok {
			already = true
		}
		l.mu.Unlock()

		if already {
			continue
		}
		if err := l.limiter.Wait(ctx); err != nil {
			l.mu.Lock()
			l.draining = false
			l.queue = nil
			l.mu.Unlock()
			return
		}
		if _, err := l.generate(ctx, index); err != nil {
			// A failed background image is not worth stalling the queue
			// over; the display path can retry synchronously if needed.
			l.logger.Warn("background image generation failed", "index", index, "err", err)
		}
	}
}

// generate fetches one image with bounded retries, deduplicating concurrent
// requests for the same index.
func (l *Library) generate(ctx context.Context, index int) ([]byte, error) {
	l.mu.Lock()
	if data, ok := l.images[index]; ok {
		l.mu.Unlock()
		return data, nil
	}
	prompt, ok := l.prompts[index]
	l.mu.Unlock()
	if !ok {
		return nil, story.NewStoryError(story.ErrValidation, "visuals", "generate")
	}

	v, err, _ := l.group.Do(strconv.Itoa(index), func() (interface{}, error) {
		var lastErr error
		delay := l.retryDelay
		for attempt := 0; attempt < l.retryAttempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				delay *= 2
			}
			data, err := l.gw.GenerateImage(ctx, prompt)
			if err == nil {
				l.mu.Lock()
				l.images[index] = data
				l.mu.Unlock()
				return data, nil
			}
			lastErr = err
			if !story.IsRetryable(err) {
				break
			}
		}
		return nil, lastErr
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
