// Package audio implements the narration side of playback: a prefetch cache
// that keeps the next few sentences synthesized ahead of the cursor, and a
// speaker-backed player.
package audio

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/dreamweaver/dreamweaver/story"
)

// Cache prefetches synthesized speech keyed by global sentence index.
// Concurrent fetches for the same index collapse into one gateway call;
// entries behind the playback cursor are released to bound memory.
type Cache struct {
	gw     story.Gateway
	voice  string
	accent string

	retryAttempts int
	retryDelay    time.Duration

	group  singleflight.Group
	logger *log.Logger

	mu      sync.Mutex
	entries map[int]*story.Clip
	failed  map[int]error
}

// NewCache creates an audio prefetch cache backed by the gateway.
func NewCache(gw story.Gateway, cfg story.Config) *Cache {
	return &Cache{
		gw:            gw,
		voice:         cfg.Voice,
		accent:        cfg.Accent,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		logger:        log.WithPrefix("audio"),
		entries:       make(map[int]*story.Clip),
		failed:        make(map[int]error),
	}
}

// Ensure starts a background fetch for the sentence unless a cached entry,
// a recorded failure, or an in-flight fetch already exists. Never blocks.
func (c *Cache) Ensure(ctx context.Context, s story.Sentence) {
	c.mu.Lock()
	_, have := c.entries[s.GlobalIndex]
	_, dead := c.failed[s.GlobalIndex]
	c.mu.Unlock()
	if have || dead {
		return
	}
	// DoChan joins any fetch already in flight for this index; the result
	// lands in the cache inside fetch, so the channel is dropped.
	c.group.DoChan(key(s.GlobalIndex), func() (interface{}, error) {
		return c.fetch(ctx, s)
	})
}

// Wait blocks until the clip for the sentence is available, joining an
// in-flight fetch or starting one. Playback calls this on a cache miss.
func (c *Cache) Wait(ctx context.Context, s story.Sentence) (*story.Clip, error) {
	c.mu.Lock()
	if clip, ok := c.entries[s.GlobalIndex]; ok {
		c.mu.Unlock()
		return clip, nil
	}
	if err, ok := c.failed[s.GlobalIndex]; ok {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key(s.GlobalIndex), func() (interface{}, error) {
		return c.fetch(ctx, s)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*story.Clip), nil
	}
}

// Get returns the cached clip for an index, if present.
func (c *Cache) Get(index int) (*story.Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clip, ok := c.entries[index]
	return clip, ok
}

// Failed reports the terminal error for an index whose fetch exhausted its
// retries, or nil.
func (c *Cache) Failed(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[index]
}

// ReleaseBefore frees every entry with index strictly below the given
// index. Failure records are cleared too; a sentence behind the cursor will
// never be retried.
func (c *Cache) ReleaseBefore(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, clip := range c.entries {
		if i < index {
			clip.Release()
			delete(c.entries, i)
		}
	}
	for i := range c.failed {
		if i < index {
			delete(c.failed, i)
		}
	}
}

// Len returns the number of resident clips.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// fetch synthesizes one sentence with bounded exponential-backoff retries.
// The outcome, success or terminal failure, is recorded before returning so
// later lookups are O(1).
func (c *Cache) fetch(ctx context.Context, s story.Sentence) (*story.Clip, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		clip, err := c.gw.GenerateSpeech(ctx, s.Text, c.voice, c.accent)
		if err == nil {
			c.mu.Lock()
			c.entries[s.GlobalIndex] = clip
			c.mu.Unlock()
			return clip, nil
		}
		lastErr = err
		if !story.IsRetryable(err) {
			break
		}
		c.logger.Debug("speech fetch retry", "index", s.GlobalIndex, "attempt", attempt+1, "err", err)
	}

	c.mu.Lock()
	c.failed[s.GlobalIndex] = lastErr
	c.mu.Unlock()
	c.logger.Warn("speech fetch failed", "index", s.GlobalIndex, "err", lastErr)
	return nil, lastErr
}

func key(index int) string {
	return strconv.Itoa(index)
}
