package audio

import (
	"context"
	"sync"
	"time"

	"github.com/dreamweaver/dreamweaver/story"
)

// NullPlayer paces playback without touching an audio device: Play sleeps
// for the clip's duration. Used when no device is available and by the
// timing-sensitive paths in tests.
type NullPlayer struct {
	// Speed divides the sleep; 0 means real time, higher values fast-forward.
	Speed int

	mu      sync.Mutex
	stopped chan struct{}
}

// NewNullPlayer creates a device-free pacing player.
func NewNullPlayer() *NullPlayer {
	return &NullPlayer{stopped: make(chan struct{})}
}

// Play blocks for the clip duration (scaled by Speed), the context, or Stop.
func (p *NullPlayer) Play(ctx context.Context, clip *story.Clip) error {
	if clip == nil {
		return story.ErrAudioUnavailable
	}
	d := clip.Duration
	if p.Speed > 1 {
		d /= time.Duration(p.Speed)
	}
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return nil
	case <-timer.C:
		return nil
	}
}

// Stop unblocks the current and all future plays.
func (p *NullPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.stopped:
	default:
		close(p.stopped)
	}
	return nil
}
