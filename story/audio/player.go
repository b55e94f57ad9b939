package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dreamweaver/dreamweaver/story"
)

// Player renders clips through the system audio device using oto. One
// player serves the whole session; the oto context is created once and
// reused because most platforms allow only a single audio context.
type Player struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	current *oto.Player
	stopped bool
}

// NewPlayer initializes the audio device for the clip format the speech
// gateway produces (16-bit little-endian PCM).
func NewPlayer(sampleRate, channels int) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audio device: %w", err)
	}
	<-ready
	return &Player{otoCtx: otoCtx}, nil
}

// Play renders the clip and blocks until it finishes, the context is
// cancelled, or Stop is called.
func (p *Player) Play(ctx context.Context, clip *story.Clip) error {
	if clip == nil || len(clip.Data) == 0 {
		return story.ErrAudioUnavailable
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return story.ErrShutdown
	}
	player := p.otoCtx.NewPlayer(bytes.NewReader(clip.Data))
	p.current = player
	p.mu.Unlock()

	player.Play()
	defer func() {
		p.mu.Lock()
		if p.current == player {
			p.current = nil
		}
		p.mu.Unlock()
		player.Close()
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}

// Stop halts the clip currently playing, if any, and marks the player
// unusable for further playback.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.current != nil {
		p.current.Pause()
	}
	return nil
}
