package playback

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// VirtualPlayer is a media clock without decoding. It advances while
// playing and reports each new position to its listener, which is how the
// terminal editor and the tests exercise the driver.
type VirtualPlayer struct {
	mu       sync.Mutex
	pos      time.Duration
	duration time.Duration
	playing  bool
	tick     time.Duration
	listener func(time.Duration)
}

func NewVirtualPlayer(duration, tick time.Duration) *VirtualPlayer {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &VirtualPlayer{duration: duration, tick: tick}
}

// OnPosition sets the listener for position updates. It is called without
// the player's lock held.
func (p *VirtualPlayer) OnPosition(fn func(time.Duration)) {
	p.mu.Lock()
	p.listener = fn
	p.mu.Unlock()
}

func (p *VirtualPlayer) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos < 0 || (p.duration > 0 && pos > p.duration) {
		return fmt.Errorf("seek to %s outside media of length %s", pos, p.duration)
	}
	p.pos = pos
	return nil
}

func (p *VirtualPlayer) Play() error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	return nil
}

func (p *VirtualPlayer) Pause() error {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	return nil
}

func (p *VirtualPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *VirtualPlayer) Duration() time.Duration {
	return p.duration
}

func (p *VirtualPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Advance moves the clock forward by d if playing and notifies the listener.
// Reaching the end of the media pauses the player.
func (p *VirtualPlayer) Advance(d time.Duration) {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.pos += d
	if p.duration > 0 && p.pos >= p.duration {
		p.pos = p.duration
		p.playing = false
	}
	pos, fn := p.pos, p.listener
	p.mu.Unlock()

	if fn != nil {
		fn(pos)
	}
}

// Run advances the clock one tick per tick interval until ctx is done.
func (p *VirtualPlayer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Advance(p.tick)
		}
	}
}
