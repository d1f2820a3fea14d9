// Package playback models audio playback of a synthesized poem as an
// explicit state machine: Idle, Playing and Stopped.
package playback

import (
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	Playing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Clip is a playable piece of audio. Release frees whatever backs it and is
// called exactly once by the Player.
type Clip struct {
	Duration time.Duration
	Release  func()
}

// Player holds at most one active clip. It is safe for concurrent use.
type Player struct {
	mu       sync.Mutex
	state    State
	clip     *Clip
	position time.Duration
}

func NewPlayer() *Player {
	return &Player{}
}

// Start begins playing clip from the beginning, releasing any current clip.
func (p *Player) Start(clip Clip) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()
	p.clip = &clip
	p.position = 0
	p.state = Playing
	if clip.Duration <= 0 {
		p.finishLocked()
	}
}

// Stop ends playback early. It has no effect unless playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Playing {
		return
	}
	p.releaseLocked()
	p.state = Stopped
}

// Advance moves the playback position forward by d. Reaching the end of the
// clip returns the player to Idle.
func (p *Player) Advance(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Playing || d <= 0 {
		return
	}
	p.position += d
	if p.position >= p.clip.Duration {
		p.finishLocked()
	}
}

// Finish marks the natural end of the clip when the audio sink reports it
// before the position reaches the clip duration.
func (p *Player) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Playing {
		p.finishLocked()
	}
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Progress returns the playback position as a percentage in [0, 100].
func (p *Player) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Playing || p.clip == nil || p.clip.Duration <= 0 {
		return 0
	}
	pct := float64(p.position) / float64(p.clip.Duration) * 100
	return min(max(pct, 0), 100)
}

func (p *Player) finishLocked() {
	p.releaseLocked()
	p.state = Idle
}

// releaseLocked drops the current clip and resets the position.
func (p *Player) releaseLocked() {
	if p.clip != nil && p.clip.Release != nil {
		p.clip.Release()
	}
	p.clip = nil
	p.position = 0
}
