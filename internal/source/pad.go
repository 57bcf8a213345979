package source

import (
	"sync"
	"sync/atomic"

	"github.com/visiona/autovideo/internal/media"
)

// padBuffer is the frame channel depth. Pushes are non-blocking; frames
// are dropped rather than queued when the consumer falls behind.
const padBuffer = 16

// Pad is a named output port carrying frames.
//
// A concrete pad owns a buffered channel. A ghost pad owns no channel and
// proxies a retargetable inner pad, so a composite source can swap its
// child without its consumer noticing.
type Pad struct {
	name    string
	ch      chan media.Frame
	dropped atomic.Uint64

	mu     sync.Mutex
	target *Pad
}

// NewPad returns a concrete pad with its own frame channel.
func NewPad(name string) *Pad {
	return &Pad{name: name, ch: make(chan media.Frame, padBuffer)}
}

// NewGhostPad returns a pad that forwards to a target set later.
func NewGhostPad(name string) *Pad {
	return &Pad{name: name}
}

// Name returns the pad name.
func (p *Pad) Name() string {
	return p.name
}

// SetTarget points a ghost pad at a new inner pad.
func (p *Pad) SetTarget(t *Pad) {
	p.mu.Lock()
	p.target = t
	p.mu.Unlock()
}

// Target returns the current inner pad, or nil.
func (p *Pad) Target() *Pad {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Push delivers a frame without blocking. Returns false if the frame was
// dropped because the channel was full or no channel was reachable.
func (p *Pad) Push(f media.Frame) bool {
	ch := p.resolve()
	if ch == nil {
		p.dropped.Add(1)
		return false
	}
	select {
	case ch <- f:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Frames returns the channel frames arrive on, resolving through ghost
// targets. Re-acquire after retargeting: the channel belongs to the
// current target. Returns nil if no concrete pad is reachable.
func (p *Pad) Frames() <-chan media.Frame {
	ch := p.resolve()
	if ch == nil {
		return nil
	}
	return ch
}

// Dropped returns the number of frames dropped at this pad.
func (p *Pad) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Pad) resolve() chan media.Frame {
	cur := p
	for cur != nil {
		if cur.ch != nil {
			return cur.ch
		}
		cur.mu.Lock()
		next := cur.target
		cur.mu.Unlock()
		cur = next
	}
	return nil
}
