// Package source defines the video source instance contract: lifecycle
// states, the diagnostic bus, and output pads.
package source

import (
	"context"
	"sync"

	"github.com/visiona/autovideo/internal/caps"
)

// Source is one instantiated video source.
//
// Implementations are not required to be thread-safe across lifecycle
// calls; an instance is exclusively owned by one caller at a time.
type Source interface {
	// Name returns the instance name.
	Name() string
	// Caps returns the advertised output capability set.
	Caps(ctx context.Context) (*caps.Caps, error)
	// SetState transitions the instance to the target state, walking
	// intermediate states one step at a time. On failure the instance
	// stays at the last state it reached.
	SetState(ctx context.Context, target State) error
	// State returns the current state.
	State() State
	// Pad returns the output pad.
	Pad() *Pad
	// SetBus attaches a diagnostic bus, or detaches it when nil.
	// Failures during state transitions are reported there.
	SetBus(b *Bus)
	// Release frees the instance. The instance must not be used after.
	Release()
}

// Syncer is implemented by sources that can pace their output against
// real time. The fallback placeholder enables this best-effort.
type Syncer interface {
	SetSync(sync bool)
}

// StepFunc performs one adjacent state transition.
type StepFunc func(ctx context.Context, from, to State) error

// Base carries the common instance plumbing: name, advertised caps,
// output pad, current state, and the attached bus. Providers embed it
// and implement SetState via Transition.
type Base struct {
	name string
	caps *caps.Caps
	pad  *Pad

	mu    sync.Mutex
	state State
	bus   *Bus
}

// NewBase returns a Base in StateNull with a concrete "src" pad.
func NewBase(name string, c *caps.Caps) *Base {
	return &Base{name: name, caps: c, pad: NewPad("src")}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Caps(_ context.Context) (*caps.Caps, error) { return b.caps, nil }

func (b *Base) Pad() *Pad { return b.pad }

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) SetBus(bus *Bus) {
	b.mu.Lock()
	b.bus = bus
	b.mu.Unlock()
}

// Release is a no-op; providers holding resources override it.
func (b *Base) Release() {}

// Post forwards a message to the attached bus, stamping the source name.
// Dropped silently when no bus is attached.
func (b *Base) Post(m Message) {
	b.mu.Lock()
	bus := b.bus
	b.mu.Unlock()
	if bus == nil {
		return
	}
	if m.Source == "" {
		m.Source = b.name
	}
	bus.Post(m)
}

// PostError posts an error-severity message.
func (b *Base) PostError(domain, code, text, debug string) {
	b.Post(Message{Severity: SeverityError, Domain: domain, Code: code, Text: text, Debug: debug})
}

// Transition walks from the current state to target, invoking step for
// each adjacent pair. The state advances after each successful step; a
// failed step leaves the instance at the last state reached.
func (b *Base) Transition(ctx context.Context, target State, step StepFunc) error {
	for {
		b.mu.Lock()
		cur := b.state
		b.mu.Unlock()

		if cur == target {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		to := cur.next(target)
		if step != nil {
			if err := step(ctx, cur, to); err != nil {
				return err
			}
		}

		b.mu.Lock()
		b.state = to
		b.mu.Unlock()
	}
}
