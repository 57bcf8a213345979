// Package fake provides the placeholder video source. It is always
// constructible, advertises no capabilities, and is only installed when
// detection finds nothing usable (or as the disposable child of an
// inactive composite source).
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "fakesrc"

const (
	KeyFPS = "fps"
)

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassDebug},
		Rank:        provider.RankNone,
		Description: "Inert placeholder source, never auto-selected",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyFPS: "15",
	}
}

// NewFactory creates a fake source.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	fps, err := provider.GetFloat(config, KeyFPS, 15)
	if err != nil {
		return nil, err
	}
	if fps <= 0 {
		return nil, provider.NewConfigErrorWithValue(Name, KeyFPS, config[KeyFPS], "must be positive")
	}

	return &Source{
		Base: source.NewBase(name, caps.New()),
		fps:  fps,
	}, nil
}

// Source produces empty frames. With sync enabled the frames are paced
// against real time at the configured rate; without it nothing is
// emitted.
type Source struct {
	*source.Base
	fps float64

	mu     sync.Mutex
	sync   bool
	cancel context.CancelFunc
	done   chan struct{}
}

// SetSync enables best-effort paced output.
func (s *Source) SetSync(enable bool) {
	s.mu.Lock()
	s.sync = enable
	s.mu.Unlock()
}

// SetState implements source.Source. Every transition succeeds; playing
// starts the pacer when sync is enabled.
func (s *Source) SetState(ctx context.Context, target source.State) error {
	return s.Transition(ctx, target, s.step)
}

func (s *Source) step(_ context.Context, from, to source.State) error {
	switch {
	case from == source.StatePaused && to == source.StatePlaying:
		s.start()
	case from == source.StatePlaying && to == source.StatePaused:
		s.stop()
	}
	return nil
}

func (s *Source) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sync || s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.fps))
		defer ticker.Stop()

		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				seq++
				s.Pad().Push(media.Frame{
					Seq:       seq,
					Timestamp: t,
					Source:    s.Name(),
					TraceID:   media.NewTraceID(),
				})
			}
		}
	}(s.done)
}

func (s *Source) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Release implements source.Source.
func (s *Source) Release() {
	s.stop()
}
