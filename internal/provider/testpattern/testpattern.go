// Package testpattern provides a synthetic video source generating RGB
// color bars. It is always ready, ranked marginal so any real capture
// provider wins over it.
package testpattern

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
const Name = "testsrc"

const (
	KeyWidth  = "width"
	KeyHeight = "height"
	KeyFPS    = "fps"
)

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassDebug},
		Rank:        provider.RankMarginal,
		Description: "Synthetic RGB color bar generator",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyWidth:  "640",
		KeyHeight: "480",
		KeyFPS:    "15",
	}
}

// NewFactory creates a test pattern source.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	width, err := provider.GetInt(config, KeyWidth, 640)
	if err != nil {
		return nil, err
	}
	height, err := provider.GetInt(config, KeyHeight, 480)
	if err != nil {
		return nil, err
	}
	fps, err := provider.GetFloat(config, KeyFPS, 15)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, provider.NewConfigError(Name, KeyWidth, "dimensions must be positive")
	}
	if fps <= 0 {
		return nil, provider.NewConfigErrorWithValue(Name, KeyFPS, config[KeyFPS], "must be positive")
	}

	return &Source{
		Base:   source.NewBase(name, caps.New("video/x-raw-rgb", "video/x-raw-yuv")),
		width:  width,
		height: height,
		fps:    fps,
	}, nil
}

// Source generates color bar frames while playing.
type Source struct {
	*source.Base
	width  int
	height int
	fps    float64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SetState implements source.Source.
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

// bars are the classic eight-column pattern, RGB.
var bars = [8][3]byte{
	{255, 255, 255}, {255, 255, 0}, {0, 255, 255}, {0, 255, 0},
	{255, 0, 255}, {255, 0, 0}, {0, 0, 255}, {0, 0, 0},
}

func (s *Source) render() []byte {
	data := make([]byte, s.width*s.height*3)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			bar := bars[x*8/s.width]
			i := (y*s.width + x) * 3
			data[i], data[i+1], data[i+2] = bar[0], bar[1], bar[2]
		}
	}
	return data
}

func (s *Source) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	frame := s.render()

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
					Width:     s.width,
					Height:    s.height,
					Data:      frame,
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
