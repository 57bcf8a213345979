// Package file provides a video source replaying pre-recorded raw RGB
// frames from a directory of .rgb files, in name order.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "filesrc"

const (
	KeyPath   = "path"
	KeyWidth  = "width"
	KeyHeight = "height"
	KeyFPS    = "fps"
	KeyLoop   = "loop"
)

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassFile},
		Rank:        provider.RankMarginal,
		Description: "Replays recorded raw frames from a directory",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:   "~/.autovideo/frames",
		KeyWidth:  "640",
		KeyHeight: "480",
		KeyFPS:    "15",
		KeyLoop:   "true",
	}
}

// NewFactory creates a file source. The directory is not touched until
// the instance is probed toward ready.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	path := provider.GetString(config, KeyPath, "")
	if path == "" {
		return nil, provider.NewConfigError(Name, KeyPath, "cannot be empty")
	}
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
	loop, err := provider.GetBool(config, KeyLoop, true)
	if err != nil {
		return nil, err
	}

	return &Source{
		Base:   source.NewBase(name, caps.New("video/x-raw-rgb")),
		path:   provider.ExpandPath(path),
		width:  width,
		height: height,
		fps:    fps,
		loop:   loop,
	}, nil
}

// Source replays .rgb frame files.
type Source struct {
	*source.Base
	path   string
	width  int
	height int
	fps    float64
	loop   bool

	frames []string

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
	case from == source.StateNull && to == source.StateReady:
		return s.open()
	case from == source.StateReady && to == source.StateNull:
		s.frames = nil
	case from == source.StatePaused && to == source.StatePlaying:
		s.start()
	case from == source.StatePlaying && to == source.StatePaused:
		s.stop()
	}
	return nil
}

// open scans the frame directory. Ready requires at least one frame file.
func (s *Source) open() error {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		s.PostError(source.DomainResource, source.CodeNotFound,
			fmt.Sprintf("Could not open frame directory %q", s.path), err.Error())
		return fmt.Errorf("filesrc: read dir %s: %w", s.path, err)
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".rgb") {
			continue
		}
		frames = append(frames, filepath.Join(s.path, e.Name()))
	}
	sort.Strings(frames)

	if len(frames) == 0 {
		s.PostError(source.DomainResource, source.CodeNotFound,
			fmt.Sprintf("No frame files in %q", s.path), "")
		return fmt.Errorf("filesrc: no .rgb files in %s", s.path)
	}

	s.frames = frames
	return nil
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
	frames := s.frames

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.fps))
		defer ticker.Stop()

		var seq uint64
		i := 0
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if i >= len(frames) {
					if !s.loop {
						return
					}
					i = 0
				}
				data, err := os.ReadFile(frames[i])
				i++
				if err != nil {
					continue
				}
				seq++
				s.Pad().Push(media.Frame{
					Seq:       seq,
					Timestamp: t,
					Width:     s.width,
					Height:    s.height,
					Data:      data,
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
