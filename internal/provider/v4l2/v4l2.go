// Package v4l2 provides a video source backed by a Video4Linux capture
// device node. Readiness means the device could be opened for reading
// and writing; frame delivery uses the driver's read() interface
// (mmap/streaming I/O is not implemented).
package v4l2

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// Name is the registered provider name.
const Name = "v4l2src"

const (
	KeyDevice = "device"
	KeyWidth  = "width"
	KeyHeight = "height"
	KeyFPS    = "fps"
)

func init() {
	provider.Register(provider.Descriptor{
		Name:        Name,
		Class:       []string{provider.ClassSource, provider.ClassVideo, provider.ClassDevice},
		Rank:        provider.RankPrimary,
		Description: "Video4Linux capture device",
		Defaults:    Defaults,
		New:         NewFactory,
	})
}

// Defaults returns the default configuration.
func Defaults() map[string]string {
	return map[string]string{
		KeyDevice: "/dev/video0",
		KeyWidth:  "640",
		KeyHeight: "480",
		KeyFPS:    "15",
	}
}

// NewFactory creates a v4l2 source. The device is not opened until the
// instance is probed toward ready.
func NewFactory(_ context.Context, name string, config map[string]string) (source.Source, error) {
	device := provider.GetString(config, KeyDevice, "")
	if device == "" {
		return nil, provider.NewConfigError(Name, KeyDevice, "cannot be empty")
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

	return &Source{
		Base:   source.NewBase(name, caps.New("video/x-raw-yuv", "video/x-raw-rgb")),
		device: device,
		width:  width,
		height: height,
		fps:    fps,
	}, nil
}

// Source captures from a V4L2 device node.
type Source struct {
	*source.Base
	device string
	width  int
	height int
	fps    float64

	f *os.File

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
		s.close()
	case from == source.StatePaused && to == source.StatePlaying:
		s.start()
	case from == source.StatePlaying && to == source.StatePaused:
		s.stop()
	}
	return nil
}

func (s *Source) open() error {
	f, err := os.OpenFile(s.device, os.O_RDWR, 0)
	if err != nil {
		s.PostError(source.DomainResource, source.CodeOpenRead,
			fmt.Sprintf("Could not open device %q for reading and writing", s.device), err.Error())
		return fmt.Errorf("v4l2src: open %s: %w", s.device, err)
	}
	s.f = f
	return nil
}

func (s *Source) close() {
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
}

func (s *Source) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.f == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	f := s.f
	// YUYV packs two bytes per pixel.
	frameSize := s.width * s.height * 2

	go func(done chan struct{}) {
		defer close(done)
		var seq uint64
		buf := make([]byte, frameSize)
		for {
			if ctx.Err() != nil {
				return
			}
			// Bounded reads keep shutdown responsive; device nodes
			// support poll so deadlines work here.
			_ = f.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
			n, err := f.Read(buf)
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if err != nil {
				s.PostError(source.DomainStream, source.CodeFailed, "Device read failed", err.Error())
				return
			}
			seq++
			data := make([]byte, n)
			copy(data, buf[:n])
			s.Pad().Push(media.Frame{
				Seq:       seq,
				Timestamp: time.Now(),
				Width:     s.width,
				Height:    s.height,
				Data:      data,
				Source:    s.Name(),
				TraceID:   media.NewTraceID(),
			})
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
	s.close()
}
