package testpattern

import (
	"context"
	"testing"

	"github.com/visiona/autovideo/internal/source"
)

func TestAlwaysReachesReady(t *testing.T) {
	s, err := NewFactory(context.Background(), "testsrc0", Defaults())
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if err := s.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("ready: %v", err)
	}
	s.Release()
}

func TestPlayingEmitsColorBars(t *testing.T) {
	s, err := NewFactory(context.Background(), "testsrc0", map[string]string{
		KeyWidth: "64", KeyHeight: "8", KeyFPS: "200",
	})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if err := s.SetState(context.Background(), source.StatePlaying); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer func() {
		_ = s.SetState(context.Background(), source.StateNull)
		s.Release()
	}()

	f := <-s.Pad().Frames()
	if f.Width != 64 || f.Height != 8 {
		t.Errorf("dimensions = %dx%d", f.Width, f.Height)
	}
	if len(f.Data) != 64*8*3 {
		t.Fatalf("len(Data) = %d", len(f.Data))
	}
	// First column is white, last is black.
	if f.Data[0] != 255 || f.Data[1] != 255 || f.Data[2] != 255 {
		t.Errorf("first pixel = %v, want white", f.Data[:3])
	}
	last := (64 - 1) * 3
	if f.Data[last] != 0 || f.Data[last+1] != 0 || f.Data[last+2] != 0 {
		t.Errorf("last pixel = %v, want black", f.Data[last:last+3])
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s, err := NewFactory(context.Background(), "testsrc0", Defaults())
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if err := s.SetState(context.Background(), source.StatePlaying); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := s.SetState(context.Background(), source.StateNull); err != nil {
		t.Fatalf("stop: %v", err)
	}
	s.Release()
	s.Release()
}

func TestFactoryValidation(t *testing.T) {
	bad := []map[string]string{
		{KeyWidth: "0", KeyHeight: "480", KeyFPS: "15"},
		{KeyWidth: "640", KeyHeight: "480", KeyFPS: "-1"},
		{KeyWidth: "many", KeyHeight: "480", KeyFPS: "15"},
	}
	for _, cfg := range bad {
		if _, err := NewFactory(context.Background(), "testsrc0", cfg); err == nil {
			t.Errorf("config %v: expected error", cfg)
		}
	}
}
