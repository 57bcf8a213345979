package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

func writeFrames(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0, 0, 0}, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newSource(t *testing.T, cfg map[string]string) *Source {
	t.Helper()
	s, err := NewFactory(context.Background(), "filesrc0", provider.MergeConfig(Defaults(), cfg))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	return s.(*Source)
}

func TestReadyScansFrames(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "002.rgb", "001.rgb", "notes.txt")

	s := newSource(t, map[string]string{KeyPath: dir})
	if err := s.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("ready: %v", err)
	}
	defer s.Release()

	if len(s.frames) != 2 {
		t.Fatalf("frames = %v", s.frames)
	}
	if filepath.Base(s.frames[0]) != "001.rgb" {
		t.Errorf("frames not sorted: %v", s.frames)
	}
}

func TestReadyFailsOnMissingDirectory(t *testing.T) {
	s := newSource(t, map[string]string{KeyPath: filepath.Join(t.TempDir(), "nope")})
	bus := source.NewBus()
	s.SetBus(bus)

	if err := s.SetState(context.Background(), source.StateReady); err == nil {
		t.Fatal("expected error")
	}
	msgs := bus.Drain()
	if len(msgs) != 1 || msgs[0].Code != source.CodeNotFound {
		t.Errorf("msgs = %v, want one not-found error", msgs)
	}
	if s.State() != source.StateNull {
		t.Errorf("state = %v, want null", s.State())
	}
}

func TestReadyFailsOnEmptyDirectory(t *testing.T) {
	s := newSource(t, map[string]string{KeyPath: t.TempDir()})
	if err := s.SetState(context.Background(), source.StateReady); err == nil {
		t.Fatal("expected error for directory without frames")
	}
}

func TestPlayingDeliversFrames(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "001.rgb", "002.rgb")

	s := newSource(t, map[string]string{KeyPath: dir, KeyFPS: "200"})
	if err := s.SetState(context.Background(), source.StatePlaying); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer func() {
		_ = s.SetState(context.Background(), source.StateNull)
		s.Release()
	}()

	f := <-s.Pad().Frames()
	if f.Source != "filesrc0" || len(f.Data) != 3 {
		t.Errorf("frame = %+v", f)
	}
	if f.TraceID == "" {
		t.Error("frame missing trace id")
	}
}

func TestFactoryValidation(t *testing.T) {
	_, err := NewFactory(context.Background(), "filesrc0", map[string]string{KeyPath: "x", KeyFPS: "fast"})
	var cerr *provider.ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("err = %v, want ConfigError", err)
	}

	if _, err := NewFactory(context.Background(), "filesrc0", map[string]string{}); err == nil {
		t.Error("expected error for empty path")
	}
}
