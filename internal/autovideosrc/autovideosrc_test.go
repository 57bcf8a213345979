package autovideosrc

import (
	"context"
	"errors"
	"testing"

	"github.com/visiona/autovideo/internal/autodetect"
	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/media"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

type stubSource struct {
	*source.Base
	failReady bool
	released  bool
	synced    bool
}

func (s *stubSource) SetState(ctx context.Context, target source.State) error {
	return s.Transition(ctx, target, func(_ context.Context, from, to source.State) error {
		if from == source.StateNull && to == source.StateReady && s.failReady {
			s.PostError(source.DomainResource, source.CodeOpenRead, "no device", "")
			return errors.New("probe failed")
		}
		return nil
	})
}

func (s *stubSource) SetSync(enable bool) { s.synced = enable }

func (s *stubSource) Release() { s.released = true }

type stubProvider struct {
	constructed int
	instances   []*stubSource
}

func registerStub(t *testing.T, reg *provider.Registry, name string, rank provider.Rank, c *caps.Caps, failReady bool) *stubProvider {
	t.Helper()

	sp := &stubProvider{}
	reg.Register(provider.Descriptor{
		Name:  name,
		Class: []string{provider.ClassSource, provider.ClassVideo},
		Rank:  rank,
		New: func(_ context.Context, instName string, _ map[string]string) (source.Source, error) {
			sp.constructed++
			inst := &stubSource{Base: source.NewBase(instName, c), failReady: failReady}
			sp.instances = append(sp.instances, inst)
			return inst, nil
		},
	})
	return sp
}

// newTestRegistry returns a registry holding only the placeholder
// provider; tests add candidates on top.
func newTestRegistry(t *testing.T) (*provider.Registry, *stubProvider) {
	t.Helper()
	reg := provider.NewRegistry()
	fb := &stubProvider{}
	reg.Register(provider.Descriptor{
		Name:  autodetect.FallbackProvider,
		Class: []string{provider.ClassSource, provider.ClassVideo},
		Rank:  provider.RankNone,
		New: func(_ context.Context, instName string, _ map[string]string) (source.Source, error) {
			fb.constructed++
			inst := &stubSource{Base: source.NewBase(instName, caps.New())}
			fb.instances = append(fb.instances, inst)
			return inst, nil
		},
	})
	return reg, fb
}

func TestNewInstallsPlaceholder(t *testing.T) {
	reg, fb := newTestRegistry(t)
	src := New("auto0", WithRegistry(reg))

	if src.State() != source.StateNull {
		t.Errorf("state = %v, want null", src.State())
	}
	if fb.constructed != 1 {
		t.Fatalf("placeholder constructed %d times, want 1", fb.constructed)
	}
	if got := fb.instances[0].Name(); got != "tempsrc" {
		t.Errorf("placeholder name = %q, want tempsrc", got)
	}

	// The ghost pad forwards to the placeholder even before activation.
	if !src.Pad().Push(media.Frame{Seq: 1}) {
		t.Error("ghost pad has no live target")
	}
}

func TestSetFilterCapsOnlyWhileInactive(t *testing.T) {
	reg, _ := newTestRegistry(t)
	registerStub(t, reg, "camsrc", provider.RankPrimary, caps.DefaultRaw(), false)
	src := New("auto0", WithRegistry(reg))

	if err := src.SetFilterCaps(caps.NewAny()); err != nil {
		t.Fatalf("set filter while null: %v", err)
	}

	if err := src.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := src.SetFilterCaps(nil); !errors.Is(err, ErrActive) {
		t.Errorf("err = %v, want ErrActive", err)
	}

	if err := src.SetState(context.Background(), source.StateNull); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := src.SetFilterCaps(nil); err != nil {
		t.Errorf("set filter after deactivation: %v", err)
	}
	if src.FilterCaps() != nil {
		t.Error("nil filter not stored")
	}
}

func TestActivationSelectsAndRetargets(t *testing.T) {
	reg, _ := newTestRegistry(t)
	cam := registerStub(t, reg, "camsrc", provider.RankPrimary, caps.DefaultRaw(), false)
	src := New("auto0", WithRegistry(reg))

	if err := src.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("activate: %v", err)
	}

	out := src.Outcome()
	if out == nil || out.UsedFallback {
		t.Fatalf("outcome = %+v", out)
	}
	if cam.constructed != 1 {
		t.Fatalf("candidate constructed %d times", cam.constructed)
	}
	chosen := cam.instances[0]
	if out.Source != chosen {
		t.Error("outcome source mismatch")
	}

	// Frames pushed by the chosen child surface on the composite pad.
	chosen.Pad().Push(media.Frame{Seq: 42})
	f := <-src.Pad().Frames()
	if f.Seq != 42 {
		t.Errorf("Seq = %d, want 42", f.Seq)
	}

	// Walking further up must not run another detection pass.
	if err := src.SetState(context.Background(), source.StatePlaying); err != nil {
		t.Fatalf("play: %v", err)
	}
	if cam.constructed != 1 {
		t.Errorf("detection ran again: constructed = %d", cam.constructed)
	}
	if chosen.State() != source.StatePlaying {
		t.Errorf("child state = %v, want playing", chosen.State())
	}
}

func TestDeactivationResetsToPlaceholder(t *testing.T) {
	reg, fb := newTestRegistry(t)
	cam := registerStub(t, reg, "camsrc", provider.RankPrimary, caps.DefaultRaw(), false)
	src := New("auto0", WithRegistry(reg))

	if err := src.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := src.SetState(context.Background(), source.StateNull); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if !cam.instances[0].released {
		t.Error("chosen child not released on deactivation")
	}
	// One placeholder from construction, one from the reset.
	if fb.constructed != 2 {
		t.Errorf("placeholder constructed %d times, want 2", fb.constructed)
	}
	if src.Pad().Target() != fb.instances[1].Pad() {
		t.Error("ghost pad does not point at the fresh placeholder")
	}

	// Reactivation runs a new pass.
	if err := src.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if cam.constructed != 2 {
		t.Errorf("expected a second detection pass, constructed = %d", cam.constructed)
	}
}

func TestFallbackDiagnosticPostedToBus(t *testing.T) {
	reg, fb := newTestRegistry(t)
	registerStub(t, reg, "camsrc", provider.RankPrimary, caps.DefaultRaw(), true)
	src := New("auto0", WithRegistry(reg))

	bus := source.NewBus()
	src.SetBus(bus)

	if err := src.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("activate: %v", err)
	}

	out := src.Outcome()
	if !out.UsedFallback {
		t.Fatal("expected fallback")
	}
	if !fb.instances[len(fb.instances)-1].synced {
		t.Error("fallback not switched to sync mode")
	}

	msgs := bus.Drain()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 bus message, got %d", len(msgs))
	}
	if msgs[0].Severity != source.SeverityError || msgs[0].Text != "no device" {
		t.Errorf("diagnostic = %v, want the probe error verbatim", msgs[0])
	}
}

func TestCapsReflectChild(t *testing.T) {
	reg, _ := newTestRegistry(t)
	registerStub(t, reg, "camsrc", provider.RankPrimary, caps.New("video/x-raw-yuv"), false)
	src := New("auto0", WithRegistry(reg))

	// Before activation only the placeholder exists: ANY.
	c, err := src.Caps(context.Background())
	if err != nil || !c.IsAny() {
		t.Errorf("pre-activation caps = %v, %v", c, err)
	}

	if err := src.SetState(context.Background(), source.StateReady); err != nil {
		t.Fatalf("activate: %v", err)
	}
	c, err = src.Caps(context.Background())
	if err != nil {
		t.Fatalf("caps: %v", err)
	}
	if c.IsAny() || len(c.Structures()) != 1 || c.Structures()[0].MediaType != "video/x-raw-yuv" {
		t.Errorf("caps = %v, want the child's caps", c)
	}
}

func TestActivationFailsWithoutFallback(t *testing.T) {
	reg := provider.NewRegistry()
	src := New("auto0", WithRegistry(reg))

	if err := src.SetState(context.Background(), source.StateReady); err == nil {
		t.Fatal("expected activation to fail with no fallback registered")
	}
	if src.State() != source.StateNull {
		t.Errorf("state = %v, want null after failed activation", src.State())
	}
}
