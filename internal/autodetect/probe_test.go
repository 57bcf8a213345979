package autodetect

import (
	"context"
	"testing"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

func TestPrettyName(t *testing.T) {
	tests := []struct {
		owner    string
		provider string
		want     string
	}{
		{"autovideosrc0", "v4l2src", "autovideosrc0-actual-src-v4l2"},
		{"autovideosrc0", "rtspsrc", "autovideosrc0-actual-src-rtsp"},
		{"auto1", "gstv4l2src", "auto1-actual-src-v4l2"},
		{"auto1", "weirdname", "auto1-actual-src-weirdname"},
	}
	for _, tt := range tests {
		if got := prettyName(tt.owner, tt.provider); got != tt.want {
			t.Errorf("prettyName(%q, %q) = %q, want %q", tt.owner, tt.provider, got, tt.want)
		}
	}
}

func TestProbeSuccessDetachesBus(t *testing.T) {
	reg := provider.NewRegistry()
	sp := registerStub(t, reg, "goodsrc", provider.RankPrimary, caps.DefaultRaw(), nil)
	d, _ := reg.Lookup("goodsrc")

	sel := &Selector{Registry: reg, Owner: "auto0"}
	res := sel.probe(context.Background(), d)
	if !res.success() {
		t.Fatal("expected success")
	}

	// The private probe bus must be gone: post-probe messages vanish
	// instead of accumulating in a queue nobody drains.
	inst := sp.instances[0]
	inst.PostError(source.DomainStream, source.CodeFailed, "later failure", "")
	if inst.State() != source.StateReady {
		t.Errorf("state = %v, want ready", inst.State())
	}
}

func TestProbeFailureCollectsErrorsInOrder(t *testing.T) {
	reg := provider.NewRegistry()
	sp := registerStub(t, reg, "badsrc", provider.RankPrimary, caps.DefaultRaw(), []source.Message{
		probeError("badsrc", "one"),
		{Severity: source.SeverityWarning, Text: "ignored warning"},
		probeError("badsrc", "two"),
	})
	d, _ := reg.Lookup("badsrc")

	sel := &Selector{Registry: reg, Owner: "auto0"}
	res := sel.probe(context.Background(), d)
	if res.success() {
		t.Fatal("expected failure")
	}

	// Warnings are filtered out; errors keep their arrival order.
	if len(res.events) != 2 || res.events[0].Text != "one" || res.events[1].Text != "two" {
		t.Errorf("events = %v", res.events)
	}
	if !sp.instances[0].released {
		t.Error("failed instance was not released")
	}
}

func TestProbeMergesDefaultsWithOverrides(t *testing.T) {
	reg := provider.NewRegistry()
	var got map[string]string
	reg.Register(provider.Descriptor{
		Name:     "cfgsrc",
		Class:    []string{provider.ClassSource, provider.ClassVideo},
		Rank:     provider.RankMarginal,
		Defaults: func() map[string]string { return map[string]string{"fps": "15", "width": "640"} },
		New: func(_ context.Context, name string, cfg map[string]string) (source.Source, error) {
			got = cfg
			return &stubSource{Base: source.NewBase(name, caps.DefaultRaw())}, nil
		},
	})
	d, _ := reg.Lookup("cfgsrc")

	sel := &Selector{
		Registry: reg,
		Owner:    "auto0",
		Configs:  map[string]map[string]string{"cfgsrc": {"fps": "30"}},
	}
	if res := sel.probe(context.Background(), d); !res.success() {
		t.Fatal("expected success")
	}
	if got["fps"] != "30" || got["width"] != "640" {
		t.Errorf("config = %v, want override fps=30 with default width", got)
	}
}

func TestProbeCapsCheckSkipsBus(t *testing.T) {
	reg := provider.NewRegistry()
	sp := registerStub(t, reg, "rtpsrc", provider.RankSecondary, caps.New("application/x-rtp"),
		[]source.Message{probeError("rtpsrc", "never probed")})
	d, _ := reg.Lookup("rtpsrc")

	sel := &Selector{Registry: reg, Owner: "auto0", FilterCaps: caps.DefaultRaw()}
	res := sel.probe(context.Background(), d)
	if res.success() {
		t.Fatal("expected failure")
	}
	if len(res.events) != 0 {
		t.Errorf("incompatible candidate must carry no events, got %v", res.events)
	}
	if !sp.instances[0].released {
		t.Error("incompatible instance was not released")
	}
}
