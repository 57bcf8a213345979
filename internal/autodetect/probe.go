package autodetect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/source"
)

// probeResult is the outcome of one probe attempt. src is non-nil on
// success. A failed attempt with zero events means the candidate was
// merely incompatible with the caller's capability filter (or could not
// be constructed); it carries no diagnostic weight.
type probeResult struct {
	desc   provider.Descriptor
	src    source.Source
	events []source.Message
}

func (r probeResult) success() bool { return r.src != nil }

// prettyName derives a stable, human-legible instance name from the
// owner and the provider name: the trailing "src" marker and a leading
// "gst" namespace prefix (carried by bridged providers) are stripped, so
// "v4l2src" probed by "autovideosrc0" becomes
// "autovideosrc0-actual-src-v4l2".
func prettyName(owner, providerName string) string {
	marker := strings.TrimSuffix(providerName, "src")
	marker = strings.TrimPrefix(marker, "gst")
	return fmt.Sprintf("%s-actual-src-%s", owner, marker)
}

// probe brings one candidate to StateReady.
//
// The instance is constructed, optionally checked against the capability
// filter, wired to a private per-attempt bus, and asked to reach
// StateReady. On success the bus is detached and the live instance is
// returned. On any failure the instance is fully torn down and the
// error-severity bus messages are returned in arrival order; a failed
// instance is never left alive.
func (s *Selector) probe(ctx context.Context, d provider.Descriptor) probeResult {
	cfg := s.Configs[d.Name]
	if d.Defaults != nil {
		cfg = provider.MergeConfig(d.Defaults(), cfg)
	}

	name := prettyName(s.Owner, d.Name)
	inst, err := d.New(ctx, name, cfg)
	if err != nil || inst == nil {
		slog.DebugContext(ctx, "could not construct candidate", "provider", d.Name, "error", err)
		return probeResult{desc: d}
	}

	slog.DebugContext(ctx, "testing candidate", "provider", d.Name, "instance", name)

	if s.FilterCaps != nil {
		advertised, err := inst.Caps(ctx)
		if err != nil || !s.FilterCaps.Intersects(advertised) {
			slog.DebugContext(ctx, "incompatible caps",
				"provider", d.Name, "filter", s.FilterCaps, "advertised", advertised)
			inst.Release()
			return probeResult{desc: d}
		}
		slog.DebugContext(ctx, "found compatible caps", "provider", d.Name)
	}

	bus := source.NewBus()
	inst.SetBus(bus)

	if err := inst.SetState(ctx, source.StateReady); err == nil {
		slog.DebugContext(ctx, "candidate works", "provider", d.Name)
		inst.SetBus(nil)
		return probeResult{desc: d, src: inst}
	}

	var events []source.Message
	for _, m := range bus.Drain() {
		if m.Severity == source.SeverityError {
			slog.DebugContext(ctx, "candidate error", "provider", d.Name, "message", m.String())
			events = append(events, m)
		}
	}

	_ = inst.SetState(ctx, source.StateNull)
	inst.Release()
	return probeResult{desc: d, events: events}
}
