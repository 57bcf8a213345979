// Package autovideosrc provides a composite video source that picks its
// real implementation at activation time.
//
// AutoVideoSource wraps the autodetect selector behind the normal source
// lifecycle: going from null to ready runs exactly one detection pass and
// installs the chosen child behind a ghost pad, so consumers never deal
// with the concrete provider. Deactivating swaps the child for a
// disposable placeholder immediately, never leaving the pad pointing at
// a torn-down instance.
package autovideosrc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/visiona/autovideo/internal/autodetect"
	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/observability"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/rules"
	"github.com/visiona/autovideo/internal/source"
)

// ErrActive is returned when the capability filter is changed while the
// element is not in the null state.
var ErrActive = errors.New("autovideosrc: filter caps can only be set in the null state")

// placeholderName is the instance name of the disposable child installed
// while inactive.
const placeholderName = "tempsrc"

// AutoVideoSource is a composite source wrapping an auto-detected child.
type AutoVideoSource struct {
	name     string
	registry *provider.Registry
	configs  map[string]map[string]string
	rule     *rules.Constraint
	metrics  *observability.Metrics

	mu      sync.Mutex
	state   source.State
	filter  *caps.Caps
	kid     source.Source
	pad     *source.Pad
	bus     *source.Bus
	outcome *autodetect.Outcome
}

// Option configures an AutoVideoSource.
type Option func(*AutoVideoSource)

// WithRegistry uses a registry other than provider.Default.
func WithRegistry(r *provider.Registry) Option {
	return func(s *AutoVideoSource) { s.registry = r }
}

// WithProviderConfigs supplies per-provider configuration maps.
func WithProviderConfigs(cfgs map[string]map[string]string) Option {
	return func(s *AutoVideoSource) { s.configs = cfgs }
}

// WithConstraint narrows the candidate list with a compiled rule.
func WithConstraint(c *rules.Constraint) Option {
	return func(s *AutoVideoSource) { s.rule = c }
}

// WithMetrics records detection metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *AutoVideoSource) { s.metrics = m }
}

// New creates an AutoVideoSource in the null state with the built-in raw
// video capability filter and a placeholder child.
func New(name string, opts ...Option) *AutoVideoSource {
	s := &AutoVideoSource{
		name:     name,
		registry: provider.Default,
		filter:   caps.DefaultRaw(),
		pad:      source.NewGhostPad("src"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset(context.Background())
	return s
}

// SetFilterCaps replaces the capability filter used to screen candidate
// sources. Nil removes the filter (every candidate is accepted). Only
// allowed while the element is in the null state.
func (s *AutoVideoSource) SetFilterCaps(c *caps.Caps) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != source.StateNull {
		return ErrActive
	}
	s.filter = c
	return nil
}

// FilterCaps returns the current capability filter, nil when unset.
func (s *AutoVideoSource) FilterCaps() *caps.Caps {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Outcome returns the result of the last detection pass, nil before the
// first activation.
func (s *AutoVideoSource) Outcome() *autodetect.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Name implements source.Source.
func (s *AutoVideoSource) Name() string { return s.name }

// Pad implements source.Source; the returned ghost pad stays valid across
// child swaps.
func (s *AutoVideoSource) Pad() *source.Pad { return s.pad }

// State implements source.Source.
func (s *AutoVideoSource) State() source.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetBus implements source.Source. Detection diagnostics are posted to
// the attached bus.
func (s *AutoVideoSource) SetBus(b *source.Bus) {
	s.mu.Lock()
	s.bus = b
	s.mu.Unlock()
}

// Caps implements source.Source: the advertised caps of the current
// child, or ANY when only the placeholder is installed.
func (s *AutoVideoSource) Caps(ctx context.Context) (*caps.Caps, error) {
	s.mu.Lock()
	kid := s.kid
	usedFallback := s.outcome == nil || s.outcome.UsedFallback
	s.mu.Unlock()

	if kid == nil || usedFallback {
		return caps.NewAny(), nil
	}
	return kid.Caps(ctx)
}

// Release implements source.Source.
func (s *AutoVideoSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearKid(context.Background())
}

// SetState walks the element toward target one step at a time.
//
// null->ready runs one detection pass and fails the whole transition if
// the selector cannot even construct its fallback. ready->null resets to
// the placeholder synchronously. Transitions above ready forward to the
// child.
func (s *AutoVideoSource) SetState(ctx context.Context, target source.State) error {
	for {
		s.mu.Lock()
		cur := s.state
		s.mu.Unlock()

		if cur == target {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var to source.State
		if target > cur {
			to = cur + 1
		} else {
			to = cur - 1
		}

		if err := s.step(ctx, cur, to); err != nil {
			return err
		}

		s.mu.Lock()
		s.state = to
		s.mu.Unlock()
	}
}

func (s *AutoVideoSource) step(ctx context.Context, from, to source.State) error {
	switch {
	case from == source.StateNull && to == source.StateReady:
		return s.detect(ctx)
	case from == source.StateReady && to == source.StateNull:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.reset(ctx)
		return nil
	default:
		s.mu.Lock()
		kid := s.kid
		s.mu.Unlock()
		if kid == nil {
			return nil
		}
		return kid.SetState(ctx, to)
	}
}

// detect runs one detection pass and installs the chosen child.
func (s *AutoVideoSource) detect(ctx context.Context) (err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "autodetect.select")
	defer func() { op.End(err) }()

	s.mu.Lock()
	s.clearKid(ctx)
	sel := &autodetect.Selector{
		Registry:   s.registry,
		Owner:      s.name,
		FilterCaps: s.filter,
		Constraint: s.rule,
		Configs:    s.configs,
		Metrics:    s.metrics,
	}
	s.mu.Unlock()

	outcome, err := sel.Select(ctx)
	if err != nil {
		return fmt.Errorf("autovideosrc %s: %w", s.name, err)
	}

	s.mu.Lock()
	s.kid = outcome.Source
	s.outcome = outcome
	s.pad.SetTarget(outcome.Source.Pad())
	bus := s.bus
	s.mu.Unlock()

	if bus != nil && outcome.Diagnostic != nil {
		bus.Post(*outcome.Diagnostic)
	}
	return nil
}

// clearKid tears down the current child. Caller holds s.mu.
func (s *AutoVideoSource) clearKid(ctx context.Context) {
	if s.kid == nil {
		return
	}
	if err := s.kid.SetState(ctx, source.StateNull); err != nil {
		slog.DebugContext(ctx, "child did not reach null", "child", s.kid.Name(), "error", err)
	}
	s.kid.Release()
	s.kid = nil
}

// reset replaces the child with a disposable placeholder so the ghost
// pad always has a live target. Caller holds s.mu.
func (s *AutoVideoSource) reset(ctx context.Context) {
	s.clearKid(ctx)

	d, ok := s.registry.Lookup(autodetect.FallbackProvider)
	if !ok {
		slog.WarnContext(ctx, "placeholder provider not registered", "provider", autodetect.FallbackProvider)
		return
	}

	var cfg map[string]string
	if d.Defaults != nil {
		cfg = d.Defaults()
	}
	kid, err := d.New(ctx, placeholderName, cfg)
	if err != nil {
		slog.WarnContext(ctx, "placeholder construction failed", "error", err)
		return
	}

	s.kid = kid
	s.pad.SetTarget(kid.Pad())
}
