// Package autodetect selects the best available video source provider at
// runtime.
//
// A detection pass filters the provider registry by capability class and
// autoplugging rank, orders the candidates deterministically, and probes
// them one at a time until one reaches StateReady. Probing is strictly
// sequential: hardware-backed candidates may hold exclusive device
// access, and short-circuiting on the first success must leave untried
// candidates untouched. When every candidate fails, an inert placeholder
// source is installed instead and the first recorded error (or a
// not-found warning) is surfaced with it.
package autodetect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/visiona/autovideo/internal/caps"
	"github.com/visiona/autovideo/internal/observability"
	"github.com/visiona/autovideo/internal/provider"
	"github.com/visiona/autovideo/internal/rules"
	"github.com/visiona/autovideo/internal/source"
)

// FallbackProvider names the placeholder provider constructed when no
// real candidate succeeds. It is registered with RankNone so the
// candidate filter never selects it on its own.
const FallbackProvider = "fakesrc"

// FallbackName is the instance name of the placeholder source.
const FallbackName = "fake-video-src"

// classVideoSource is the capability class candidates must carry.
var classVideoSource = []string{provider.ClassSource, provider.ClassVideo}

// Outcome is the result of one detection pass. Source is always usable:
// either the first candidate that probed successfully, or the fallback
// placeholder (UsedFallback true). Diagnostic carries the first recorded
// probe error, or a not-found warning when no real failure occurred; it
// is nil when a real candidate was chosen.
type Outcome struct {
	Source          source.Source
	UsedFallback    bool
	Diagnostic      *source.Message
	CandidatesTried int
}

// Selector runs detection passes against a provider registry.
//
// A Selector holds no state across calls; each Select runs to completion
// synchronously and every instance it creates is either returned in the
// Outcome or fully torn down before returning.
type Selector struct {
	// Registry is the provider view to search. Defaults to provider.Default.
	Registry *provider.Registry
	// Owner names the enclosing element, used to derive instance names.
	Owner string
	// FilterCaps constrains candidates to those whose advertised caps
	// intersect it. Nil accepts every candidate.
	FilterCaps *caps.Caps
	// Constraint optionally narrows the candidate list further.
	Constraint *rules.Constraint
	// Configs carries per-provider configuration, keyed by provider name.
	Configs map[string]map[string]string
	// Metrics records probe attempts when set.
	Metrics *observability.Metrics
}

// Select runs one detection pass.
//
// Candidates are tried exactly once each, in rank order, stopping at the
// first success. All intermediate failures are absorbed; the only error
// Select itself returns is a failure to bring up the fallback
// placeholder, which leaves no usable source at all.
func (s *Selector) Select(ctx context.Context) (*Outcome, error) {
	reg := s.Registry
	if reg == nil {
		reg = provider.Default
	}

	candidates := reg.Filter(classVideoSource, provider.RankMarginal)
	if s.Constraint != nil {
		kept := candidates[:0]
		for _, d := range candidates {
			if s.Constraint.Match(d) {
				kept = append(kept, d)
			}
		}
		candidates = kept
	}
	SortCandidates(candidates)

	slog.DebugContext(ctx, "trying to find usable video devices", "candidates", len(candidates))

	var errs []source.Message
	tried := 0
	for _, d := range candidates {
		res := s.probe(ctx, d)
		tried++

		if res.success() {
			s.Metrics.RecordProbe(d.Name, observability.ProbeResultOK)
			slog.InfoContext(ctx, "video source selected",
				"provider", d.Name, "instance", res.src.Name(), "rank", d.Rank)
			return &Outcome{Source: res.src, CandidatesTried: tried}, nil
		}

		if len(res.events) == 0 {
			// Incompatible or unconstructible, not a real failure.
			s.Metrics.RecordProbe(d.Name, observability.ProbeResultIncompatible)
			continue
		}

		s.Metrics.RecordProbe(d.Name, observability.ProbeResultError)
		errs = append(errs, res.events...)
	}

	slog.DebugContext(ctx, "done trying", "tried", tried, "errors", len(errs))

	diag := s.fallbackDiagnostic(errs)
	fb, err := s.newFallback(ctx, reg)
	if err != nil {
		return nil, err
	}

	slog.WarnContext(ctx, "no usable video source, using fallback", "diagnostic", diag.String())
	return &Outcome{
		Source:          fb,
		UsedFallback:    true,
		Diagnostic:      &diag,
		CandidatesTried: tried,
	}, nil
}

// fallbackDiagnostic picks the message surfaced alongside the fallback:
// the first recorded error verbatim, or a not-found warning when every
// candidate was merely incompatible or none existed. Reposting only the
// first error mirrors the established policy; smarter aggregation is a
// possible future improvement.
func (s *Selector) fallbackDiagnostic(errs []source.Message) source.Message {
	if len(errs) > 0 {
		return errs[0]
	}
	return source.Message{
		Severity: source.SeverityWarning,
		Domain:   source.DomainResource,
		Code:     source.CodeNotFound,
		Source:   s.Owner,
		Text:     "Failed to find a usable video source",
	}
}

// newFallback constructs the placeholder source and brings it to
// StateReady. Failure here is fatal to the whole pass: there is nothing
// left to fall back to.
func (s *Selector) newFallback(ctx context.Context, reg *provider.Registry) (source.Source, error) {
	d, ok := reg.Lookup(FallbackProvider)
	if !ok {
		return nil, fmt.Errorf("fallback provider %q not registered", FallbackProvider)
	}

	var cfg map[string]string
	if d.Defaults != nil {
		cfg = d.Defaults()
	}

	fb, err := d.New(ctx, FallbackName, cfg)
	if err != nil {
		return nil, fmt.Errorf("create fallback source: %w", err)
	}

	if sy, ok := fb.(source.Syncer); ok {
		sy.SetSync(true)
	}

	if err := fb.SetState(ctx, source.StateReady); err != nil {
		fb.Release()
		return nil, fmt.Errorf("fallback source failed to reach ready: %w", err)
	}
	return fb, nil
}

// SortCandidates orders descriptors by rank descending, breaking ties by
// name descending byte-wise. The order is a total order, so sorting is
// deterministic and idempotent across runs.
func SortCandidates(ds []provider.Descriptor) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Rank != ds[j].Rank {
			return ds[i].Rank > ds[j].Rank
		}
		return ds[i].Name > ds[j].Name
	})
}
