// Package provider maintains the registry of video source providers.
//
// Providers register a descriptor via init() and are discovered at
// runtime by capability class and autoplugging rank. The registry is a
// read-only view for the selection algorithm; it never instantiates
// anything itself.
package provider

import (
	"context"

	"github.com/visiona/autovideo/internal/source"
)

// Rank is the autoplugging rank of a provider. Higher ranks are tried
// first during auto-detection.
type Rank int

const (
	// RankNone marks providers that are never auto-selected.
	RankNone Rank = 0
	// RankMarginal is the minimum rank considered during detection.
	RankMarginal Rank = 64
	// RankSecondary marks usable but non-preferred providers.
	RankSecondary Rank = 128
	// RankPrimary marks the preferred providers for a platform.
	RankPrimary Rank = 256
)

func (r Rank) String() string {
	switch {
	case r >= RankPrimary:
		return "primary"
	case r >= RankSecondary:
		return "secondary"
	case r >= RankMarginal:
		return "marginal"
	default:
		return "none"
	}
}

// Capability class tags.
const (
	ClassSource  = "Source"
	ClassVideo   = "Video"
	ClassNetwork = "Network"
	ClassDevice  = "Device"
	ClassFile    = "File"
	ClassArchive = "Archive"
	ClassDebug   = "Debug"
)

// Factory constructs a source instance with the given instance name.
// Returning (nil, err) means the provider cannot be constructed here;
// the caller decides whether that is worth reporting.
type Factory func(ctx context.Context, name string, config map[string]string) (source.Source, error)

// Descriptor describes one candidate provider. Descriptors are immutable
// once registered; the selection algorithm only reads them.
type Descriptor struct {
	// Name is the registered provider name, e.g. "v4l2src".
	Name string
	// Class is the set of capability class tags.
	Class []string
	// Rank orders candidates during auto-detection.
	Rank Rank
	// Description is a one-line human-readable summary.
	Description string
	// Defaults returns the default configuration, or nil.
	Defaults func() map[string]string
	// New constructs an instance.
	New Factory
}

// HasClass reports whether the descriptor's class set contains every tag.
func (d Descriptor) HasClass(tags ...string) bool {
	for _, want := range tags {
		found := false
		for _, have := range d.Class {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
