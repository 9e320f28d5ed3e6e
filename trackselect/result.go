// Package trackselect decides which track of which group each renderer plays.
package trackselect

import (
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
	"golang.org/x/exp/slices"
)

// Result is the outcome of a selection, with one entry per renderer. A nil configuration
// disables the renderer; an enabled renderer may still have a nil selection if it reads no samples.
type Result struct {
	Configurations []*renderer.Configuration
	Selections     []source.TrackSelection
	Info           any
}

// EmptyResult returns a result that disables n renderers.
func EmptyResult(n int) *Result {
	return &Result{
		Configurations: make([]*renderer.Configuration, n),
		Selections:     make([]source.TrackSelection, n),
	}
}

// Length returns the number of renderers covered.
func (r *Result) Length() int {
	return len(r.Configurations)
}

// IsRendererEnabled reports whether renderer i is enabled.
func (r *Result) IsRendererEnabled(i int) bool {
	return r.Configurations[i] != nil
}

// IsEquivalent reports whether applying other instead of r would change nothing.
func (r *Result) IsEquivalent(other *Result) bool {
	if other == nil || len(other.Selections) != len(r.Selections) {
		return false
	}
	for i := range r.Selections {
		if !r.IsEquivalentAt(other, i) {
			return false
		}
	}
	return true
}

// IsEquivalentAt reports whether renderer i is set up the same way in r and other.
func (r *Result) IsEquivalentAt(other *Result, i int) bool {
	if other == nil {
		return false
	}
	a, b := r.Configurations[i], other.Configurations[i]
	if (a == nil) != (b == nil) || (a != nil && *a != *b) {
		return false
	}
	return SameSelection(r.Selections[i], other.Selections[i])
}

// SameSelection reports whether a and b select the same tracks of the same group.
func SameSelection(a, b source.TrackSelection) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !slices.Equal(a.Indices(), b.Indices()) {
		return false
	}
	ga, gb := a.Group().Formats, b.Group().Formats
	return slices.EqualFunc(ga, gb, func(x, y source.Format) bool { return x.ID == y.ID })
}
