package trackselect

import (
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
)

// InvalidationListener is told when previous selections are no longer valid.
type InvalidationListener interface {
	OnTrackSelectionsInvalidated()
}

// Capabilities is what a selector needs to know about a renderer.
type Capabilities interface {
	TrackType() int
	SupportsFormat(format source.Format) renderer.FormatSupport
}

// Selector produces a Result for the track groups of a period.
type Selector interface {
	// Init is called once by the engine before any selection.
	Init(listener InvalidationListener)
	SelectTracks(renderers []Capabilities, groups []source.TrackGroup) (*Result, error)
	// OnSelectionActivated is called when the Info of a result takes effect.
	OnSelectionActivated(info any)
}

// BandwidthMeter estimates the available bandwidth.
type BandwidthMeter interface {
	// BitrateEstimate returns bits per second, or zero when unknown.
	BitrateEstimate() int64
}
