// Package loadcontrol decides how much media to buffer ahead of the playback position and when
// enough is buffered to start playing.
package loadcontrol

import (
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
)

// LoadControl is the buffering policy consulted by the engine.
type LoadControl interface {
	// OnPrepared is called when the engine is prepared with a source.
	OnPrepared()
	// OnTracksSelected is called when the tracks of the playing period are selected.
	OnTracksSelected(renderers []renderer.Renderer, groups []source.TrackGroup, selections []source.TrackSelection)
	// OnStopped is called when the engine stops.
	OnStopped()
	// OnReleased is called when the engine is released.
	OnReleased()
	Allocator() source.Allocator
	// BackBufferDurationUs is how much media before the playback position to keep.
	BackBufferDurationUs() int64
	// RetainBackBufferFromKeyframe tells whether the back buffer is kept from the preceding keyframe.
	RetainBackBufferFromKeyframe() bool
	ShouldContinueLoading(bufferedDurationUs int64, speed float64) bool
	ShouldStartPlayback(bufferedDurationUs int64, speed float64, rebuffering bool) bool
}
