package source

import "github.com/cadence-media/cadence/timeline"

// Allocation is a chunk of buffer memory handed out by an Allocator.
type Allocation struct {
	Data []byte
}

// Allocator hands out buffer memory to loading periods.
type Allocator interface {
	Allocate() *Allocation
	Release(allocations ...*Allocation)
	TotalBytesAllocated() int
	IndividualAllocationLength() int
}

// SourceInfoRefreshListener receives timeline refreshes from a MediaSource.
type SourceInfoRefreshListener interface {
	OnSourceInfoRefreshed(source MediaSource, tl *timeline.Timeline, manifest any)
}

// MediaSource provides the timeline and creates its periods.
type MediaSource interface {
	// PrepareSource starts preparation. Timeline refreshes arrive on listener, possibly from another goroutine.
	PrepareSource(listener SourceInfoRefreshListener)
	// MaybeThrowSourceInfoRefreshError returns an error that prevents the timeline from being refreshed.
	MaybeThrowSourceInfoRefreshError() error
	CreatePeriod(id MediaPeriodID, allocator Allocator) (MediaPeriod, error)
	ReleasePeriod(period MediaPeriod)
	ReleaseSource(listener SourceInfoRefreshListener)
}

// PeriodCallback receives notifications from a MediaPeriod, possibly from another goroutine.
type PeriodCallback interface {
	OnPrepared(period MediaPeriod)
	OnContinueLoadingRequested(period MediaPeriod)
}

// MediaPeriod loads and exposes the media of one period.
type MediaPeriod interface {
	// Prepare starts preparation. callback.OnPrepared is invoked once tracks are known.
	Prepare(callback PeriodCallback, positionUs int64)
	// MaybeThrowPrepareError returns an error that prevents the period from being prepared.
	MaybeThrowPrepareError() error
	TrackGroups() []TrackGroup
	// SelectTracks applies selections, one per renderer. streams holds the current stream of
	// each renderer and is updated in place; streamResetFlags is set for every stream that
	// was newly created. Returns the actual position from which samples will be read.
	SelectTracks(selections []TrackSelection, mayRetainStreamFlags []bool, streams []SampleStream, streamResetFlags []bool, positionUs int64) int64
	// DiscardBuffer drops buffered media before positionUs.
	DiscardBuffer(positionUs int64, toKeyframe bool)
	// ReadDiscontinuity returns a position to jump to, or constant.TimeUnset.
	ReadDiscontinuity() int64
	// BufferedPositionUs returns the buffered position, or constant.TimeEndOfSource once fully loaded.
	BufferedPositionUs() int64
	SeekToUs(positionUs int64) int64
	AdjustedSeekPositionUs(positionUs int64, params SeekParameters) int64
	// NextLoadPositionUs returns the position of the next load, or constant.TimeEndOfSource.
	NextLoadPositionUs() int64
	// ContinueLoading asks the period to load more and reports whether it will.
	ContinueLoading(positionUs int64) bool
	ReevaluateBuffer(positionUs int64)
}
