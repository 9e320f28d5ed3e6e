package queue

import (
	"fmt"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/trackselect"
)

// HolderID identifies a holder in the queue arena. Zero means no holder.
type HolderID uint64

// Holder is one media period of the queue together with its track selection and the streams it
// feeds to the renderers.
type Holder struct {
	ID       HolderID
	Period   source.MediaPeriod
	UID      string
	Info     PeriodInfo
	Prepared bool
	// HasEnabledTracks is set when a renderer other than a no-sample one reads from the period.
	HasEnabledTracks bool
	TrackGroups      []source.TrackGroup
	Result           *trackselect.Result
	// Streams holds one stream per renderer, nil for disabled renderers.
	Streams []source.SampleStream

	next         HolderID
	capabilities []trackselect.Capabilities
	selector     trackselect.Selector
	mediaSource  source.MediaSource
	periodResult *trackselect.Result
	offsetUs     int64
	mayRetain    []bool
}

func newHolder(
	id HolderID,
	capabilities []trackselect.Capabilities,
	offsetUs int64,
	selector trackselect.Selector,
	allocator source.Allocator,
	mediaSource source.MediaSource,
	info PeriodInfo,
) (*Holder, error) {
	period, err := mediaSource.CreatePeriod(info.ID, allocator)
	if err != nil {
		return nil, fmt.Errorf("create period %s: %w", info.ID, err)
	}
	return &Holder{
		ID:           id,
		Period:       period,
		UID:          info.ID.PeriodUID,
		Info:         info,
		Streams:      make([]source.SampleStream, len(capabilities)),
		capabilities: capabilities,
		selector:     selector,
		mediaSource:  mediaSource,
		offsetUs:     offsetUs,
		mayRetain:    make([]bool, len(capabilities)),
	}, nil
}

// RendererOffsetUs is added to period time to get renderer time.
func (h *Holder) RendererOffsetUs() int64 { return h.offsetUs }

// ToRendererTime converts period time to renderer time.
func (h *Holder) ToRendererTime(periodTimeUs int64) int64 { return periodTimeUs + h.offsetUs }

// ToPeriodTime converts renderer time to period time.
func (h *Holder) ToPeriodTime(rendererTimeUs int64) int64 { return rendererTimeUs - h.offsetUs }

// StartPositionRendererTime returns the start position in renderer time.
func (h *Holder) StartPositionRendererTime() int64 {
	return h.Info.StartPositionUs + h.offsetUs
}

// IsFullyBuffered reports whether the period has loaded all of its media.
func (h *Holder) IsFullyBuffered() bool {
	return h.Prepared && (!h.HasEnabledTracks || h.Period.BufferedPositionUs() == constant.TimeEndOfSource)
}

// BufferedPositionUs returns the buffered position in period time. A fully buffered period
// reports its duration.
func (h *Holder) BufferedPositionUs() int64 {
	if !h.Prepared {
		return h.Info.StartPositionUs
	}
	bufferedUs := constant.TimeEndOfSource
	if h.HasEnabledTracks {
		bufferedUs = h.Period.BufferedPositionUs()
	}
	if bufferedUs == constant.TimeEndOfSource {
		return h.Info.DurationUs
	}
	return bufferedUs
}

// NextLoadPositionUs returns the position of the next load in period time, or constant.TimeEndOfSource.
func (h *Holder) NextLoadPositionUs() int64 {
	if !h.Prepared {
		return 0
	}
	return h.Period.NextLoadPositionUs()
}

// HandlePrepared selects tracks once the period is prepared and moves the start position to
// where the period can actually start reading.
func (h *Holder) HandlePrepared(speed float64) error {
	h.Prepared = true
	h.TrackGroups = h.Period.TrackGroups()
	if _, err := h.SelectTracks(speed); err != nil {
		return err
	}
	startUs := h.ApplyTrackSelection(h.Info.StartPositionUs, false, nil)
	h.offsetUs += h.Info.StartPositionUs - startUs
	h.Info = h.Info.WithStartPositionUs(startUs)
	return nil
}

// ReevaluateBuffer lets the period discard buffered media it no longer wants.
func (h *Holder) ReevaluateBuffer(rendererPositionUs int64) {
	if h.Prepared {
		h.Period.ReevaluateBuffer(h.ToPeriodTime(rendererPositionUs))
	}
}

// ContinueLoading asks the period to load more.
func (h *Holder) ContinueLoading(rendererPositionUs int64) {
	h.Period.ContinueLoading(h.ToPeriodTime(rendererPositionUs))
}

// SelectTracks runs the selector and reports whether the result differs from the applied one.
func (h *Holder) SelectTracks(speed float64) (bool, error) {
	result, err := h.selector.SelectTracks(h.capabilities, h.TrackGroups)
	if err != nil {
		return false, fmt.Errorf("select tracks of %s: %w", h.Info.ID, err)
	}
	if result.IsEquivalent(h.periodResult) {
		return false, nil
	}
	h.Result = result
	for _, selection := range result.Selections {
		if selection != nil {
			selection.OnPlaybackSpeed(speed)
		}
	}
	return true, nil
}

// ApplyTrackSelection applies Result to the period and returns the position from which samples
// will be read. streamResetFlags, if not nil, is set for every renderer whose stream was recreated.
func (h *Holder) ApplyTrackSelection(positionUs int64, forceRecreateStreams bool, streamResetFlags []bool) int64 {
	if streamResetFlags == nil {
		streamResetFlags = make([]bool, len(h.capabilities))
	}
	for i := range h.mayRetain {
		h.mayRetain[i] = !forceRecreateStreams && h.Result.IsEquivalentAt(h.periodResult, i)
	}

	h.disassociateNoSampleStreams()
	h.periodResult = h.Result
	h.selector.OnSelectionActivated(h.Result.Info)
	positionUs = h.Period.SelectTracks(h.Result.Selections, h.mayRetain, h.Streams, streamResetFlags, positionUs)
	h.associateNoSampleStreams()

	h.HasEnabledTracks = false
	for i, stream := range h.Streams {
		if stream != nil && h.capabilities[i].TrackType() != constant.TrackTypeNone {
			h.HasEnabledTracks = true
		}
	}
	return positionUs
}

func (h *Holder) release() {
	h.periodResult = nil
	h.mediaSource.ReleasePeriod(h.Period)
}

// No-sample renderers read an empty stream while enabled; the period itself never sees them.
func (h *Holder) associateNoSampleStreams() {
	for i, c := range h.capabilities {
		if c.TrackType() == constant.TrackTypeNone && h.Result.IsRendererEnabled(i) {
			h.Streams[i] = source.EmptySampleStream{}
		}
	}
}

func (h *Holder) disassociateNoSampleStreams() {
	for i, c := range h.capabilities {
		if c.TrackType() == constant.TrackTypeNone {
			h.Streams[i] = nil
		}
	}
}
