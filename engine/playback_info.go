package engine

import (
	"sync/atomic"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
)

var generations atomic.Uint64

// PlaybackInfo is a snapshot of the playback state. Values are never modified after they are
// published; the With methods return copies.
type PlaybackInfo struct {
	Timeline *timeline.Timeline
	Manifest any
	PeriodID source.MediaPeriodID
	// StartPositionUs is where playback of PeriodID started, in period time.
	StartPositionUs int64
	// ContentPositionUs is where content resumes after the ad PeriodID, or constant.TimeUnset.
	ContentPositionUs   int64
	State               State
	IsLoading           bool
	TrackGroups         []source.TrackGroup
	TrackSelectorResult *trackselect.Result
	LoadingPeriodID     source.MediaPeriodID
	// BufferedPositionUs is the buffered position in the loading period.
	BufferedPositionUs int64
	// TotalBufferedDurationUs is the media buffered ahead of PositionUs across all periods.
	TotalBufferedDurationUs int64
	PositionUs              int64

	// generation changes whenever a field other than the positions changes.
	generation uint64
}

func dummyPlaybackInfo(startPositionUs int64, empty *trackselect.Result) PlaybackInfo {
	return PlaybackInfo{
		Timeline:            timeline.Empty,
		PeriodID:            source.DummyID,
		StartPositionUs:     startPositionUs,
		ContentPositionUs:   constant.TimeUnset,
		State:               StateIdle,
		TrackSelectorResult: empty,
		LoadingPeriodID:     source.DummyID,
		BufferedPositionUs:  startPositionUs,
		PositionUs:          startPositionUs,
		generation:          generations.Add(1),
	}
}

// DummyFirstPeriodID returns the id of the first period of the timeline, without ad or window
// sequence information, or source.DummyID for an empty timeline.
func (p PlaybackInfo) DummyFirstPeriodID(shuffle bool) source.MediaPeriodID {
	if p.Timeline.IsEmpty() {
		return source.DummyID
	}
	w := p.Timeline.Window(p.Timeline.FirstWindowIndex(shuffle))
	return source.NewContentID(p.Timeline.UIDOfPeriod(w.FirstPeriodIndex), -1, constant.TimeUnset)
}

func (p PlaybackInfo) next() PlaybackInfo {
	p.generation = generations.Add(1)
	return p
}

// WithNewPosition moves playback to positionUs of id.
func (p PlaybackInfo) WithNewPosition(id source.MediaPeriodID, positionUs, contentPositionUs, totalBufferedDurationUs int64) PlaybackInfo {
	p.PeriodID = id
	p.StartPositionUs = positionUs
	p.PositionUs = positionUs
	p.ContentPositionUs = constant.TimeUnset
	if id.IsAd() {
		p.ContentPositionUs = contentPositionUs
	}
	p.TotalBufferedDurationUs = totalBufferedDurationUs
	return p.next()
}

// ResetToNewPosition is WithNewPosition for a period that is also the loading one, with
// nothing buffered yet.
func (p PlaybackInfo) ResetToNewPosition(id source.MediaPeriodID, startPositionUs, contentPositionUs int64) PlaybackInfo {
	p = p.WithNewPosition(id, startPositionUs, contentPositionUs, 0)
	p.LoadingPeriodID = id
	p.BufferedPositionUs = startPositionUs
	return p
}

func (p PlaybackInfo) WithTimeline(tl *timeline.Timeline, manifest any) PlaybackInfo {
	p.Timeline = tl
	p.Manifest = manifest
	return p.next()
}

func (p PlaybackInfo) WithState(state State) PlaybackInfo {
	p.State = state
	return p.next()
}

func (p PlaybackInfo) WithIsLoading(loading bool) PlaybackInfo {
	p.IsLoading = loading
	return p.next()
}

func (p PlaybackInfo) WithTrackInfo(groups []source.TrackGroup, result *trackselect.Result) PlaybackInfo {
	p.TrackGroups = groups
	p.TrackSelectorResult = result
	return p.next()
}

func (p PlaybackInfo) WithLoadingPeriodID(id source.MediaPeriodID) PlaybackInfo {
	p.LoadingPeriodID = id
	return p.next()
}

// IsPlayingAd reports whether the current period is an ad.
func (p PlaybackInfo) IsPlayingAd() bool {
	return p.PeriodID.IsAd()
}

// infoUpdate accumulates what happened since the last published PlaybackInfo.
type infoUpdate struct {
	lastGeneration uint64
	acks           int
	discontinuity  bool
	reason         DiscontinuityReason
}

func (u *infoUpdate) pending(info PlaybackInfo) bool {
	return info.generation != u.lastGeneration || u.acks > 0 || u.discontinuity
}

func (u *infoUpdate) reset(info PlaybackInfo) {
	u.lastGeneration = info.generation
	u.acks = 0
	u.discontinuity = false
}

func (u *infoUpdate) incrementAcks(n int) {
	u.acks += n
}

// setDiscontinuity records reason. A reason other than DiscontinuityInternal is never replaced.
func (u *infoUpdate) setDiscontinuity(reason DiscontinuityReason) {
	if u.discontinuity && u.reason != DiscontinuityInternal {
		return
	}
	u.discontinuity = true
	u.reason = reason
}
