// Package queue holds the chain of media periods the engine has buffered: the playing period at
// the front, the period renderers read from, and the period being loaded at the tail.
//
// Holders live in an arena keyed by HolderID and link forward by id. The cursors always satisfy
// playing ⊑ reading ⊑ loading along the chain, and nothing follows loading.
package queue

import (
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
	"github.com/samber/mo"
)

// MaxBufferAheadPeriods limits the number of holders in the queue.
const MaxBufferAheadPeriods = 100

// Queue is the chain of media period holders. Not safe for concurrent use.
type Queue struct {
	tl       *timeline.Timeline
	repeat   timeline.RepeatMode
	shuffle  bool
	holders  map[HolderID]*Holder
	lastID   HolderID
	playing  HolderID
	reading  HolderID
	loading  HolderID
	length   int
	sequence int64

	// The uid and sequence number of the front period survive a Clear so that a reprepared
	// source can resume the same window sequence.
	oldFrontUID      mo.Option[string]
	oldFrontSequence int64
}

// New returns an empty queue over the empty timeline.
func New() *Queue {
	return &Queue{tl: timeline.Empty, holders: make(map[HolderID]*Holder)}
}

// SetTimeline sets the timeline used for subsequent operations.
func (q *Queue) SetTimeline(tl *timeline.Timeline) { q.tl = tl }

// Timeline returns the current timeline.
func (q *Queue) Timeline() *timeline.Timeline { return q.tl }

// Len returns the number of holders.
func (q *Queue) Len() int { return q.length }

// Holder returns the holder with id, or nil.
func (q *Queue) Holder(id HolderID) *Holder { return q.holders[id] }

// Next returns the holder after h, or nil.
func (q *Queue) Next(h *Holder) *Holder {
	if h == nil {
		return nil
	}
	return q.holders[h.next]
}

func (q *Queue) Playing() *Holder { return q.holders[q.playing] }
func (q *Queue) Reading() *Holder { return q.holders[q.reading] }
func (q *Queue) Loading() *Holder { return q.holders[q.loading] }

// HasPlayingPeriod reports whether a period is being played.
func (q *Queue) HasPlayingPeriod() bool { return q.playing != 0 }

// Front returns the playing holder, or the loading one before playback started.
func (q *Queue) Front() *Holder {
	if q.HasPlayingPeriod() {
		return q.Playing()
	}
	return q.Loading()
}

// Holders returns the chain from the front.
func (q *Queue) Holders() []*Holder {
	var chain []*Holder
	for h := q.Front(); h != nil; h = q.Next(h) {
		chain = append(chain, h)
	}
	return chain
}

// UpdateRepeatMode sets the repeat mode and drops holders that no longer follow. It returns
// false when the reading period was dropped while playing, in which case the engine must seek.
func (q *Queue) UpdateRepeatMode(mode timeline.RepeatMode) bool {
	q.repeat = mode
	return q.updateForPlaybackModeChange()
}

// UpdateShuffleModeEnabled is UpdateRepeatMode for the shuffle mode.
func (q *Queue) UpdateShuffleModeEnabled(enabled bool) bool {
	q.shuffle = enabled
	return q.updateForPlaybackModeChange()
}

// IsLoading reports whether period belongs to the loading holder.
func (q *Queue) IsLoading(period source.MediaPeriod) bool {
	loading := q.Loading()
	return loading != nil && loading.Period == period
}

// ReevaluateBuffer lets the loading period discard media it no longer wants.
func (q *Queue) ReevaluateBuffer(rendererPositionUs int64) {
	if loading := q.Loading(); loading != nil {
		loading.ReevaluateBuffer(rendererPositionUs)
	}
}

// ShouldLoadNextMediaPeriod reports whether a new period should be appended.
func (q *Queue) ShouldLoadNextMediaPeriod() bool {
	loading := q.Loading()
	return loading == nil ||
		(!loading.Info.IsFinal &&
			loading.IsFullyBuffered() &&
			loading.Info.DurationUs != constant.TimeUnset &&
			q.length < MaxBufferAheadPeriods)
}

// NextMediaPeriodInfo returns the period to append next. Without holders it starts at periodID,
// otherwise it follows the loading holder. It is empty when the timeline is not known far enough.
func (q *Queue) NextMediaPeriodInfo(rendererPositionUs int64, periodID source.MediaPeriodID, contentPositionUs, startPositionUs int64) mo.Option[PeriodInfo] {
	if loading := q.Loading(); loading != nil {
		return q.followingInfo(loading, rendererPositionUs)
	}
	return q.mediaPeriodInfo(periodID, contentPositionUs, startPositionUs)
}

// Enqueue appends a holder for info and creates its media period.
func (q *Queue) Enqueue(
	capabilities []trackselect.Capabilities,
	selector trackselect.Selector,
	allocator source.Allocator,
	mediaSource source.MediaSource,
	info PeriodInfo,
) (*Holder, error) {
	offsetUs := info.StartPositionUs
	if loading := q.Loading(); loading != nil {
		offsetUs = loading.RendererOffsetUs() + loading.Info.DurationUs
	}

	h, err := newHolder(q.lastID+1, capabilities, offsetUs, selector, allocator, mediaSource, info)
	if err != nil {
		return nil, err
	}
	q.lastID = h.ID
	q.holders[h.ID] = h
	if loading := q.Loading(); loading != nil {
		loading.next = h.ID
	}
	q.oldFrontUID = mo.None[string]()
	q.loading = h.ID
	q.length++
	return h, nil
}

// AdvanceReadingPeriod moves the reading cursor to the next holder.
func (q *Queue) AdvanceReadingPeriod() *Holder {
	reading := q.Reading()
	if reading == nil || reading.next == 0 {
		return reading
	}
	q.reading = reading.next
	return q.Reading()
}

// AdvancePlayingPeriod releases the playing holder and moves to the next one. Before playback
// started it makes the loading holder the playing one.
func (q *Queue) AdvancePlayingPeriod() *Holder {
	playing := q.Playing()
	if playing == nil {
		q.playing = q.loading
		q.reading = q.loading
		return q.Playing()
	}

	if q.playing == q.reading {
		q.reading = playing.next
	}
	q.drop(playing)
	q.length--
	if q.length == 0 {
		q.loading = 0
		q.oldFrontUID = mo.Some(playing.UID)
		q.oldFrontSequence = playing.Info.ID.WindowSequenceNumber
	}
	q.playing = playing.next
	return q.Playing()
}

// RemoveAfter releases every holder after h, making h the loading holder. It reports whether
// the reading holder was among those removed; the reading cursor then moves back to playing.
func (q *Queue) RemoveAfter(h *Holder) bool {
	removedReading := false
	q.loading = h.ID
	for next := q.Next(h); next != nil; next = q.Next(next) {
		if next.ID == q.reading {
			q.reading = q.playing
			removedReading = true
		}
		q.drop(next)
		q.length--
	}
	h.next = 0
	return removedReading
}

// Clear releases every holder. With keepFrontPeriodUID the front period's window sequence
// number is reused when the same window is queued again.
func (q *Queue) Clear(keepFrontPeriodUID bool) {
	if front := q.Front(); front != nil {
		q.oldFrontUID = mo.None[string]()
		if keepFrontPeriodUID {
			q.oldFrontUID = mo.Some(front.UID)
		}
		q.oldFrontSequence = front.Info.ID.WindowSequenceNumber
		q.RemoveAfter(front)
		q.drop(front)
	} else if !keepFrontPeriodUID {
		q.oldFrontUID = mo.None[string]()
	}
	q.playing, q.reading, q.loading = 0, 0, 0
	q.length = 0
}

func (q *Queue) drop(h *Holder) {
	h.release()
	delete(q.holders, h.ID)
}

// UpdateQueuedPeriods checks the holders against a refreshed timeline, updating their durations
// and dropping those that no longer follow. It returns false when the reading holder was dropped,
// in which case the engine must seek.
func (q *Queue) UpdateQueuedPeriods(playingPeriodID source.MediaPeriodID, rendererPositionUs int64) bool {
	periodIndex := q.tl.IndexOfPeriod(playingPeriodID.PeriodUID)
	var previous *Holder
	for h := q.Front(); h != nil; h = q.Next(h) {
		if previous == nil {
			h.Info = q.UpdatedMediaPeriodInfo(h.Info)
		} else {
			if periodIndex == timeline.IndexUnset || h.UID != q.tl.UIDOfPeriod(periodIndex) {
				return !q.RemoveAfter(previous)
			}
			info, ok := q.followingInfo(previous, rendererPositionUs).Get()
			if !ok {
				return !q.RemoveAfter(previous)
			}
			h.Info = q.UpdatedMediaPeriodInfo(h.Info)
			if h.Info.StartPositionUs != info.StartPositionUs || h.Info.ID != info.ID {
				return !q.RemoveAfter(previous)
			}
		}

		if h.Info.IsLastInTimelinePeriod {
			periodIndex = q.tl.NextPeriodIndex(periodIndex, q.repeat, q.shuffle)
		}
		previous = h
	}
	return true
}

// UpdatedMediaPeriodInfo recomputes the timeline dependent fields of info.
func (q *Queue) UpdatedMediaPeriodInfo(info PeriodInfo) PeriodInfo {
	id := info.ID
	lastInPeriod := q.isLastInPeriod(id)
	period, _ := q.tl.PeriodByUID(id.PeriodUID)

	var durationUs int64
	switch {
	case id.IsAd():
		durationUs = period.AdDurationUs(id.AdGroupIndex, id.AdIndexInAdGroup)
	case endsWithPeriod(id):
		durationUs = period.DurationUs
	default:
		durationUs = id.EndPositionUs
	}

	return PeriodInfo{
		ID:                     id,
		StartPositionUs:        info.StartPositionUs,
		ContentPositionUs:      info.ContentPositionUs,
		DurationUs:             durationUs,
		IsLastInTimelinePeriod: lastInPeriod,
		IsFinal:                q.isLastInTimeline(id, lastInPeriod),
	}
}

// ResolveMediaPeriodIDForAds returns the id to play at positionUs of period uid. An unplayed ad
// group at or before the position takes precedence over content.
func (q *Queue) ResolveMediaPeriodIDForAds(uid string, positionUs int64) source.MediaPeriodID {
	return q.resolveForAds(uid, positionUs, q.windowSequenceNumber(uid))
}

func (q *Queue) resolveForAds(uid string, positionUs, sequence int64) source.MediaPeriodID {
	period, _ := q.tl.PeriodByUID(uid)
	if g := period.AdGroupIndexForPositionUs(positionUs); g != timeline.IndexUnset {
		return source.NewAdID(uid, g, period.FirstAdIndexToPlay(g), sequence)
	}
	return source.NewContentID(uid, sequence, nextAdGroupTimeUs(period, positionUs))
}

// windowSequenceNumber reuses the sequence number of a queued period of the same window, or
// allocates a new one.
func (q *Queue) windowSequenceNumber(uid string) int64 {
	period, _ := q.tl.PeriodByUID(uid)
	windowIndex := period.WindowIndex

	if oldUID, ok := q.oldFrontUID.Get(); ok {
		if old, found := q.tl.PeriodByUID(oldUID); found && old.WindowIndex == windowIndex {
			return q.oldFrontSequence
		}
	}
	for h := q.Front(); h != nil; h = q.Next(h) {
		if h.UID == uid {
			return h.Info.ID.WindowSequenceNumber
		}
	}
	for h := q.Front(); h != nil; h = q.Next(h) {
		if p, found := q.tl.PeriodByUID(h.UID); found && p.WindowIndex == windowIndex {
			return h.Info.ID.WindowSequenceNumber
		}
	}
	return q.nextSequence()
}

func (q *Queue) nextSequence() int64 {
	s := q.sequence
	q.sequence++
	return s
}

// updateForPlaybackModeChange keeps the holders that still follow each other in the new play
// order and drops the rest.
func (q *Queue) updateForPlaybackModeChange() bool {
	last := q.Front()
	if last == nil {
		return true
	}
	current := q.tl.IndexOfPeriod(last.UID)
	for {
		next := q.tl.NextPeriodIndex(current, q.repeat, q.shuffle)
		for q.Next(last) != nil && !last.Info.IsLastInTimelinePeriod {
			last = q.Next(last)
		}
		following := q.Next(last)
		if next == timeline.IndexUnset || following == nil {
			break
		}
		if q.tl.IndexOfPeriod(following.UID) != next {
			break
		}
		last = following
		current = next
	}

	removedReading := q.RemoveAfter(last)
	last.Info = q.UpdatedMediaPeriodInfo(last.Info)
	return !removedReading || !q.HasPlayingPeriod()
}

func (q *Queue) followingInfo(h *Holder, rendererPositionUs int64) mo.Option[PeriodInfo] {
	info := h.Info
	bufferedDurationUs := h.RendererOffsetUs() + info.DurationUs - rendererPositionUs

	if info.IsLastInTimelinePeriod {
		current := q.tl.IndexOfPeriod(info.ID.PeriodUID)
		next := q.tl.NextPeriodIndex(current, q.repeat, q.shuffle)
		if next == timeline.IndexUnset {
			return mo.None[PeriodInfo]()
		}

		nextPeriod := q.tl.Period(next)
		nextUID := nextPeriod.UID
		sequence := info.ID.WindowSequenceNumber
		startUs := int64(0)
		if q.tl.Window(nextPeriod.WindowIndex).FirstPeriodIndex == next {
			// A new window starts. Playback reaches it once the buffered media has played, so
			// its default position is projected forward by that much.
			position, err := q.tl.PeriodPositionProjected(nextPeriod.WindowIndex, constant.TimeUnset, max(0, bufferedDurationUs))
			if err != nil || position.IsAbsent() {
				return mo.None[PeriodInfo]()
			}
			nextUID = position.MustGet().PeriodUID
			startUs = position.MustGet().PositionUs
			if following := q.Next(h); following != nil && following.UID == nextUID {
				sequence = following.Info.ID.WindowSequenceNumber
			} else {
				sequence = q.nextSequence()
			}
		}
		id := q.resolveForAds(nextUID, startUs, sequence)
		return q.mediaPeriodInfo(id, startUs, startUs)
	}

	id := info.ID
	period, _ := q.tl.PeriodByUID(id.PeriodUID)
	switch {
	case id.IsAd():
		count := period.AdCountInAdGroup(id.AdGroupIndex)
		if count == timeline.CountUnset {
			return mo.None[PeriodInfo]()
		}
		next := period.NextAdIndexToPlay(id.AdGroupIndex, id.AdIndexInAdGroup)
		if next < count {
			if !period.IsAdAvailable(id.AdGroupIndex, next) {
				return mo.None[PeriodInfo]()
			}
			return mo.Some(q.adInfo(id.PeriodUID, id.AdGroupIndex, next, info.ContentPositionUs, id.WindowSequenceNumber))
		}
		return mo.Some(q.contentInfo(id.PeriodUID, info.ContentPositionUs, id.WindowSequenceNumber))

	case !endsWithPeriod(id):
		g := period.AdGroupIndexForPositionUs(id.EndPositionUs)
		if g == timeline.IndexUnset {
			return mo.Some(q.contentInfo(id.PeriodUID, id.EndPositionUs, id.WindowSequenceNumber))
		}
		first := period.FirstAdIndexToPlay(g)
		if !period.IsAdAvailable(g, first) {
			return mo.None[PeriodInfo]()
		}
		return mo.Some(q.adInfo(id.PeriodUID, g, first, id.EndPositionUs, id.WindowSequenceNumber))

	default:
		groups := period.AdGroupCount()
		if groups == 0 {
			return mo.None[PeriodInfo]()
		}
		g := groups - 1
		if period.AdGroupTimeUs(g) != constant.TimeEndOfSource || period.HasPlayedAdGroup(g) {
			return mo.None[PeriodInfo]()
		}
		first := period.FirstAdIndexToPlay(g)
		if !period.IsAdAvailable(g, first) {
			return mo.None[PeriodInfo]()
		}
		return mo.Some(q.adInfo(id.PeriodUID, g, first, period.DurationUs, id.WindowSequenceNumber))
	}
}

func (q *Queue) mediaPeriodInfo(id source.MediaPeriodID, contentPositionUs, startPositionUs int64) mo.Option[PeriodInfo] {
	period, ok := q.tl.PeriodByUID(id.PeriodUID)
	if !ok {
		return mo.None[PeriodInfo]()
	}
	if id.IsAd() {
		if !period.IsAdAvailable(id.AdGroupIndex, id.AdIndexInAdGroup) {
			return mo.None[PeriodInfo]()
		}
		return mo.Some(q.adInfo(id.PeriodUID, id.AdGroupIndex, id.AdIndexInAdGroup, contentPositionUs, id.WindowSequenceNumber))
	}
	return mo.Some(q.contentInfo(id.PeriodUID, startPositionUs, id.WindowSequenceNumber))
}

func (q *Queue) adInfo(uid string, g, index int, contentPositionUs, sequence int64) PeriodInfo {
	id := source.NewAdID(uid, g, index, sequence)
	lastInPeriod := q.isLastInPeriod(id)
	period, _ := q.tl.PeriodByUID(uid)

	startUs := int64(0)
	if index == period.FirstAdIndexToPlay(g) {
		startUs = period.Ads.ResumePositionUs
	}
	return PeriodInfo{
		ID:                     id,
		StartPositionUs:        startUs,
		ContentPositionUs:      contentPositionUs,
		DurationUs:             period.AdDurationUs(g, index),
		IsLastInTimelinePeriod: lastInPeriod,
		IsFinal:                q.isLastInTimeline(id, lastInPeriod),
	}
}

func (q *Queue) contentInfo(uid string, startPositionUs, sequence int64) PeriodInfo {
	period, _ := q.tl.PeriodByUID(uid)
	id := source.NewContentID(uid, sequence, nextAdGroupTimeUs(period, startPositionUs))
	lastInPeriod := q.isLastInPeriod(id)

	durationUs := id.EndPositionUs
	if endsWithPeriod(id) {
		durationUs = period.DurationUs
	}
	return PeriodInfo{
		ID:                     id,
		StartPositionUs:        startPositionUs,
		ContentPositionUs:      constant.TimeUnset,
		DurationUs:             durationUs,
		IsLastInTimelinePeriod: lastInPeriod,
		IsFinal:                q.isLastInTimeline(id, lastInPeriod),
	}
}

func (q *Queue) isLastInPeriod(id source.MediaPeriodID) bool {
	period, _ := q.tl.PeriodByUID(id.PeriodUID)
	groups := period.AdGroupCount()
	if groups == 0 {
		return true
	}

	last := groups - 1
	if period.AdGroupTimeUs(last) != constant.TimeEndOfSource {
		return !id.IsAd() && endsWithPeriod(id)
	}

	postrollCount := period.AdCountInAdGroup(last)
	if postrollCount == timeline.CountUnset {
		return false
	}
	isLastAd := id.IsAd() && id.AdGroupIndex == last && id.AdIndexInAdGroup == postrollCount-1
	return isLastAd || (!id.IsAd() && period.FirstAdIndexToPlay(last) == postrollCount)
}

func (q *Queue) isLastInTimeline(id source.MediaPeriodID, lastInPeriod bool) bool {
	index := q.tl.IndexOfPeriod(id.PeriodUID)
	if index == timeline.IndexUnset {
		return false
	}
	windowIndex := q.tl.Period(index).WindowIndex
	return !q.tl.Window(windowIndex).Dynamic && q.tl.IsLastPeriod(index, q.repeat, q.shuffle) && lastInPeriod
}

// nextAdGroupTimeUs returns where content starting at positionUs stops for an ad group:
// a group time, constant.TimeEndOfSource before a postroll, or constant.TimeUnset.
func nextAdGroupTimeUs(period timeline.Period, positionUs int64) int64 {
	if g := period.AdGroupIndexAfterPositionUs(positionUs); g != timeline.IndexUnset {
		return period.AdGroupTimeUs(g)
	}
	return constant.TimeUnset
}

// endsWithPeriod reports whether content of id plays to the end of its period.
func endsWithPeriod(id source.MediaPeriodID) bool {
	return id.EndPositionUs == constant.TimeUnset || id.EndPositionUs == constant.TimeEndOfSource
}
