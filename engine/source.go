package engine

import (
	"errors"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

func (e *Engine) prepareInternal(src source.MediaSource, resetPosition, resetState bool) {
	e.log.WithField("reset_position", resetPosition).WithField("reset_state", resetState).Info("preparing source")
	e.pendingPrepareCount++
	e.resetInternal(true, resetPosition, resetState)
	e.loadControl.OnPrepared()
	e.mediaSource = src
	e.setState(StateBuffering)
	src.PrepareSource(e.callbacks)
	e.scheduleWork()
}

func (e *Engine) stopInternal(reset, acknowledge bool) {
	e.resetInternal(true, reset, reset)
	acks := e.pendingPrepareCount
	if acknowledge {
		acks++
	}
	e.update.incrementAcks(acks)
	e.pendingPrepareCount = 0
	e.loadControl.OnStopped()
	e.setState(StateIdle)
}

func (e *Engine) releaseInternal() {
	e.log.Info("releasing")
	e.resetInternal(true, true, true)
	e.loadControl.OnReleased()
	e.setState(StateIdle)
	e.storeSnapshot()
}

// resetInternal disables every renderer and empties the queue. Failures while disabling are
// logged, never returned.
func (e *Engine) resetInternal(releaseSource, resetPosition, resetState bool) {
	e.cancelWork()
	e.rebuffering = false
	e.mediaClock.Stop()
	e.rendererPositionUs = 0
	for _, r := range e.enabled {
		if err := e.disableRenderer(r); err != nil {
			e.log.WithError(err).WithField("renderer", r.Index()).Error("disable failed")
		}
	}
	e.enabled = nil
	e.queue.Clear(!resetPosition)
	e.setIsLoading(false)
	if resetPosition {
		e.pendingInitialSeek = mo.None[SeekPosition]()
	}
	if resetState {
		e.queue.SetTimeline(timeline.Empty)
		for _, pm := range e.pendingMessages {
			pm.message.markProcessed(false)
		}
		e.pendingMessages = nil
		e.nextPendingMessage = 0
	}

	id := e.info.PeriodID
	startUs, contentUs := e.info.PositionUs, e.info.ContentPositionUs
	if resetPosition {
		id = e.info.DummyFirstPeriodID(e.shuffle)
		startUs, contentUs = constant.TimeUnset, constant.TimeUnset
	}
	info := e.info
	if resetState {
		info.Timeline = timeline.Empty
		info.Manifest = nil
		info.TrackGroups = nil
		info.TrackSelectorResult = e.emptyResult
	}
	info.PeriodID = id
	info.StartPositionUs = startUs
	info.ContentPositionUs = contentUs
	info.IsLoading = false
	info.LoadingPeriodID = id
	info.BufferedPositionUs = startUs
	info.TotalBufferedDurationUs = 0
	info.PositionUs = startUs
	e.info = info.next()

	if releaseSource && e.mediaSource != nil {
		e.mediaSource.ReleaseSource(e.callbacks)
		e.mediaSource = nil
	}
}

func (e *Engine) handleSourceInfoRefreshed(c sourceRefreshedCommand) error {
	if c.source != e.mediaSource {
		return nil
	}
	oldTimeline := e.info.Timeline
	tl := c.timeline
	e.queue.SetTimeline(tl)
	e.info = e.info.WithTimeline(tl, c.manifest)
	e.resolvePendingMessagePositions()

	switch {
	case e.pendingPrepareCount > 0:
		e.update.incrementAcks(e.pendingPrepareCount)
		e.pendingPrepareCount = 0
		if seek, ok := e.pendingInitialSeek.Get(); ok {
			position, err := e.resolveSeekPosition(seek, true)
			if err != nil {
				e.info = e.info.ResetToNewPosition(e.info.DummyFirstPeriodID(e.shuffle), constant.TimeUnset, constant.TimeUnset)
				return err
			}
			e.pendingInitialSeek = mo.None[SeekPosition]()
			p, ok := position.Get()
			if !ok {
				e.handleSourceInfoRefreshEndedPlayback()
				return nil
			}
			e.resetToPeriodPosition(p)
		} else if e.info.StartPositionUs == constant.TimeUnset {
			if tl.IsEmpty() {
				e.handleSourceInfoRefreshEndedPlayback()
				return nil
			}
			e.resetToPeriodPosition(defaultPosition(tl, tl.FirstWindowIndex(e.shuffle)))
		}
		return nil

	case oldTimeline.IsEmpty():
		if !tl.IsEmpty() {
			e.resetToPeriodPosition(defaultPosition(tl, tl.FirstWindowIndex(e.shuffle)))
		}
		return nil
	}

	holder := e.queue.Front()
	contentUs := e.info.ContentPositionUs
	playingUID := e.info.PeriodID.PeriodUID
	if holder != nil {
		playingUID = holder.UID
	}

	if tl.IndexOfPeriod(playingUID) == timeline.IndexUnset {
		newUID, ok := timeline.SubsequentPeriodUID(playingUID, oldTimeline, tl, e.repeatMode, e.shuffle).Get()
		if !ok {
			e.handleSourceInfoRefreshEndedPlayback()
			return nil
		}
		period, _ := tl.PeriodByUID(newUID)
		position := defaultPosition(tl, period.WindowIndex)
		contentUs = position.PositionUs
		id := e.queue.ResolveMediaPeriodIDForAds(position.PeriodUID, contentUs)
		if holder != nil {
			for h := e.queue.Next(holder); h != nil; h = e.queue.Next(h) {
				if h.Info.ID == id {
					h.Info = e.queue.UpdatedMediaPeriodInfo(h.Info)
				}
			}
		}
		seekUs, err := e.seekToPeriodPosition(id, lo.Ternary(id.IsAd(), 0, contentUs))
		if err != nil {
			return err
		}
		e.info = e.info.WithNewPosition(id, seekUs, contentUs, e.totalBufferedDurationUs())
		return nil
	}

	playingID := e.info.PeriodID
	if playingID.IsAd() {
		id := e.queue.ResolveMediaPeriodIDForAds(playingUID, contentUs)
		if id != playingID {
			seekUs, err := e.seekToPeriodPosition(id, lo.Ternary(id.IsAd(), 0, contentUs))
			if err != nil {
				return err
			}
			e.info = e.info.WithNewPosition(id, seekUs, contentUs, e.totalBufferedDurationUs())
			return nil
		}
	}
	if !e.queue.UpdateQueuedPeriods(playingID, e.rendererPositionUs) {
		if err := e.seekToCurrentPosition(false); err != nil {
			return err
		}
	}
	e.handleLoadingMediaPeriodChanged(false)
	return nil
}

func (e *Engine) resetToPeriodPosition(p timeline.Position) {
	id := e.queue.ResolveMediaPeriodIDForAds(p.PeriodUID, p.PositionUs)
	e.info = e.info.ResetToNewPosition(id, lo.Ternary(id.IsAd(), 0, p.PositionUs), p.PositionUs)
}

func (e *Engine) handleSourceInfoRefreshEndedPlayback() {
	e.setState(StateEnded)
	e.resetInternal(false, true, false)
}

// resolveSeekPosition maps a seek in the caller's timeline onto the current one. The result is
// empty when the position cannot be resolved.
func (e *Engine) resolveSeekPosition(seek SeekPosition, trySubsequentPeriods bool) (mo.Option[timeline.Position], error) {
	tl := e.info.Timeline
	if tl.IsEmpty() {
		return mo.None[timeline.Position](), nil
	}
	seekTimeline := seek.Timeline
	if seekTimeline == nil || seekTimeline.IsEmpty() {
		seekTimeline = tl
	}

	position, err := seekTimeline.PeriodPosition(seek.WindowIndex, seek.WindowPositionUs)
	if err != nil {
		if errors.Is(err, timeline.ErrWindowIndexOutOfBounds) {
			return mo.None[timeline.Position](), &IllegalSeekPositionError{Timeline: tl, WindowIndex: seek.WindowIndex, PositionUs: seek.WindowPositionUs}
		}
		return mo.None[timeline.Position](), err
	}
	p, ok := position.Get()
	if !ok || tl == seekTimeline || tl.IndexOfPeriod(p.PeriodUID) != timeline.IndexUnset {
		return position, nil
	}

	if trySubsequentPeriods {
		if uid, ok := timeline.SubsequentPeriodUID(p.PeriodUID, seekTimeline, tl, e.repeatMode, e.shuffle).Get(); ok {
			period, _ := tl.PeriodByUID(uid)
			return mo.Some(defaultPosition(tl, period.WindowIndex)), nil
		}
	}
	return mo.None[timeline.Position](), nil
}

// defaultPosition returns the default position of a window, or its start when the default is unknown.
func defaultPosition(tl *timeline.Timeline, windowIndex int) timeline.Position {
	position, _ := tl.PeriodPosition(windowIndex, constant.TimeUnset)
	if p, ok := position.Get(); ok {
		return p
	}
	position, _ = tl.PeriodPosition(windowIndex, 0)
	return position.MustGet()
}
