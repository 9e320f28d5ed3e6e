package engine

import (
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/queue"
	"github.com/cadence-media/cadence/source"
	"github.com/samber/mo"
)

func (e *Engine) seekToInternal(seek SeekPosition) (err error) {
	e.update.incrementAcks(1)

	position, err := e.resolveSeekPosition(seek, true)
	if err != nil {
		return err
	}

	var (
		id        source.MediaPeriodID
		periodUs  int64
		contentUs int64
		adjusted  bool
	)
	if p, ok := position.Get(); ok {
		contentUs = p.PositionUs
		id = e.queue.ResolveMediaPeriodIDForAds(p.PeriodUID, contentUs)
		if id.IsAd() {
			periodUs = 0
			adjusted = true
		} else {
			periodUs = p.PositionUs
			adjusted = seek.WindowPositionUs == constant.TimeUnset
		}
	} else {
		id = e.info.DummyFirstPeriodID(e.shuffle)
		periodUs = constant.TimeUnset
		contentUs = constant.TimeUnset
		adjusted = true
	}

	defer func() {
		e.info = e.info.WithNewPosition(id, periodUs, contentUs, e.totalBufferedDurationUs())
		if adjusted {
			e.update.setDiscontinuity(DiscontinuitySeekAdjustment)
		}
	}()

	switch {
	case e.mediaSource == nil || e.pendingPrepareCount > 0:
		// Applied once the timeline is known.
		e.pendingInitialSeek = mo.Some(seek)
	case periodUs == constant.TimeUnset:
		e.setState(StateEnded)
		e.resetInternal(false, true, false)
	default:
		newUs := periodUs
		if id == e.info.PeriodID {
			if playing := e.queue.Playing(); playing != nil && periodUs != 0 {
				newUs = playing.Period.AdjustedSeekPositionUs(periodUs, e.seekParameters)
			}
			if constant.UsToMs(newUs) == constant.UsToMs(e.info.PositionUs) {
				// Already there; keep the current sub-millisecond position.
				periodUs = e.info.PositionUs
				return nil
			}
		}
		newUs, err = e.seekToPeriodPosition(id, newUs)
		if err != nil {
			return err
		}
		adjusted = adjusted || periodUs != newUs
		periodUs = newUs
	}
	return nil
}

// seekToPeriodPosition seeks within the queue, disabling the renderers when the playing holder
// changes or when they already read ahead into a later period.
func (e *Engine) seekToPeriodPosition(id source.MediaPeriodID, periodUs int64) (int64, error) {
	return e.seekToPeriodPositionForce(id, periodUs, e.queue.Playing() != e.queue.Reading())
}

func (e *Engine) seekToPeriodPositionForce(id source.MediaPeriodID, periodUs int64, forceDisableRenderers bool) (int64, error) {
	if err := e.stopRenderers(); err != nil {
		return 0, err
	}
	e.rebuffering = false
	e.setState(StateBuffering)

	oldPlaying := e.queue.Playing()
	var newPlaying *queue.Holder
	for h := oldPlaying; h != nil; h = e.queue.AdvancePlayingPeriod() {
		if h.Info.ID == id && h.Prepared {
			e.queue.RemoveAfter(h)
			newPlaying = h
			break
		}
	}

	if oldPlaying != newPlaying || forceDisableRenderers {
		for _, r := range e.enabled {
			if err := e.disableRenderer(r); err != nil {
				return 0, err
			}
		}
		e.enabled = nil
		oldPlaying = nil
	}

	if newPlaying != nil {
		if err := e.updatePlayingPeriodRenderers(oldPlaying); err != nil {
			return 0, err
		}
		if newPlaying.HasEnabledTracks {
			periodUs = newPlaying.Period.SeekToUs(periodUs)
			newPlaying.Period.DiscardBuffer(periodUs-e.backBufferUs, e.retainBackBufferFromKeyframe)
		}
		if err := e.resetRendererPosition(periodUs); err != nil {
			return 0, err
		}
		e.maybeContinueLoading()
	} else {
		e.queue.Clear(true)
		e.info = e.info.WithTrackInfo(nil, e.emptyResult)
		if err := e.resetRendererPosition(periodUs); err != nil {
			return 0, err
		}
	}

	e.handleLoadingMediaPeriodChanged(false)
	e.scheduleWork()
	return periodUs, nil
}

// seekToCurrentPosition reseeks the playing period, recreating what follows it.
func (e *Engine) seekToCurrentPosition(sendDiscontinuity bool) error {
	id := e.queue.Playing().Info.ID
	newUs, err := e.seekToPeriodPositionForce(id, e.info.PositionUs, true)
	if err != nil {
		return err
	}
	if newUs != e.info.PositionUs {
		e.info = e.info.WithNewPosition(id, newUs, e.info.ContentPositionUs, e.totalBufferedDurationUs())
		if sendDiscontinuity {
			e.update.setDiscontinuity(DiscontinuityInternal)
		}
	}
	return nil
}

func (e *Engine) resetRendererPosition(periodUs int64) error {
	e.rendererPositionUs = periodUs
	if playing := e.queue.Playing(); playing != nil {
		e.rendererPositionUs = playing.ToRendererTime(periodUs)
	}
	e.mediaClock.ResetPosition(e.rendererPositionUs)
	for _, r := range e.enabled {
		if err := r.ResetPosition(e.rendererPositionUs); err != nil {
			return rendererError(r, err)
		}
	}
	return nil
}
