package engine

import (
	"time"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/trackselect"
)

// doSomeWork is one tick: advance the queue, render, and move between states.
func (e *Engine) doSomeWork() error {
	start := time.Now()
	if err := e.updatePeriods(); err != nil {
		return err
	}
	playing := e.queue.Playing()
	if playing == nil {
		// Still preparing.
		if err := e.maybeThrowPeriodPrepareError(); err != nil {
			return err
		}
		e.scheduleNextWork(start, renderingInterval)
		return nil
	}

	if err := e.updatePlaybackPositions(); err != nil {
		return err
	}
	elapsedRealtimeUs := e.clock.Elapsed().Microseconds()
	playing.Period.DiscardBuffer(e.info.PositionUs-e.backBufferUs, e.retainBackBufferFromKeyframe)

	renderersEnded, renderersReadyOrEnded := true, true
	for _, r := range e.enabled {
		if err := r.Render(e.rendererPositionUs, elapsedRealtimeUs); err != nil {
			return rendererError(r, err)
		}
		renderersEnded = renderersEnded && r.IsEnded()
		readyOrEnded := r.IsReady() || r.IsEnded() || e.rendererWaitingForNextStream(r)
		if !readyOrEnded {
			if err := r.MaybeThrowStreamError(); err != nil {
				return sourceError(err)
			}
		}
		renderersReadyOrEnded = renderersReadyOrEnded && readyOrEnded
	}
	if !renderersReadyOrEnded {
		if err := e.maybeThrowPeriodPrepareError(); err != nil {
			return err
		}
	}

	durationUs := playing.Info.DurationUs
	switch {
	case renderersEnded && (durationUs == constant.TimeUnset || durationUs <= e.info.PositionUs) && playing.Info.IsFinal:
		e.setState(StateEnded)
		if err := e.stopRenderers(); err != nil {
			return err
		}
	case e.info.State == StateBuffering && e.shouldTransitionToReadyState(renderersReadyOrEnded):
		e.setState(StateReady)
		if e.playWhenReady {
			if err := e.startRenderers(); err != nil {
				return err
			}
		}
	case e.info.State == StateReady:
		stillReady := renderersReadyOrEnded
		if len(e.enabled) == 0 {
			stillReady = e.isTimelineReady()
		}
		if !stillReady {
			e.rebuffering = e.playWhenReady
			if e.rebuffering {
				e.metrics.Rebuffered()
			}
			e.setState(StateBuffering)
			if err := e.stopRenderers(); err != nil {
				return err
			}
		}
	}

	if e.info.State == StateBuffering {
		for _, r := range e.enabled {
			if err := r.MaybeThrowStreamError(); err != nil {
				return sourceError(err)
			}
		}
	}

	switch {
	case (e.playWhenReady && e.info.State == StateReady) || e.info.State == StateBuffering:
		e.scheduleNextWork(start, renderingInterval)
	case len(e.enabled) != 0 && e.info.State != StateEnded:
		e.scheduleNextWork(start, idleInterval)
	default:
		e.cancelWork()
	}
	return nil
}

// updatePlaybackPositions refreshes the position from the media clock, or jumps to a
// discontinuity reported by the playing period.
func (e *Engine) updatePlaybackPositions() error {
	playing := e.queue.Playing()
	if playing == nil {
		return nil
	}

	periodUs := playing.Period.ReadDiscontinuity()
	if periodUs != constant.TimeUnset {
		if err := e.resetRendererPosition(periodUs); err != nil {
			return err
		}
		if periodUs != e.info.PositionUs {
			e.info = e.info.WithNewPosition(e.info.PeriodID, periodUs, e.info.ContentPositionUs, e.totalBufferedDurationUs())
			e.update.setDiscontinuity(DiscontinuityInternal)
		}
	} else {
		e.rendererPositionUs = e.mediaClock.SyncAndGetPositionUs()
		periodUs = playing.ToPeriodTime(e.rendererPositionUs)
		if err := e.maybeTriggerPendingMessages(e.info.PositionUs, periodUs); err != nil {
			return err
		}
		e.info.PositionUs = periodUs
	}

	e.info.BufferedPositionUs = e.queue.Loading().BufferedPositionUs()
	e.info.TotalBufferedDurationUs = e.totalBufferedDurationUs()
	return nil
}

func (e *Engine) updatePeriods() error {
	if e.mediaSource == nil {
		return nil
	}
	if e.pendingPrepareCount > 0 {
		// The timeline is not known yet.
		if err := e.mediaSource.MaybeThrowSourceInfoRefreshError(); err != nil {
			return sourceError(err)
		}
		return nil
	}

	if err := e.maybeUpdateLoadingPeriod(); err != nil {
		return err
	}
	if loading := e.queue.Loading(); loading != nil && !loading.IsFullyBuffered() {
		if !e.info.IsLoading {
			e.maybeContinueLoading()
		}
	} else {
		e.setIsLoading(false)
	}

	if !e.queue.HasPlayingPeriod() {
		return nil
	}

	playing, reading := e.queue.Playing(), e.queue.Reading()
	for advanced := false; e.playWhenReady && playing != reading &&
		e.rendererPositionUs >= e.queue.Next(playing).StartPositionRendererTime(); advanced = true {
		if advanced {
			// Report each period transition on its own.
			e.publish()
		}
		reason := DiscontinuityAdInsertion
		if playing.Info.IsLastInTimelinePeriod {
			reason = DiscontinuityPeriodTransition
		}
		old := playing
		playing = e.queue.AdvancePlayingPeriod()
		if err := e.updatePlayingPeriodRenderers(old); err != nil {
			return err
		}
		e.info = e.info.WithNewPosition(playing.Info.ID, playing.Info.StartPositionUs, playing.Info.ContentPositionUs, e.totalBufferedDurationUs())
		e.update.setDiscontinuity(reason)
		if err := e.updatePlaybackPositions(); err != nil {
			return err
		}
	}

	if reading.Info.IsFinal {
		for i, r := range e.renderers {
			stream := reading.Streams[i]
			if stream != nil && r.Stream() == stream && r.HasReadStreamToEnd() {
				r.SetCurrentStreamFinal()
			}
		}
		return nil
	}

	next := e.queue.Next(reading)
	if next == nil {
		return nil
	}
	for i, r := range e.renderers {
		stream := reading.Streams[i]
		if r.Stream() != stream || (stream != nil && !r.HasReadStreamToEnd()) {
			return nil
		}
	}
	if !next.Prepared {
		return e.maybeThrowPeriodPrepareError()
	}

	oldResult := reading.Result
	reading = e.queue.AdvanceReadingPeriod()
	newResult := reading.Result
	initialDiscontinuity := reading.Period.ReadDiscontinuity() != constant.TimeUnset
	for i, r := range e.renderers {
		if !oldResult.IsRendererEnabled(i) {
			continue
		}
		switch {
		case initialDiscontinuity:
			// The renderer must be reset for the discontinuity.
			r.SetCurrentStreamFinal()
		case !r.IsCurrentStreamFinal():
			noSample := e.capabilities[i].TrackType() == constant.TrackTypeNone
			sameConfig := newResult.IsRendererEnabled(i) && *newResult.Configurations[i] == *oldResult.Configurations[i]
			if sameConfig && !noSample {
				formats := source.Formats(newResult.Selections[i])
				if err := r.ReplaceStream(formats, reading.Streams[i], reading.RendererOffsetUs()); err != nil {
					return rendererError(r, err)
				}
			} else {
				r.SetCurrentStreamFinal()
			}
		}
	}
	return nil
}

func (e *Engine) maybeUpdateLoadingPeriod() error {
	e.queue.ReevaluateBuffer(e.rendererPositionUs)
	if !e.queue.ShouldLoadNextMediaPeriod() {
		return nil
	}

	info, ok := e.queue.NextMediaPeriodInfo(e.rendererPositionUs, e.info.PeriodID, e.info.ContentPositionUs, e.info.StartPositionUs).Get()
	if !ok {
		return e.maybeThrowSourceInfoRefreshError()
	}
	holder, err := e.queue.Enqueue(e.capabilities, e.selector, e.loadControl.Allocator(), e.mediaSource, info)
	if err != nil {
		return sourceError(err)
	}
	e.log.WithField("period", info.ID).Debug("enqueued period")
	holder.Period.Prepare(e.callbacks, info.StartPositionUs)
	e.setIsLoading(true)
	e.handleLoadingMediaPeriodChanged(false)
	return nil
}

func (e *Engine) handlePeriodPrepared(period source.MediaPeriod) error {
	if !e.queue.IsLoading(period) {
		// Stale notification from a released period.
		return nil
	}
	loading := e.queue.Loading()
	if err := loading.HandlePrepared(e.mediaClock.PlaybackParameters().Speed); err != nil {
		return unexpectedError(err)
	}
	e.updateLoadControlTrackSelection(loading.TrackGroups, loading.Result)
	if !e.queue.HasPlayingPeriod() {
		playing := e.queue.AdvancePlayingPeriod()
		if err := e.resetRendererPosition(playing.Info.StartPositionUs); err != nil {
			return err
		}
		if err := e.updatePlayingPeriodRenderers(nil); err != nil {
			return err
		}
	}
	e.maybeContinueLoading()
	return nil
}

func (e *Engine) handleContinueLoadingRequested(period source.MediaPeriod) {
	if !e.queue.IsLoading(period) {
		return
	}
	e.queue.ReevaluateBuffer(e.rendererPositionUs)
	e.maybeContinueLoading()
}

func (e *Engine) maybeContinueLoading() {
	loading := e.queue.Loading()
	nextLoadUs := loading.NextLoadPositionUs()
	if nextLoadUs == constant.TimeEndOfSource {
		e.setIsLoading(false)
		return
	}
	buffered := e.totalBufferedDurationUsAt(nextLoadUs)
	continueLoading := e.loadControl.ShouldContinueLoading(buffered, e.mediaClock.PlaybackParameters().Speed)
	e.setIsLoading(continueLoading)
	if continueLoading {
		loading.ContinueLoading(e.rendererPositionUs)
	}
}

func (e *Engine) shouldTransitionToReadyState(renderersReadyOrEnded bool) bool {
	if len(e.enabled) == 0 {
		return e.isTimelineReady()
	}
	if !renderersReadyOrEnded {
		return false
	}
	if !e.info.IsLoading {
		return true
	}
	loading := e.queue.Loading()
	bufferedToEnd := loading.IsFullyBuffered() && loading.Info.IsFinal
	return bufferedToEnd || e.loadControl.ShouldStartPlayback(e.totalBufferedDurationUs(), e.mediaClock.PlaybackParameters().Speed, e.rebuffering)
}

func (e *Engine) isTimelineReady() bool {
	playing := e.queue.Playing()
	durationUs := playing.Info.DurationUs
	next := e.queue.Next(playing)
	return durationUs == constant.TimeUnset ||
		e.info.PositionUs < durationUs ||
		(next != nil && (next.Prepared || next.Info.ID.IsAd()))
}

// maybeThrowSourceInfoRefreshError surfaces a source error once renderers have nothing left to read.
func (e *Engine) maybeThrowSourceInfoRefreshError() error {
	if e.queue.Loading() != nil {
		for _, r := range e.enabled {
			if !r.HasReadStreamToEnd() {
				return nil
			}
		}
	}
	if err := e.mediaSource.MaybeThrowSourceInfoRefreshError(); err != nil {
		return sourceError(err)
	}
	return nil
}

// maybeThrowPeriodPrepareError surfaces a prepare error of the next period once renderers have
// nothing left to read.
func (e *Engine) maybeThrowPeriodPrepareError() error {
	loading, reading := e.queue.Loading(), e.queue.Reading()
	if loading == nil || loading.Prepared || (reading != nil && e.queue.Next(reading) != loading) {
		return nil
	}
	for _, r := range e.enabled {
		if !r.HasReadStreamToEnd() {
			return nil
		}
	}
	if err := loading.Period.MaybeThrowPrepareError(); err != nil {
		return sourceError(err)
	}
	return nil
}

// handleLoadingMediaPeriodChanged refreshes the loading period id and buffered position, and
// tells the load control about the loading period's tracks when they changed.
func (e *Engine) handleLoadingMediaPeriodChanged(selectionChanged bool) {
	loading := e.queue.Loading()
	id := e.info.PeriodID
	if loading != nil {
		id = loading.Info.ID
	}
	changed := e.info.LoadingPeriodID != id
	if changed {
		e.info = e.info.WithLoadingPeriodID(id)
	}
	e.info.BufferedPositionUs = e.info.PositionUs
	if loading != nil {
		e.info.BufferedPositionUs = loading.BufferedPositionUs()
	}
	e.info.TotalBufferedDurationUs = e.totalBufferedDurationUs()
	if (changed || selectionChanged) && loading != nil && loading.Prepared {
		e.updateLoadControlTrackSelection(loading.TrackGroups, loading.Result)
	}
}

func (e *Engine) totalBufferedDurationUs() int64 {
	return e.totalBufferedDurationUsAt(e.info.BufferedPositionUs)
}

// totalBufferedDurationUsAt returns the media between the playback position and
// bufferedPositionUs of the loading period.
func (e *Engine) totalBufferedDurationUsAt(bufferedPositionUs int64) int64 {
	loading := e.queue.Loading()
	if loading == nil {
		return 0
	}
	return bufferedPositionUs - loading.ToPeriodTime(e.rendererPositionUs)
}

func (e *Engine) updateLoadControlTrackSelection(groups []source.TrackGroup, result *trackselect.Result) {
	e.loadControl.OnTracksSelected(e.renderers, groups, result.Selections)
}
