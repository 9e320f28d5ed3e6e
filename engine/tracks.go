package engine

import (
	"github.com/cadence-media/cadence/queue"
	"github.com/cadence-media/cadence/renderer"
)

// reselectTracksInternal applies new track selections after the selector invalidated the old ones.
func (e *Engine) reselectTracksInternal() error {
	if !e.queue.HasPlayingPeriod() {
		return nil
	}
	speed := e.mediaClock.PlaybackParameters().Speed

	// Find the first holder whose selection changed.
	var changed *queue.Holder
	reading := e.queue.Reading()
	readingChanged := true
	for h := e.queue.Playing(); ; h = e.queue.Next(h) {
		if h == nil || !h.Prepared {
			return nil
		}
		selected, err := h.SelectTracks(speed)
		if err != nil {
			return unexpectedError(err)
		}
		if selected {
			changed = h
			break
		}
		if h == reading {
			readingChanged = false
		}
	}

	if readingChanged {
		if err := e.reselectPlayingTracks(); err != nil {
			return err
		}
	} else {
		// Only holders the renderers have not reached changed.
		e.queue.RemoveAfter(changed)
		if changed.Prepared {
			positionUs := max(changed.Info.StartPositionUs, changed.ToPeriodTime(e.rendererPositionUs))
			changed.ApplyTrackSelection(positionUs, false, nil)
		}
	}

	e.handleLoadingMediaPeriodChanged(true)
	if e.info.State != StateEnded {
		e.maybeContinueLoading()
		if err := e.updatePlaybackPositions(); err != nil {
			return err
		}
		e.scheduleWork()
	}
	return nil
}

// reselectPlayingTracks applies the new selection of the playing holder, which the renderers
// may already be reading.
func (e *Engine) reselectPlayingTracks() error {
	playing := e.queue.Playing()
	recreateStreams := e.queue.RemoveAfter(playing)
	streamResetFlags := make([]bool, len(e.renderers))
	periodUs := playing.ApplyTrackSelection(e.info.PositionUs, recreateStreams, streamResetFlags)
	if e.info.State != StateEnded && periodUs != e.info.PositionUs {
		e.info = e.info.WithNewPosition(e.info.PeriodID, periodUs, e.info.ContentPositionUs, e.totalBufferedDurationUs())
		e.update.setDiscontinuity(DiscontinuityInternal)
		if err := e.resetRendererPosition(periodUs); err != nil {
			return err
		}
	}

	wasEnabled := make([]bool, len(e.renderers))
	enabledCount := 0
	for i, r := range e.renderers {
		wasEnabled[i] = r.State() != renderer.StateDisabled
		stream := playing.Streams[i]
		if stream != nil {
			enabledCount++
		}
		if !wasEnabled[i] {
			continue
		}
		switch {
		case stream != r.Stream():
			if err := e.disableRenderer(r); err != nil {
				return err
			}
		case streamResetFlags[i]:
			// The stream was recreated in place.
			if err := r.ResetPosition(e.rendererPositionUs); err != nil {
				return rendererError(r, err)
			}
		}
	}
	e.info = e.info.WithTrackInfo(playing.TrackGroups, playing.Result)
	return e.enableRenderers(wasEnabled, enabledCount)
}

func (e *Engine) setRepeatModeInternal(c repeatModeCommand) error {
	e.repeatMode = c.mode
	if !e.queue.UpdateRepeatMode(c.mode) {
		if err := e.seekToCurrentPosition(true); err != nil {
			return err
		}
	}
	e.handleLoadingMediaPeriodChanged(false)
	return nil
}

func (e *Engine) setShuffleModeInternal(c shuffleModeCommand) error {
	e.shuffle = c.enabled
	if !e.queue.UpdateShuffleModeEnabled(c.enabled) {
		if err := e.seekToCurrentPosition(true); err != nil {
			return err
		}
	}
	e.handleLoadingMediaPeriodChanged(false)
	return nil
}
