package engine

import (
	"github.com/cadence-media/cadence/queue"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
)

func (e *Engine) setPlayWhenReadyInternal(playWhenReady bool) error {
	e.rebuffering = false
	e.playWhenReady = playWhenReady
	switch {
	case !playWhenReady:
		if err := e.stopRenderers(); err != nil {
			return err
		}
		return e.updatePlaybackPositions()
	case e.info.State == StateReady:
		if err := e.startRenderers(); err != nil {
			return err
		}
		e.scheduleWork()
	case e.info.State == StateBuffering:
		e.scheduleWork()
	}
	return nil
}

func (e *Engine) startRenderers() error {
	e.rebuffering = false
	e.mediaClock.Start()
	for _, r := range e.enabled {
		if err := r.Start(); err != nil {
			return rendererError(r, err)
		}
	}
	return nil
}

func (e *Engine) stopRenderers() error {
	e.mediaClock.Stop()
	for _, r := range e.enabled {
		if err := ensureStopped(r); err != nil {
			return rendererError(r, err)
		}
	}
	return nil
}

func ensureStopped(r renderer.Renderer) error {
	if r.State() == renderer.StateStarted {
		return r.Stop()
	}
	return nil
}

func (e *Engine) disableRenderer(r renderer.Renderer) error {
	e.mediaClock.OnRendererDisabled(r)
	if err := ensureStopped(r); err != nil {
		return rendererError(r, err)
	}
	if err := r.Disable(); err != nil {
		return rendererError(r, err)
	}
	return nil
}

// updatePlayingPeriodRenderers moves the renderers over to the playing holder. Renderers that
// are not needed any more, or that already consumed the stream of old, are disabled.
func (e *Engine) updatePlayingPeriodRenderers(old *queue.Holder) error {
	playing := e.queue.Playing()
	if playing == nil || playing == old {
		return nil
	}

	wasEnabled := make([]bool, len(e.renderers))
	enabledCount := 0
	for i, r := range e.renderers {
		wasEnabled[i] = r.State() != renderer.StateDisabled
		if playing.Result.IsRendererEnabled(i) {
			enabledCount++
		}
		if !wasEnabled[i] {
			continue
		}
		finished := r.IsCurrentStreamFinal() && old != nil && r.Stream() == old.Streams[i]
		if !playing.Result.IsRendererEnabled(i) || finished {
			// The renderer is re-enabled below if it plays in the new period.
			if err := e.disableRenderer(r); err != nil {
				return err
			}
		}
	}
	e.info = e.info.WithTrackInfo(playing.TrackGroups, playing.Result)
	return e.enableRenderers(wasEnabled, enabledCount)
}

func (e *Engine) enableRenderers(wasEnabled []bool, count int) error {
	e.enabled = make([]renderer.Renderer, 0, count)
	playing := e.queue.Playing()
	for i, r := range e.renderers {
		if !playing.Result.IsRendererEnabled(i) {
			continue
		}
		if err := e.enableRenderer(i, wasEnabled[i]); err != nil {
			return err
		}
		e.enabled = append(e.enabled, r)
	}
	return nil
}

func (e *Engine) enableRenderer(i int, wasEnabled bool) error {
	r := e.renderers[i]
	if r.State() != renderer.StateDisabled {
		return nil
	}
	playing := e.queue.Playing()
	play := e.playWhenReady && e.info.State == StateReady
	joining := !wasEnabled && play
	config := *playing.Result.Configurations[i]
	formats := source.Formats(playing.Result.Selections[i])
	if err := r.Enable(config, formats, playing.Streams[i], e.rendererPositionUs, joining, playing.RendererOffsetUs()); err != nil {
		return rendererError(r, err)
	}
	if err := e.mediaClock.OnRendererEnabled(r); err != nil {
		return err
	}
	if play {
		if err := r.Start(); err != nil {
			return rendererError(r, err)
		}
	}
	return nil
}

// rendererWaitingForNextStream reports whether r read its stream to the end and the next
// period is ready to take over.
func (e *Engine) rendererWaitingForNextStream(r renderer.Renderer) bool {
	reading := e.queue.Reading()
	if reading == nil {
		return false
	}
	next := e.queue.Next(reading)
	return next != nil && next.Prepared && r.HasReadStreamToEnd()
}

func (e *Engine) handlePlaybackParameters(c parametersChangedCommand) {
	e.emit(ParametersChanged{Params: c.params})
	for _, h := range e.queue.Holders() {
		if h.Result == nil {
			continue
		}
		for _, selection := range h.Result.Selections {
			if selection != nil {
				selection.OnPlaybackSpeed(c.params.Speed)
			}
		}
	}
	for _, r := range e.renderers {
		r.SetOperatingRate(c.params.Speed)
	}
}
