package clock

import (
	"errors"
)

// ErrMultipleRendererClocks is returned when a second renderer exposing a clock is enabled.
var ErrMultipleRendererClocks = errors.New("multiple renderer media clocks enabled")

// RendererClock is a clock exposed by a renderer, for example one backed by an audio device.
type RendererClock interface {
	PositionUs() int64
	// SetPlaybackParameters applies params and returns what was actually applied.
	SetPlaybackParameters(params PlaybackParameters) PlaybackParameters
	PlaybackParameters() PlaybackParameters
}

// Source is the renderer side of a RendererClock. MediaClock returns nil when the renderer has no clock.
type Source interface {
	MediaClock() RendererClock
	IsEnded() bool
	IsReady() bool
	HasReadStreamToEnd() bool
}

// ParametersListener is told whenever the effective playback parameters change.
type ParametersListener func(params PlaybackParameters)

// MediaClock combines a Standalone clock with at most one renderer clock. Not safe for concurrent use.
type MediaClock struct {
	standalone     *Standalone
	listener       ParametersListener
	rendererSource Source
	rendererClock  RendererClock
}

// NewMediaClock returns a media clock backed by c. listener may be nil.
func NewMediaClock(c Clock, listener ParametersListener) *MediaClock {
	if listener == nil {
		listener = func(PlaybackParameters) {}
	}
	return &MediaClock{standalone: NewStandalone(c), listener: listener}
}

// Start starts the standalone clock.
func (m *MediaClock) Start() { m.standalone.Start() }

// Stop stops the standalone clock.
func (m *MediaClock) Stop() { m.standalone.Stop() }

// ResetPosition moves the standalone clock to positionUs.
func (m *MediaClock) ResetPosition(positionUs int64) { m.standalone.ResetPosition(positionUs) }

// OnRendererEnabled adopts the renderer's clock if it has one.
func (m *MediaClock) OnRendererEnabled(r Source) error {
	rc := r.MediaClock()
	if rc == nil || rc == m.rendererClock {
		return nil
	}
	if m.rendererClock != nil {
		return ErrMultipleRendererClocks
	}
	m.rendererClock = rc
	m.rendererSource = r
	rc.SetPlaybackParameters(m.standalone.PlaybackParameters())
	m.ensureSynced()
	return nil
}

// OnRendererDisabled drops the renderer's clock if it was the active one.
func (m *MediaClock) OnRendererDisabled(r Source) {
	if r == m.rendererSource {
		m.rendererSource = nil
		m.rendererClock = nil
	}
}

// SyncAndGetPositionUs returns the current position, syncing the standalone clock to the renderer clock while that is in use.
func (m *MediaClock) SyncAndGetPositionUs() int64 {
	if m.usingRendererClock() {
		m.ensureSynced()
		return m.rendererClock.PositionUs()
	}
	return m.standalone.PositionUs()
}

// SetPlaybackParameters applies params to the renderer clock, if any, and mirrors the result on the standalone clock.
func (m *MediaClock) SetPlaybackParameters(params PlaybackParameters) PlaybackParameters {
	if m.rendererClock != nil {
		params = m.rendererClock.SetPlaybackParameters(params)
	}
	m.standalone.SetPlaybackParameters(params)
	m.listener(params)
	return params
}

// PlaybackParameters returns the effective parameters.
func (m *MediaClock) PlaybackParameters() PlaybackParameters {
	if m.rendererClock != nil {
		return m.rendererClock.PlaybackParameters()
	}
	return m.standalone.PlaybackParameters()
}

func (m *MediaClock) ensureSynced() {
	m.standalone.ResetPosition(m.rendererClock.PositionUs())
	params := m.rendererClock.PlaybackParameters()
	if params != m.standalone.PlaybackParameters() {
		m.standalone.SetPlaybackParameters(params)
		m.listener(params)
	}
}

func (m *MediaClock) usingRendererClock() bool {
	return m.rendererSource != nil &&
		!m.rendererSource.IsEnded() &&
		(m.rendererSource.IsReady() || !m.rendererSource.HasReadStreamToEnd())
}
