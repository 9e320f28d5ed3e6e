// Package player drives a playback engine from the caller's side.
//
// A Player keeps its own copy of the playback state. Operations update that copy immediately,
// and updates published by the engine are ignored until the engine acknowledged every operation
// issued so far, so reads never jump back to a state the caller already moved away from.
package player

import (
	"context"
	"sync"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
	"github.com/cadence-media/cadence/version"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Options configure a Player.
type Options struct {
	Engine engine.Options
	// Registry, when set, records the modules the player brings in.
	Registry *version.Registry
	// SavePositions persists resume positions of the media set with SetMediaID.
	SavePositions bool
}

// adMarker is implemented by sources that track which ads were played.
type adMarker interface {
	MarkAdPlayed(periodUID string, adGroupIndex, adIndexInAdGroup int) error
}

// Player is a caller-side facade over an engine.Engine.
type Player struct {
	engine      *engine.Engine
	emptyResult *trackselect.Result
	log         *logrus.Entry
	listeners   *notifier
	done        chan struct{}

	mu                      sync.Mutex
	info                    engine.PlaybackInfo
	pendingAcks             int
	hasPendingPrepare       bool
	hasPendingSeek          bool
	playWhenReady           bool
	repeatMode              timeline.RepeatMode
	shuffle                 bool
	params                  clock.PlaybackParameters
	source                  source.MediaSource
	lastErr                 *engine.PlaybackError
	maskingWindowIndex      int
	maskingPeriodIndex      int
	maskingWindowPositionMs int64
	mediaID                 string
	savePositions           bool
}

// New starts an engine and the goroutines delivering its events.
func New(opts Options) (*Player, error) {
	e, err := engine.New(opts.Engine)
	if err != nil {
		return nil, err
	}
	if opts.Registry != nil {
		opts.Registry.Register("cadence.engine")
		opts.Registry.Register("cadence.player")
	}

	p := &Player{
		engine:        e,
		emptyResult:   trackselect.EmptyResult(len(opts.Engine.Renderers)),
		log:           log.For("player"),
		listeners:     newNotifier(),
		done:          make(chan struct{}),
		info:          e.PlaybackInfo(),
		playWhenReady: opts.Engine.PlayWhenReady,
		repeatMode:    opts.Engine.RepeatMode,
		shuffle:       opts.Engine.ShuffleModeEnabled,
		params:        e.PlaybackParameters(),
		savePositions: opts.SavePositions,
	}
	go p.consume()
	return p, nil
}

// AddListener registers l. Adding a listener twice has no effect.
func (p *Player) AddListener(l Listener) {
	p.listeners.add(l)
}

func (p *Player) RemoveListener(l Listener) {
	p.listeners.remove(l)
}

// Prepare starts playing src. resetPosition starts from the default position of the first
// window; resetState also drops the current timeline.
func (p *Player) Prepare(src source.MediaSource, resetPosition, resetState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErr = nil
	p.source = src
	info := p.resetInfo(resetPosition, resetState, engine.StateBuffering)
	p.hasPendingPrepare = true
	p.pendingAcks++
	p.engine.Prepare(src, resetPosition, resetState)
	p.update(info, false, 0, false)
}

// Retry prepares the last source again after an error, keeping the position. It reports
// whether there was anything to retry.
func (p *Player) Retry() bool {
	p.mu.Lock()
	src, state := p.source, p.info.State
	p.mu.Unlock()

	if src == nil || state != engine.StateIdle {
		return false
	}
	p.log.Info("retrying playback")
	p.Prepare(src, false, false)
	return true
}

func (p *Player) SetPlayWhenReady(playWhenReady bool) {
	p.mu.Lock()
	changed := p.playWhenReady != playWhenReady
	if changed {
		p.playWhenReady = playWhenReady
		p.engine.SetPlayWhenReady(playWhenReady)
		state := p.info.State
		p.listeners.post(func(l Listener) { l.OnStateChanged(playWhenReady, state) })
	}
	p.mu.Unlock()

	if changed && !playWhenReady {
		p.savePosition()
	}
}

func (p *Player) SetRepeatMode(mode timeline.RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.repeatMode != mode {
		p.repeatMode = mode
		p.engine.SetRepeatMode(mode)
	}
}

func (p *Player) SetShuffleModeEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuffle != enabled {
		p.shuffle = enabled
		p.engine.SetShuffleModeEnabled(enabled)
	}
}

// SetPlaybackParameters requests new parameters. The effective ones are reported through
// OnPlaybackParametersChanged.
func (p *Player) SetPlaybackParameters(params clock.PlaybackParameters) {
	p.engine.SetPlaybackParameters(params)
}

func (p *Player) SetSeekParameters(params source.SeekParameters) {
	p.engine.SetSeekParameters(params)
}

// SeekToDefaultPosition seeks to the default position of a window.
func (p *Player) SeekToDefaultPosition(windowIndex int) error {
	return p.SeekTo(windowIndex, constant.TimeUnset)
}

// SeekTo seeks to positionMs of a window. Seeks are ignored while an ad plays.
func (p *Player) SeekTo(windowIndex int, positionMs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tl := p.info.Timeline
	if windowIndex < 0 || (!tl.IsEmpty() && windowIndex >= tl.WindowCount()) {
		return &engine.IllegalSeekPositionError{Timeline: tl, WindowIndex: windowIndex, PositionUs: constant.MsToUs(positionMs)}
	}
	if p.info.IsPlayingAd() {
		p.log.Warn("seek ignored because an ad is playing")
		return nil
	}

	p.hasPendingSeek = true
	p.pendingAcks++
	p.maskingWindowIndex = windowIndex
	if tl.IsEmpty() {
		p.maskingWindowPositionMs = lo.Ternary(positionMs == constant.TimeUnset, 0, positionMs)
		p.maskingPeriodIndex = 0
	} else {
		windowPositionUs := constant.MsToUs(positionMs)
		if positionMs == constant.TimeUnset {
			windowPositionUs = tl.Window(windowIndex).DefaultPositionUs
		}
		p.maskingWindowPositionMs = max(0, constant.UsToMs(windowPositionUs))
		position, _ := tl.PeriodPosition(windowIndex, windowPositionUs)
		if pos, ok := position.Get(); ok {
			p.maskingPeriodIndex = tl.IndexOfPeriod(pos.PeriodUID)
		}
	}
	p.engine.SeekTo(tl, windowIndex, constant.MsToUs(positionMs))
	p.listeners.post(func(l Listener) { l.OnPositionDiscontinuity(engine.DiscontinuitySeek) })
	return nil
}

// Stop stops playback. With reset the source, timeline and position are dropped too.
func (p *Player) Stop(reset bool) {
	p.savePosition()

	p.mu.Lock()
	defer p.mu.Unlock()

	if reset {
		p.lastErr = nil
		p.source = nil
	}
	info := p.resetInfo(reset, reset, engine.StateIdle)
	p.pendingAcks++
	p.engine.Stop(reset)
	p.update(info, false, 0, false)
}

// Release stops playback and the engine. Listeners are not called once Release returned nil.
func (p *Player) Release(ctx context.Context) error {
	p.savePosition()

	if err := p.engine.Release(ctx); err != nil {
		return err
	}
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-p.listeners.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateMessage returns a message for target positioned in the current window.
func (p *Player) CreateMessage(target engine.Target) *engine.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.CreateMessage(target, p.info.Timeline, p.currentWindowIndex())
}

// consume drains engine events onto a queue until the engine is released. It never takes p.mu,
// so the engine can always publish while a caller holding p.mu waits for the engine to accept a
// command.
func (p *Player) consume() {
	q := newEventQueue()
	go p.apply(q)
	for ev := range p.engine.Events() {
		q.push(ev)
	}
	q.close()
}

// apply handles queued events in order.
func (p *Player) apply(q *eventQueue) {
	defer close(p.done)
	defer p.listeners.close()

	for {
		ev, ok := q.pop()
		if !ok {
			return
		}
		switch ev := ev.(type) {
		case engine.InfoChanged:
			p.handleInfo(ev)
		case engine.ParametersChanged:
			p.mu.Lock()
			if p.params != ev.Params {
				p.params = ev.Params
				params := ev.Params
				p.listeners.post(func(l Listener) { l.OnPlaybackParametersChanged(params) })
			}
			p.mu.Unlock()
		case engine.ErrorEvent:
			p.mu.Lock()
			p.lastErr = ev.Err
			err := ev.Err
			p.listeners.post(func(l Listener) { l.OnPlayerError(err) })
			p.mu.Unlock()
		}
	}
}

func (p *Player) handleInfo(ev engine.InfoChanged) {
	p.mu.Lock()

	p.pendingAcks -= ev.OperationAcks
	if p.pendingAcks > 0 {
		p.mu.Unlock()
		return
	}

	info := ev.Info
	if info.StartPositionUs == constant.TimeUnset {
		info = info.ResetToNewPosition(info.PeriodID, 0, info.ContentPositionUs)
	}
	if !p.info.Timeline.IsEmpty() && info.Timeline.IsEmpty() {
		p.maskingWindowIndex, p.maskingPeriodIndex, p.maskingWindowPositionMs = 0, 0, 0
	}
	prepared := p.hasPendingPrepare
	p.hasPendingPrepare = false
	p.hasPendingSeek = false

	old := p.info
	p.update(info, ev.Discontinuity, ev.Reason, prepared)

	var markAd func()
	if marker, ok := p.source.(adMarker); ok && old.IsPlayingAd() && ev.Discontinuity &&
		ev.Reason != engine.DiscontinuitySeek && info.PeriodID != old.PeriodID {
		id := old.PeriodID
		markAd = func() {
			if err := marker.MarkAdPlayed(id.PeriodUID, id.AdGroupIndex, id.AdIndexInAdGroup); err != nil {
				p.log.WithError(err).Warn("marking ad played")
			}
		}
	}
	ended := old.State != engine.StateEnded && info.State == engine.StateEnded
	p.mu.Unlock()

	if markAd != nil {
		markAd()
	}
	if ended {
		p.savePosition()
	}
}

// update replaces the playback info and queues the resulting notifications. p.mu is held.
func (p *Player) update(info engine.PlaybackInfo, discontinuity bool, reason engine.DiscontinuityReason, prepared bool) {
	old := p.info
	p.info = info

	if old.Timeline != info.Timeline || prepared {
		tl, manifest := info.Timeline, info.Manifest
		p.listeners.post(func(l Listener) { l.OnTimelineChanged(tl, manifest) })
	}
	if discontinuity {
		p.listeners.post(func(l Listener) { l.OnPositionDiscontinuity(reason) })
	}
	if old.State != info.State {
		playWhenReady, state := p.playWhenReady, info.State
		p.log.WithField("state", state).Debug("state changed")
		p.listeners.post(func(l Listener) { l.OnStateChanged(playWhenReady, state) })
	}
}

// resetInfo returns the info to mask with while a prepare or stop is pending. p.mu is held.
func (p *Player) resetInfo(resetPosition, resetState bool, state engine.State) engine.PlaybackInfo {
	if resetPosition {
		p.maskingWindowIndex, p.maskingPeriodIndex, p.maskingWindowPositionMs = 0, 0, 0
	} else {
		p.maskingWindowIndex = p.currentWindowIndex()
		p.maskingPeriodIndex = p.currentPeriodIndex()
		p.maskingWindowPositionMs = p.currentPosition()
	}

	current := p.info
	id := current.PeriodID
	startUs := current.PositionUs
	contentUs := current.ContentPositionUs
	if resetPosition {
		id = current.DummyFirstPeriodID(p.shuffle)
		startUs = 0
		contentUs = constant.TimeUnset
	}

	info := engine.PlaybackInfo{
		Timeline:            current.Timeline,
		Manifest:            current.Manifest,
		PeriodID:            id,
		StartPositionUs:     startUs,
		ContentPositionUs:   contentUs,
		State:               state,
		TrackGroups:         current.TrackGroups,
		TrackSelectorResult: current.TrackSelectorResult,
		LoadingPeriodID:     id,
		BufferedPositionUs:  startUs,
		PositionUs:          startUs,
	}
	if resetState {
		info.Timeline = timeline.Empty
		info.Manifest = nil
		info.TrackGroups = nil
		info.TrackSelectorResult = p.emptyResult
	}
	return info
}
