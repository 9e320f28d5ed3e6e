package player

import (
	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/timeline"
)

func (p *Player) State() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info.State
}

func (p *Player) PlayWhenReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playWhenReady
}

func (p *Player) RepeatMode() timeline.RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeatMode
}

func (p *Player) ShuffleModeEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuffle
}

func (p *Player) IsLoading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info.IsLoading
}

func (p *Player) IsPlayingAd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.shouldMask() && p.info.IsPlayingAd()
}

func (p *Player) Timeline() *timeline.Timeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info.Timeline
}

// PlaybackParameters returns the effective playback parameters.
func (p *Player) PlaybackParameters() clock.PlaybackParameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// PlaybackError returns the error that stopped playback, or nil.
func (p *Player) PlaybackError() *engine.PlaybackError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Player) CurrentWindowIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentWindowIndex()
}

func (p *Player) CurrentPeriodIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentPeriodIndex()
}

// CurrentPosition returns the position in the current window, or in the ad being played, in
// milliseconds.
func (p *Player) CurrentPosition() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentPosition()
}

// ContentPosition is CurrentPosition, except that during an ad it returns the content position
// playback resumes at once the ad finished.
func (p *Player) ContentPosition() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contentPosition()
}

// Duration returns the duration of the current window or ad in milliseconds, or
// constant.TimeUnset when unknown.
func (p *Player) Duration() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration()
}

// BufferedPosition returns how far the current window or ad is buffered, in milliseconds.
func (p *Player) BufferedPosition() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := p.live()
	if p.shouldMask() || !info.IsPlayingAd() {
		return p.contentBufferedPosition(info)
	}
	if info.LoadingPeriodID == info.PeriodID {
		return constant.UsToMs(info.BufferedPositionUs)
	}
	return p.duration()
}

// TotalBufferedDuration returns the buffered media ahead of the position across periods, in
// milliseconds.
func (p *Player) TotalBufferedDuration() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return max(0, constant.UsToMs(p.live().TotalBufferedDurationUs))
}

// shouldMask reports whether positions come from the masking values. p.mu is held.
func (p *Player) shouldMask() bool {
	return p.info.Timeline.IsEmpty() || p.pendingAcks > 0
}

// live returns the playback info with positions from the engine's latest snapshot when it is
// still about the same period. Positions alone never produce events. p.mu is held.
func (p *Player) live() engine.PlaybackInfo {
	info := p.info
	snapshot := p.engine.PlaybackInfo()
	if snapshot.PeriodID == info.PeriodID && snapshot.Timeline == info.Timeline {
		info.PositionUs = snapshot.PositionUs
		info.BufferedPositionUs = snapshot.BufferedPositionUs
		info.TotalBufferedDurationUs = snapshot.TotalBufferedDurationUs
		info.LoadingPeriodID = snapshot.LoadingPeriodID
	}
	return info
}

func (p *Player) currentWindowIndex() int {
	if p.shouldMask() {
		return p.maskingWindowIndex
	}
	period, _ := p.info.Timeline.PeriodByUID(p.info.PeriodID.PeriodUID)
	return period.WindowIndex
}

func (p *Player) currentPeriodIndex() int {
	if p.shouldMask() {
		return p.maskingPeriodIndex
	}
	return p.info.Timeline.IndexOfPeriod(p.info.PeriodID.PeriodUID)
}

func (p *Player) currentPosition() int64 {
	if p.shouldMask() {
		return p.maskingWindowPositionMs
	}
	info := p.live()
	if info.IsPlayingAd() {
		return constant.UsToMs(info.PositionUs)
	}
	return p.windowPositionMs(info.PeriodID.PeriodUID, info.PositionUs)
}

func (p *Player) contentPosition() int64 {
	if p.shouldMask() || !p.info.IsPlayingAd() {
		return p.currentPosition()
	}
	return p.windowPositionMs(p.info.PeriodID.PeriodUID, p.info.ContentPositionUs)
}

func (p *Player) duration() int64 {
	tl := p.info.Timeline
	if tl.IsEmpty() {
		return constant.TimeUnset
	}
	if !p.shouldMask() && p.info.IsPlayingAd() {
		id := p.info.PeriodID
		period, _ := tl.PeriodByUID(id.PeriodUID)
		return constant.UsToMs(period.AdDurationUs(id.AdGroupIndex, id.AdIndexInAdGroup))
	}
	return constant.UsToMs(tl.Window(p.currentWindowIndex()).DurationUs)
}

func (p *Player) contentBufferedPosition(info engine.PlaybackInfo) int64 {
	if p.shouldMask() {
		return p.maskingWindowPositionMs
	}
	if info.LoadingPeriodID.WindowSequenceNumber != info.PeriodID.WindowSequenceNumber {
		return constant.UsToMs(info.Timeline.Window(p.currentWindowIndex()).DurationUs)
	}

	bufferedUs := info.BufferedPositionUs
	if loading := info.LoadingPeriodID; loading.IsAd() {
		period, _ := info.Timeline.PeriodByUID(loading.PeriodUID)
		bufferedUs = period.AdGroupTimeUs(loading.AdGroupIndex)
		if bufferedUs == constant.TimeEndOfSource {
			bufferedUs = period.DurationUs
		}
	}
	return p.windowPositionMs(info.LoadingPeriodID.PeriodUID, bufferedUs)
}

// windowPositionMs converts a position in a period to milliseconds in its window.
func (p *Player) windowPositionMs(periodUID string, positionUs int64) int64 {
	if positionUs == constant.TimeUnset || positionUs == constant.TimeEndOfSource {
		return constant.UsToMs(positionUs)
	}
	tl := p.info.Timeline
	period, ok := tl.PeriodByUID(periodUID)
	if !ok {
		return constant.UsToMs(positionUs)
	}
	w := tl.Window(period.WindowIndex)
	return constant.UsToMs(positionUs + period.PositionInWindowUs - w.PositionInFirstPeriodUs)
}
