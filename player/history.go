package player

import (
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/history"
	"github.com/samber/mo"
)

// SetMediaID names the prepared media for resume positions.
func (p *Player) SetMediaID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mediaID = id
}

// ResumeEntry returns the saved resume position of id.
func ResumeEntry(id string) (mo.Option[*history.Entry], error) {
	return history.Get(id)
}

// savePosition persists the current content position when resume positions are enabled.
// Playing media to its end removes the saved position.
func (p *Player) savePosition() {
	p.mu.Lock()
	if !p.savePositions || p.mediaID == "" || p.info.Timeline.IsEmpty() {
		p.mu.Unlock()
		return
	}
	entry := history.Entry{
		MediaID:     p.mediaID,
		WindowIndex: p.currentWindowIndex(),
		PositionUs:  constant.MsToUs(p.contentPosition()),
		DurationUs:  p.info.Timeline.Window(p.currentWindowIndex()).DurationUs,
	}
	if p.info.State == engine.StateEnded && entry.DurationUs != constant.TimeUnset {
		entry.PositionUs = entry.DurationUs
	}
	p.mu.Unlock()

	if err := history.Save(entry); err != nil {
		p.log.WithError(err).Warn("saving resume position")
		return
	}
	p.log.WithField("media", entry.MediaID).WithField("position_us", entry.PositionUs).Debug("resume position saved")
}
