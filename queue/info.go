package queue

import (
	"github.com/cadence-media/cadence/source"
)

// PeriodInfo describes the part of a period a holder plays.
type PeriodInfo struct {
	ID source.MediaPeriodID
	// StartPositionUs is where playback of the period starts, in period time.
	StartPositionUs int64
	// ContentPositionUs is where content resumes after an ad, or constant.TimeUnset for content.
	ContentPositionUs int64
	// DurationUs is constant.TimeUnset when unknown.
	DurationUs int64
	// IsLastInTimelinePeriod is set when nothing else of the timeline period plays after this one.
	IsLastInTimelinePeriod bool
	// IsFinal is set when this is the last media period of the timeline.
	IsFinal bool
}

// WithStartPositionUs returns a copy starting at startPositionUs.
func (i PeriodInfo) WithStartPositionUs(startPositionUs int64) PeriodInfo {
	i.StartPositionUs = startPositionUs
	return i
}
