package history

import (
	"fmt"
	"time"

	"github.com/cadence-media/cadence/constant"
	"github.com/dustin/go-humanize"
)

// Entry is the resume position of one piece of media.
type Entry struct {
	MediaID     string    `json:"media_id"`
	WindowIndex int       `json:"window_index"`
	PositionUs  int64     `json:"position_us"`
	DurationUs  int64     `json:"duration_us"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// finished reports whether playback got close enough to the end that resuming makes no sense.
func (e *Entry) finished() bool {
	if e.DurationUs <= 0 || e.DurationUs == constant.TimeUnset {
		return false
	}
	return e.DurationUs-e.PositionUs < finishedThresholdUs
}

func (e *Entry) String() string {
	position := time.Duration(e.PositionUs) * time.Microsecond
	if e.DurationUs <= 0 || e.DurationUs == constant.TimeUnset {
		return fmt.Sprintf("%s : window %d at %s (%s)", e.MediaID, e.WindowIndex, position.Round(time.Second), humanize.Time(e.UpdatedAt))
	}
	duration := time.Duration(e.DurationUs) * time.Microsecond
	return fmt.Sprintf("%s : window %d at %s / %s (%s)", e.MediaID, e.WindowIndex, position.Round(time.Second), duration.Round(time.Second), humanize.Time(e.UpdatedAt))
}
