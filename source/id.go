// Package source defines the contracts between the playback engine and the components that
// supply media: sources, the periods they create, and the sample streams those periods feed.
package source

import (
	"fmt"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/timeline"
)

// MediaPeriodID identifies a playable unit. Two ids are equal when every field is.
type MediaPeriodID struct {
	PeriodUID string
	// AdGroupIndex and AdIndexInAdGroup are timeline.IndexUnset for content.
	AdGroupIndex     int
	AdIndexInAdGroup int
	// WindowSequenceNumber tells apart repeated occurrences of the same period.
	WindowSequenceNumber int64
	// EndPositionUs is where content stops for the next ad group, or constant.TimeUnset.
	EndPositionUs int64
}

// DummyID is used while the timeline is unknown or empty.
var DummyID = NewContentID("", -1, constant.TimeUnset)

// NewContentID returns the id of content in period uid.
func NewContentID(uid string, windowSequenceNumber, endPositionUs int64) MediaPeriodID {
	return MediaPeriodID{
		PeriodUID:            uid,
		AdGroupIndex:         timeline.IndexUnset,
		AdIndexInAdGroup:     timeline.IndexUnset,
		WindowSequenceNumber: windowSequenceNumber,
		EndPositionUs:        endPositionUs,
	}
}

// NewAdID returns the id of an ad in period uid.
func NewAdID(uid string, adGroupIndex, adIndexInAdGroup int, windowSequenceNumber int64) MediaPeriodID {
	return MediaPeriodID{
		PeriodUID:            uid,
		AdGroupIndex:         adGroupIndex,
		AdIndexInAdGroup:     adIndexInAdGroup,
		WindowSequenceNumber: windowSequenceNumber,
		EndPositionUs:        constant.TimeUnset,
	}
}

// IsAd reports whether the id designates an ad.
func (id MediaPeriodID) IsAd() bool {
	return id.AdGroupIndex != timeline.IndexUnset
}

// WithPeriodUID returns a copy of id in another period.
func (id MediaPeriodID) WithPeriodUID(uid string) MediaPeriodID {
	id.PeriodUID = uid
	return id
}

func (id MediaPeriodID) String() string {
	if id.IsAd() {
		return fmt.Sprintf("%s#%d[ad %d/%d]", id.PeriodUID, id.WindowSequenceNumber, id.AdGroupIndex, id.AdIndexInAdGroup)
	}
	return fmt.Sprintf("%s#%d", id.PeriodUID, id.WindowSequenceNumber)
}
