package source

import (
	"math"

	"github.com/cadence-media/cadence/constant"
)

// OffsetSampleRelative marks subsample timestamps that are relative to the sample time.
const OffsetSampleRelative = math.MaxInt64

// Format describes one track's media format.
type Format struct {
	ID         string
	MimeType   string
	TrackType  int
	Bitrate    int
	Width      int
	Height     int
	Channels   int
	SampleRate int
	Language   string
	// SubsampleOffsetUs is OffsetSampleRelative unless subsample times are absolute.
	SubsampleOffsetUs int64
}

// WithSubsampleOffsetUs returns a copy with an absolute subsample offset.
func (f Format) WithSubsampleOffsetUs(offsetUs int64) Format {
	f.SubsampleOffsetUs = offsetUs
	return f
}

// TrackGroup is a set of tracks carrying the same content in different formats.
type TrackGroup struct {
	Formats []Format
}

// TrackType returns the type of the group's tracks.
func (g TrackGroup) TrackType() int {
	if len(g.Formats) == 0 {
		return constant.TrackTypeUnknown
	}
	return g.Formats[0].TrackType
}

// IndexOf returns the index of the format with id, or -1.
func (g TrackGroup) IndexOf(id string) int {
	for i, f := range g.Formats {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// TrackSelection is the subset of a track group a renderer may play.
type TrackSelection interface {
	Group() TrackGroup
	// Indices are the selected tracks in the group.
	Indices() []int
	// SelectedFormat is the format currently being played.
	SelectedFormat() Format
	OnPlaybackSpeed(speed float64)
}

// Formats returns the formats of every track in the selection.
func Formats(selection TrackSelection) []Format {
	if selection == nil {
		return nil
	}
	group := selection.Group()
	formats := make([]Format, 0, len(selection.Indices()))
	for _, i := range selection.Indices() {
		formats = append(formats, group.Formats[i])
	}
	return formats
}

// SeekParameters trades seek accuracy for speed by allowing the position to snap to a sync sample.
type SeekParameters struct {
	ToleranceBeforeUs int64
	ToleranceAfterUs  int64
}

var (
	// SeekExact seeks to the exact requested position.
	SeekExact = SeekParameters{}
	// SeekClosestSync snaps to the closest sync sample in either direction.
	SeekClosestSync = SeekParameters{ToleranceBeforeUs: math.MaxInt64, ToleranceAfterUs: math.MaxInt64}
	// SeekPreviousSync snaps to the sync sample at or before the requested position.
	SeekPreviousSync = SeekParameters{ToleranceBeforeUs: math.MaxInt64}
)
