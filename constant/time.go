package constant

import "math"

// Time sentinels shared by every package that deals in microsecond media time.
const (
	// TimeUnset marks a time or duration that is not known or not set.
	TimeUnset int64 = math.MinInt64 + 1

	// TimeEndOfSource marks a position at the end of the source, for example a buffered position
	// once everything has been loaded.
	TimeEndOfSource int64 = math.MinInt64
)

// Track type identifiers. Renderers and track groups are tagged with one of these.
const (
	TrackTypeUnknown      = -1
	TrackTypeDefault      = 0
	TrackTypeAudio        = 1
	TrackTypeVideo        = 2
	TrackTypeText         = 3
	TrackTypeMetadata     = 4
	TrackTypeCameraMotion = 5
	TrackTypeNone         = 6
)

// UsToMs converts microseconds to milliseconds, passing TimeUnset and TimeEndOfSource through untouched.
func UsToMs(us int64) int64 {
	if us == TimeUnset || us == TimeEndOfSource {
		return us
	}
	return us / 1000
}

// MsToUs converts milliseconds to microseconds, passing TimeUnset and TimeEndOfSource through untouched.
func MsToUs(ms int64) int64 {
	if ms == TimeUnset || ms == TimeEndOfSource {
		return ms
	}
	return ms * 1000
}

// TrackTypeName returns a short human readable name for a track type.
func TrackTypeName(trackType int) string {
	switch trackType {
	case TrackTypeAudio:
		return "audio"
	case TrackTypeVideo:
		return "video"
	case TrackTypeText:
		return "text"
	case TrackTypeMetadata:
		return "metadata"
	case TrackTypeCameraMotion:
		return "camera-motion"
	case TrackTypeNone:
		return "none"
	case TrackTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}
