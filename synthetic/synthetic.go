// Package synthetic provides media sources, periods and renderers that generate media instead
// of fetching and decoding it. They behave like the real thing towards the engine: periods load
// in the background through a loader, use the allocator, report bandwidth and can fail.
package synthetic

import (
	"errors"
	"time"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/key"
	"github.com/cadence-media/cadence/metrics"
	"github.com/cadence-media/cadence/source"
	"github.com/spf13/viper"
)

// ErrLoad is the error injected into failing loads.
var ErrLoad = errors.New("synthetic load failed")

// Options shape the media generated by a Source.
type Options struct {
	// Tracks are exposed by every period. Defaults to DefaultTracks.
	Tracks []source.TrackGroup
	// ChunkDuration is the media loaded per load. Chunk boundaries are sync samples.
	ChunkDuration time.Duration
	// SampleInterval is the spacing of samples within a chunk.
	SampleInterval time.Duration
	// LoadDelay is how long each load takes.
	LoadDelay time.Duration
	// LoadErrors makes the first loads of every period fail.
	LoadErrors int
	// FatalLoadErrors gives up on a load after that many failures. Zero retries forever.
	FatalLoadErrors int
	// RetryDelay replaces the default backoff between failed loads.
	RetryDelay time.Duration
	// MinRetryCount is the number of failures tolerated before they surface. Negative reads
	// the loader.min_retry_count key.
	MinRetryCount int
	// RefreshError is returned while the source cannot refresh its timeline.
	RefreshError error
	Meter        *Meter
	Metrics      *metrics.Engine
}

// DefaultOptions returns one-second chunks of 40ms samples loaded without delay.
func DefaultOptions() Options {
	return Options{
		Tracks:         DefaultTracks(),
		ChunkDuration:  time.Second,
		SampleInterval: 40 * time.Millisecond,
		MinRetryCount:  -1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Tracks == nil {
		o.Tracks = def.Tracks
	}
	if o.ChunkDuration <= 0 {
		o.ChunkDuration = def.ChunkDuration
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = def.SampleInterval
	}
	if o.MinRetryCount < 0 {
		o.MinRetryCount = viper.GetInt(key.LoaderMinRetryCount)
	}
	if o.Meter == nil {
		o.Meter = NewMeter()
	}
	return o
}

// DefaultTracks is one audio group, one video group with three renditions and one text group.
func DefaultTracks() []source.TrackGroup {
	return []source.TrackGroup{
		{Formats: []source.Format{
			{ID: "audio/en", MimeType: MimeAudio, TrackType: constant.TrackTypeAudio, Bitrate: 128_000, Channels: 2, SampleRate: 48_000, Language: "en", SubsampleOffsetUs: source.OffsetSampleRelative},
		}},
		{Formats: []source.Format{
			{ID: "video/1080", MimeType: MimeVideo, TrackType: constant.TrackTypeVideo, Bitrate: 4_500_000, Width: 1920, Height: 1080, SubsampleOffsetUs: source.OffsetSampleRelative},
			{ID: "video/720", MimeType: MimeVideo, TrackType: constant.TrackTypeVideo, Bitrate: 2_500_000, Width: 1280, Height: 720, SubsampleOffsetUs: source.OffsetSampleRelative},
			{ID: "video/360", MimeType: MimeVideo, TrackType: constant.TrackTypeVideo, Bitrate: 800_000, Width: 640, Height: 360, SubsampleOffsetUs: source.OffsetSampleRelative},
		}},
		{Formats: []source.Format{
			{ID: "text/en", MimeType: MimeText, TrackType: constant.TrackTypeText, Language: "en", SubsampleOffsetUs: 0},
		}},
	}
}

// Mime types of the generated formats.
const (
	MimeAudio = "audio/x-synthetic"
	MimeVideo = "video/x-synthetic"
	MimeText  = "text/x-synthetic"
)

// chunkBytes is the payload size of durationUs of media across groups. Each group counts with
// its last format.
func chunkBytes(groups []source.TrackGroup, durationUs int64) int {
	bytes := int64(0)
	for _, g := range groups {
		if len(g.Formats) > 0 {
			bytes += int64(g.Formats[len(g.Formats)-1].Bitrate) * durationUs / 8_000_000
		}
	}
	return int(max(bytes, 1))
}
