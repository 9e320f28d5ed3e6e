package loadcontrol

import (
	"math"
	"time"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/key"
	"github.com/cadence-media/cadence/loader"
	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default thresholds.
const (
	DefaultMinBufferMs             = 15000
	DefaultMaxBufferMs             = 50000
	DefaultBufferForPlaybackMs     = 2500
	DefaultBufferForRebufferMs     = 5000
	DefaultBackBufferMs            = 0
	DefaultTargetBufferBytes       = -1
	DefaultPrioritizeTimeOverBytes = true
)

// Default buffer sizes per track type, in bytes.
const (
	AudioBufferSize        = 54 * SegmentSize
	VideoBufferSize        = 200 * SegmentSize
	TextBufferSize         = 2 * SegmentSize
	MetadataBufferSize     = 2 * SegmentSize
	CameraMotionBufferSize = 2 * SegmentSize
	MuxedBufferSize        = AudioBufferSize + VideoBufferSize + TextBufferSize
)

// Options are the thresholds of Default.
type Options struct {
	MinBuffer         time.Duration
	MaxBuffer         time.Duration
	BufferForPlayback time.Duration
	// BufferForRebuffer replaces BufferForPlayback after a rebuffer.
	BufferForRebuffer time.Duration
	BackBuffer        time.Duration
	// RetainBackBufferFromKeyframe keeps the back buffer from the keyframe before it.
	RetainBackBufferFromKeyframe bool
	// TargetBufferBytes is computed from the selected tracks when negative.
	TargetBufferBytes int
	// PrioritizeTimeOverSize keeps loading below MinBuffer even when TargetBufferBytes is reached.
	PrioritizeTimeOverSize bool
	// Tasks, if set, has PriorityPlayback registered while buffering.
	Tasks *loader.PriorityTaskManager
}

// DefaultOptions returns the default thresholds.
func DefaultOptions() Options {
	return Options{
		MinBuffer:              DefaultMinBufferMs * time.Millisecond,
		MaxBuffer:              DefaultMaxBufferMs * time.Millisecond,
		BufferForPlayback:      DefaultBufferForPlaybackMs * time.Millisecond,
		BufferForRebuffer:      DefaultBufferForRebufferMs * time.Millisecond,
		BackBuffer:             DefaultBackBufferMs * time.Millisecond,
		TargetBufferBytes:      DefaultTargetBufferBytes,
		PrioritizeTimeOverSize: DefaultPrioritizeTimeOverBytes,
	}
}

// OptionsFromConfig reads thresholds from the buffer.* keys.
func OptionsFromConfig() Options {
	ms := func(k string) time.Duration {
		return time.Duration(viper.GetInt64(k)) * time.Millisecond
	}
	return Options{
		MinBuffer:                    ms(key.BufferMinMs),
		MaxBuffer:                    ms(key.BufferMaxMs),
		BufferForPlayback:            ms(key.BufferPlaybackMs),
		BufferForRebuffer:            ms(key.BufferRebufferMs),
		BackBuffer:                   ms(key.BufferBackBufferMs),
		RetainBackBufferFromKeyframe: viper.GetBool(key.BufferRetainBackBufferFromKeyframe),
		TargetBufferBytes:            viper.GetInt(key.BufferTargetBytes),
		PrioritizeTimeOverSize:       viper.GetBool(key.BufferPrioritizeTime),
	}
}

// Default buffers between a minimum and a maximum duration, and starts playback once a short
// duration is buffered. Loading, once stopped at the maximum, resumes only below the minimum.
type Default struct {
	allocator *DefaultAllocator
	opts      Options

	minBufferUs         int64
	maxBufferUs         int64
	bufferForPlaybackUs int64
	bufferForRebufferUs int64
	backBufferUs        int64

	targetBufferSize int
	buffering        bool
	log              *logrus.Entry
}

// New returns a load control with opts. Thresholds are clamped so that
// playback thresholds never exceed the minimum buffer.
func New(opts Options) *Default {
	us := func(d time.Duration) int64 { return d.Microseconds() }
	d := &Default{
		allocator:           NewDefaultAllocator(true, SegmentSize),
		opts:                opts,
		minBufferUs:         us(opts.MinBuffer),
		maxBufferUs:         us(opts.MaxBuffer),
		bufferForPlaybackUs: us(opts.BufferForPlayback),
		bufferForRebufferUs: us(opts.BufferForRebuffer),
		backBufferUs:        us(opts.BackBuffer),
		log:                 log.For("loadcontrol"),
	}
	d.bufferForPlaybackUs = max(0, min(d.bufferForPlaybackUs, d.minBufferUs))
	d.bufferForRebufferUs = max(0, min(d.bufferForRebufferUs, d.minBufferUs))
	d.maxBufferUs = max(d.maxBufferUs, d.minBufferUs)
	d.backBufferUs = max(0, d.backBufferUs)
	return d
}

// FromConfig returns a load control with thresholds from the configuration.
func FromConfig(tasks *loader.PriorityTaskManager) *Default {
	opts := OptionsFromConfig()
	opts.Tasks = tasks
	return New(opts)
}

func (d *Default) OnPrepared() { d.reset(false) }
func (d *Default) OnStopped()  { d.reset(true) }
func (d *Default) OnReleased() { d.reset(true) }

func (d *Default) OnTracksSelected(renderers []renderer.Renderer, _ []source.TrackGroup, selections []source.TrackSelection) {
	d.targetBufferSize = d.opts.TargetBufferBytes
	if d.targetBufferSize < 0 {
		d.targetBufferSize = TargetBufferSize(renderers, selections)
	}
	d.allocator.SetTargetBufferSize(d.targetBufferSize)
}

func (d *Default) Allocator() source.Allocator        { return d.allocator }
func (d *Default) BackBufferDurationUs() int64        { return d.backBufferUs }
func (d *Default) RetainBackBufferFromKeyframe() bool { return d.opts.RetainBackBufferFromKeyframe }
func (d *Default) IsBuffering() bool                  { return d.buffering }
func (d *Default) TargetBufferBytes() int             { return d.targetBufferSize }

func (d *Default) ShouldContinueLoading(bufferedDurationUs int64, speed float64) bool {
	targetReached := d.allocator.TotalBytesAllocated() >= d.targetBufferSize
	wasBuffering := d.buffering

	minBufferUs := d.minBufferUs
	if speed > 1 {
		minBufferUs = min(mediaDurationForPlayout(minBufferUs, speed), d.maxBufferUs)
	}

	switch {
	case bufferedDurationUs < minBufferUs:
		d.buffering = d.opts.PrioritizeTimeOverSize || !targetReached
	case bufferedDurationUs >= d.maxBufferUs || targetReached:
		d.buffering = false
	}

	if d.buffering != wasBuffering {
		d.log.WithFields(logrus.Fields{
			"buffering": d.buffering,
			"buffered":  constant.UsToMs(bufferedDurationUs),
		}).Debug("buffering changed")
		if tasks := d.opts.Tasks; tasks != nil {
			if d.buffering {
				tasks.Add(loader.PriorityPlayback)
			} else {
				tasks.Remove(loader.PriorityPlayback)
			}
		}
	}
	return d.buffering
}

func (d *Default) ShouldStartPlayback(bufferedDurationUs int64, speed float64, rebuffering bool) bool {
	bufferedDurationUs = playoutDurationForMedia(bufferedDurationUs, speed)
	minUs := d.bufferForPlaybackUs
	if rebuffering {
		minUs = d.bufferForRebufferUs
	}
	return minUs <= 0 ||
		bufferedDurationUs >= minUs ||
		(!d.opts.PrioritizeTimeOverSize && d.allocator.TotalBytesAllocated() >= d.targetBufferSize)
}

func (d *Default) reset(resetAllocator bool) {
	d.targetBufferSize = 0
	if d.buffering && d.opts.Tasks != nil {
		d.opts.Tasks.Remove(loader.PriorityPlayback)
	}
	d.buffering = false
	if resetAllocator {
		d.allocator.Reset()
	}
}

// TargetBufferSize sums the default buffer sizes of the renderers that have a selection.
func TargetBufferSize(renderers []renderer.Renderer, selections []source.TrackSelection) int {
	size := 0
	for i, r := range renderers {
		if i < len(selections) && selections[i] != nil {
			size += BufferSizeForTrackType(r.TrackType())
		}
	}
	return size
}

// BufferSizeForTrackType returns the default buffer size of a track type.
func BufferSizeForTrackType(trackType int) int {
	switch trackType {
	case constant.TrackTypeDefault:
		return MuxedBufferSize
	case constant.TrackTypeAudio:
		return AudioBufferSize
	case constant.TrackTypeVideo:
		return VideoBufferSize
	case constant.TrackTypeText:
		return TextBufferSize
	case constant.TrackTypeMetadata:
		return MetadataBufferSize
	case constant.TrackTypeCameraMotion:
		return CameraMotionBufferSize
	default:
		return 0
	}
}

func mediaDurationForPlayout(playoutUs int64, speed float64) int64 {
	if speed == 1 {
		return playoutUs
	}
	return int64(math.Round(float64(playoutUs) * speed))
}

func playoutDurationForMedia(mediaUs int64, speed float64) int64 {
	if speed == 1 {
		return mediaUs
	}
	return int64(math.Round(float64(mediaUs) / speed))
}
