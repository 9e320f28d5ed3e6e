package synthetic

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/util"
)

// Message kinds understood by the renderers.
const (
	MsgSetSurface = iota + 1
	MsgSetVolume
)

// lateThresholdUs is how late a video frame may be before it is dropped.
const lateThresholdUs = 30_000

// sampleRenderer renders samples once the playback position reaches their time.
type sampleRenderer struct {
	renderer.Base
	renderer.NopHooks

	mime      string
	dropLate  bool
	holder    source.FormatHolder
	buffer    source.Buffer
	format    *source.Format
	pending   bool
	outputEnd bool

	onFormat func(format source.Format)
	onRead   func(timeUs int64)
	onRender func(timeUs int64)

	rendered atomic.Int64
	dropped  atomic.Int64
	lastUs   atomic.Int64
}

func (r *sampleRenderer) init(trackType int, mime string, hooks renderer.Hooks) {
	r.Base.Init(trackType, hooks)
	r.mime = mime
	r.lastUs.Store(constant.TimeUnset)
}

func (r *sampleRenderer) SupportsFormat(format source.Format) renderer.FormatSupport {
	if format.TrackType != r.TrackType() {
		return renderer.FormatUnsupportedType
	}
	if format.MimeType != r.mime {
		return renderer.FormatUnsupportedSubtype
	}
	return renderer.FormatHandled
}

func (r *sampleRenderer) Render(positionUs, _ int64) error {
	if r.outputEnd {
		return nil
	}
	if r.format == nil {
		if r.ReadSource(&r.holder, &r.buffer, true) != source.FormatRead {
			return nil
		}
		r.setFormat(*r.holder.Format)
	}
	for {
		if !r.pending {
			switch r.ReadSource(&r.holder, &r.buffer, false) {
			case source.FormatRead:
				r.setFormat(*r.holder.Format)
				continue
			case source.BufferRead:
				if r.buffer.IsEndOfStream() {
					r.outputEnd = true
					return nil
				}
				r.pending = true
				if r.onRead != nil {
					r.onRead(r.buffer.TimeUs)
				}
			default:
				return nil
			}
		}
		if r.buffer.TimeUs > positionUs {
			// Early; keep it for a later call.
			return nil
		}
		r.pending = false
		if r.dropLate && positionUs-r.buffer.TimeUs > lateThresholdUs {
			r.dropped.Add(1)
			continue
		}
		r.rendered.Add(1)
		r.lastUs.Store(r.buffer.TimeUs)
		if r.onRender != nil {
			r.onRender(r.buffer.TimeUs)
		}
	}
}

func (r *sampleRenderer) setFormat(format source.Format) {
	r.format = &format
	if r.onFormat != nil {
		r.onFormat(format)
	}
}

func (r *sampleRenderer) IsReady() bool {
	return r.format != nil && (r.pending || r.outputEnd || r.IsSourceReady())
}

func (r *sampleRenderer) IsEnded() bool {
	return r.outputEnd
}

func (r *sampleRenderer) OnPositionReset(int64, bool) error {
	r.pending = false
	r.outputEnd = false
	return nil
}

func (r *sampleRenderer) OnDisabled() {
	r.format = nil
	r.pending = false
	r.outputEnd = false
}

// Rendered returns the number of samples rendered so far.
func (r *sampleRenderer) Rendered() int64 { return r.rendered.Load() }

// Dropped returns the number of samples dropped for being late.
func (r *sampleRenderer) Dropped() int64 { return r.dropped.Load() }

// LastRenderedUs returns the renderer time of the latest rendered sample, or constant.TimeUnset.
func (r *sampleRenderer) LastRenderedUs() int64 { return r.lastUs.Load() }

// AudioRenderer plays audio samples and drives the media clock while it plays.
type AudioRenderer struct {
	sampleRenderer
	clock  *clock.Standalone
	volume atomic.Uint64
}

// NewAudioRenderer returns an audio renderer whose clock is based on c.
func NewAudioRenderer(c clock.Clock) *AudioRenderer {
	r := &AudioRenderer{clock: clock.NewStandalone(c)}
	r.init(constant.TrackTypeAudio, MimeAudio, r)
	r.setVolume(1)
	return r
}

func (r *AudioRenderer) MediaClock() clock.RendererClock { return r }

func (r *AudioRenderer) PositionUs() int64 { return r.clock.PositionUs() }

func (r *AudioRenderer) SetPlaybackParameters(params clock.PlaybackParameters) clock.PlaybackParameters {
	return r.clock.SetPlaybackParameters(params)
}

func (r *AudioRenderer) PlaybackParameters() clock.PlaybackParameters {
	return r.clock.PlaybackParameters()
}

func (r *AudioRenderer) OnPositionReset(positionUs int64, joining bool) error {
	r.clock.ResetPosition(positionUs)
	return r.sampleRenderer.OnPositionReset(positionUs, joining)
}

func (r *AudioRenderer) OnStarted() error {
	r.clock.Start()
	return nil
}

func (r *AudioRenderer) OnStopped() error {
	r.clock.Stop()
	return nil
}

func (r *AudioRenderer) OnDisabled() {
	r.clock.Stop()
	r.sampleRenderer.OnDisabled()
}

func (r *AudioRenderer) HandleMessage(kind int, payload any) error {
	if kind != MsgSetVolume {
		return nil
	}
	volume, ok := payload.(float64)
	if !ok || volume < 0 || volume > 1 {
		return fmt.Errorf("invalid volume %v", payload)
	}
	r.setVolume(volume)
	return nil
}

func (r *AudioRenderer) setVolume(volume float64) {
	r.volume.Store(uint64(volume * 1000))
}

// Volume returns the volume set through MsgSetVolume.
func (r *AudioRenderer) Volume() float64 {
	return float64(r.volume.Load()) / 1000
}

// VideoRenderer renders frames, dropping late ones, and applies format changes at the frame
// they start at.
type VideoRenderer struct {
	sampleRenderer
	maxHeight int

	pendingFormat *source.Format
	formats       *util.TimedValueQueue[source.Format]

	mu           sync.Mutex
	outputFormat *source.Format
	surface      string
	rate         float64
}

// NewVideoRenderer returns a video renderer supporting formats up to maxHeight lines, or any
// height when maxHeight is zero.
func NewVideoRenderer(maxHeight int) *VideoRenderer {
	r := &VideoRenderer{maxHeight: maxHeight, formats: util.NewTimedValueQueue[source.Format](0)}
	r.init(constant.TrackTypeVideo, MimeVideo, r)
	r.dropLate = true
	r.onFormat = func(format source.Format) { r.pendingFormat = &format }
	r.onRead = func(timeUs int64) {
		if r.pendingFormat != nil {
			r.formats.Add(timeUs, *r.pendingFormat)
			r.pendingFormat = nil
		}
	}
	r.onRender = func(timeUs int64) {
		if format, ok := r.formats.PollFloor(timeUs); ok {
			r.mu.Lock()
			r.outputFormat = &format
			r.mu.Unlock()
		}
	}
	return r
}

func (r *VideoRenderer) SupportsFormat(format source.Format) renderer.FormatSupport {
	support := r.sampleRenderer.SupportsFormat(format)
	if support == renderer.FormatHandled && r.maxHeight > 0 && format.Height > r.maxHeight {
		return renderer.FormatExceedsCapabilities
	}
	return support
}

func (r *VideoRenderer) OnPositionReset(positionUs int64, joining bool) error {
	r.formats.Clear()
	return r.sampleRenderer.OnPositionReset(positionUs, joining)
}

func (r *VideoRenderer) OnDisabled() {
	r.formats.Clear()
	r.pendingFormat = nil
	r.sampleRenderer.OnDisabled()
}

func (r *VideoRenderer) SetOperatingRate(rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = rate
}

func (r *VideoRenderer) HandleMessage(kind int, payload any) error {
	if kind != MsgSetSurface {
		return nil
	}
	surface, ok := payload.(string)
	if !ok {
		return fmt.Errorf("invalid surface %v", payload)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface = surface
	return nil
}

// OutputFormat returns the format of the latest rendered frame.
func (r *VideoRenderer) OutputFormat() (source.Format, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outputFormat == nil {
		return source.Format{}, false
	}
	return *r.outputFormat, true
}

// Surface returns the surface set through MsgSetSurface.
func (r *VideoRenderer) Surface() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surface
}

// TextRenderer shows cues. Missing cues never hold up playback.
type TextRenderer struct {
	sampleRenderer
}

func NewTextRenderer() *TextRenderer {
	r := &TextRenderer{}
	r.init(constant.TrackTypeText, MimeText, r)
	return r
}

func (r *TextRenderer) IsReady() bool { return true }
